package scheduler

// DefaultConcurrentBatches bounds in-flight batches for unrecognized tiers.
const DefaultConcurrentBatches = 5

// tierConcurrency maps detection service tiers to the maximum number of
// concurrent in-flight batches. These bounds model the service's externally
// imposed rate limits; exceeding them risks throttling errors.
var tierConcurrency = map[string]int64{
	"S":  20,
	"S0": 5,
	"F0": 5,
}

// ConcurrentBatches returns the admission gate size for a service tier.
func ConcurrentBatches(tier string) int64 {
	if limit, ok := tierConcurrency[tier]; ok {
		return limit
	}
	return DefaultConcurrentBatches
}
