package detection

import "errors"

// Sentinel errors for detection operations.
var (
	// ErrDetection indicates the service reported an error for a single
	// document within an otherwise successful batch call.
	ErrDetection = errors.New("entity detection failed")
	// ErrTransport indicates the batch call itself failed; no document in
	// the batch was evaluated.
	ErrTransport = errors.New("detection transport failed")
	// ErrBatchTooLarge indicates the caller exceeded MaxBatchSize.
	ErrBatchTooLarge = errors.New("detection batch too large")
)
