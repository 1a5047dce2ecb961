package tokens

import (
	"strings"
	"unicode"

	"github.com/pmezard/go-difflib/difflib"
)

// SimilarityThreshold is the fixed fuzzy-match cutoff: two normalized values
// with a ratio strictly above it map to the same token.
const SimilarityThreshold = 0.8

// Normalize canonicalizes an entity value for fuzzy lookup: lowercase,
// trimmed, with everything that is not a letter or digit removed. This
// collapses "123-45-6789" and "123456789" to the same digit run and strips
// case and spacing variation from names. Normalized values are never
// compared for exact equality.
func Normalize(value string) string {
	lowered := strings.ToLower(strings.TrimSpace(value))
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return -1
	}, lowered)
}

// Ratio computes the Ratcliff/Obershelp similarity of two strings as
// character sequences.
func Ratio(a, b string) float64 {
	return difflib.NewMatcher(splitChars(a), splitChars(b)).Ratio()
}

// BestMatch scans the partition's records for the best fuzzy match against
// the normalized query value. Records must be ordered by ascending creation
// time: on a similarity tie the earliest record wins. Returns the matched
// token and true when a record scores above SimilarityThreshold.
func BestMatch(records []Record, normalized string) (string, bool) {
	var (
		best      string
		bestRatio float64
		found     bool
	)

	for i := range records {
		ratio := Ratio(records[i].NormalizedValue, normalized)
		if ratio <= SimilarityThreshold {
			continue
		}
		if !found || ratio > bestRatio {
			best = records[i].Token
			bestRatio = ratio
			found = true
		}
	}

	return best, found
}

func splitChars(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
