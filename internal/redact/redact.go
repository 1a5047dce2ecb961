// Package redact renders irreversible redaction placeholders and performs
// span-based entity replacement. Unlike tokenization, redaction destroys the
// original value.
package redact

import (
	"fmt"

	"github.com/arclight-io/scrubber/pkg/detection"
)

// Placeholder renders the redaction string for a detected entity,
// e.g. "[REDACTED - SSN (0.91)]".
func Placeholder(category string, confidence float64) string {
	return fmt.Sprintf("[REDACTED - %s (%.2f)]", category, confidence)
}

// Apply replaces every detected entity span in content with its redaction
// placeholder.
func Apply(content string, entities []detection.Entity) string {
	replacements := make([]string, len(entities))
	for i, e := range entities {
		replacements[i] = Placeholder(e.Category, e.ConfidenceScore)
	}
	return ReplaceSpans(content, entities, replacements)
}
