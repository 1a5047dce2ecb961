// Package tokens implements the token store: stable, reversible placeholder
// tokens for detected PII entities, deduplicated across semantically
// equivalent mentions by fuzzy matching.
package tokens

import (
	"fmt"
	"strings"
	"time"
)

// Record maps one distinct entity value to its placeholder token within a
// (userId, conversationId, entityCategory) partition.
type Record struct {
	ID              string    `json:"id"`
	UserID          string    `json:"userId"`
	ConversationID  string    `json:"conversationId"`
	EntityCategory  string    `json:"entityCategory"`
	NormalizedValue string    `json:"normalizedValue"`
	OriginalValue   string    `json:"originalValue"`
	Token           string    `json:"token"`
	CreatedAt       time.Time `json:"createdAt"`
}

// FormatToken renders the placeholder for the nth token of a category
// partition, e.g. FormatToken("Person", 1) == "{person_1}". Sequence numbers
// are 1-based and local to the partition.
func FormatToken(category string, n int) string {
	return fmt.Sprintf("{%s_%d}", strings.ToLower(category), n)
}

// RecordID builds the deterministic identity for a token record.
func RecordID(userID, conversationID, category string, n int) string {
	return fmt.Sprintf("%s_%s_%s_%d", userID, conversationID, category, n)
}
