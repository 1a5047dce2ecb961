// Package messages implements the source and output message domain.
// The pipeline reads raw messages from the source table and, in cloud mode,
// writes processed copies to the cleaned-messages table.
package messages

import (
	"time"

	"github.com/arclight-io/scrubber/pkg/detection"
)

// Entity is a detected PII span recorded on a processed message.
type Entity struct {
	Text       string  `json:"text"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// Message is a conversation message flowing through the pipeline. The
// pipeline only reads Content; processing results are written onto a copy.
type Message struct {
	ID               string    `json:"id"`
	ConversationID   string    `json:"conversationId"`
	UserID           string    `json:"userId"`
	Content          string    `json:"content"`
	ProcessedContent string    `json:"processedContent,omitempty"`
	Entities         []Entity  `json:"piiEntities,omitempty"`
	ProcessedAt      time.Time `json:"processedAt,omitzero"`
}

// Key returns the composite ledger key for the message.
func (m *Message) Key() string {
	return m.ConversationID + "_" + m.ID
}

// FromDetected converts detector entities to their persisted form.
func FromDetected(entities []detection.Entity) []Entity {
	if len(entities) == 0 {
		return nil
	}

	out := make([]Entity, len(entities))
	for i, e := range entities {
		out[i] = Entity{
			Text:       e.Text,
			Category:   e.Category,
			Confidence: e.ConfidenceScore,
		}
	}
	return out
}
