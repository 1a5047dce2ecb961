// Package ledger implements the processing ledger: the durable record of
// which messages have completed processing, used to resume interrupted runs.
package ledger

import (
	"fmt"
	"time"

	"github.com/arclight-io/scrubber/internal/messages"
)

// Record marks one successfully processed message. Records are created
// exactly once per message and never updated or deleted by the pipeline.
type Record struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	MessageID      string    `json:"messageId"`
	ProcessedAt    time.Time `json:"processedAt"`
}

// KeySet is the set of processed composite keys (conversationId_messageId).
type KeySet map[string]struct{}

// Contains reports whether the composite key is present.
func (k KeySet) Contains(key string) bool {
	_, ok := k[key]
	return ok
}

// FilterUnprocessed returns the messages whose composite key is absent from
// the set. Input order is preserved.
func FilterUnprocessed(msgs []messages.Message, keys KeySet) []messages.Message {
	unprocessed := make([]messages.Message, 0, len(msgs))
	for _, m := range msgs {
		if !keys.Contains(m.Key()) {
			unprocessed = append(unprocessed, m)
		}
	}
	return unprocessed
}

// Progress summarizes overall pipeline completion. It is observational only
// and has no effect on scheduling decisions.
type Progress struct {
	Total     int
	Processed int
	Remaining int
	Percent   float64
}

// NewProgress computes completion counts from the source total and the
// number of ledger keys.
func NewProgress(total, processed int) Progress {
	p := Progress{
		Total:     total,
		Processed: processed,
		Remaining: total - processed,
	}
	if total > 0 {
		p.Percent = float64(processed) / float64(total) * 100
	}
	return p
}

func (p Progress) String() string {
	return fmt.Sprintf(
		"%d/%d messages processed (%.2f%%), %d remaining",
		p.Processed, p.Total, p.Percent, p.Remaining,
	)
}
