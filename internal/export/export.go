// Package export writes run outputs: the redacted-message JSON document,
// the failed-message CSV, and optional blob mirrors of both.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/arclight-io/scrubber/internal/messages"
	"github.com/arclight-io/scrubber/pkg/storage"
)

// WriteRedacted writes the redacted messages to path as an indented JSON
// array.
func WriteRedacted(path string, msgs []messages.Message) error {
	data, err := encodeRedacted(msgs)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write redacted output: %w", err)
	}
	return nil
}

// WriteFailed writes failed-message metadata to path as CSV with the header
// conversationId,messageId,errorTimestamp.
func WriteFailed(path string, msgs []messages.Message, errorTimestamp time.Time) error {
	data, err := encodeFailed(msgs, errorTimestamp)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write failed-message export: %w", err)
	}
	return nil
}

// MirrorRedacted uploads the redacted JSON document to the artifact store
// under the run's key prefix.
func MirrorRedacted(ctx context.Context, store storage.System, runID string, msgs []messages.Message) error {
	data, err := encodeRedacted(msgs)
	if err != nil {
		return err
	}
	key := fmt.Sprintf("%s/redacted_messages.json", runID)
	return store.Upload(ctx, key, bytes.NewReader(data), "application/json")
}

// MirrorFailed uploads the failed-message CSV to the artifact store under
// the run's key prefix.
func MirrorFailed(ctx context.Context, store storage.System, runID string, msgs []messages.Message, errorTimestamp time.Time) error {
	data, err := encodeFailed(msgs, errorTimestamp)
	if err != nil {
		return err
	}
	key := fmt.Sprintf("%s/failed_messages.csv", runID)
	return store.Upload(ctx, key, bytes.NewReader(data), "text/csv")
}

func encodeRedacted(msgs []messages.Message) ([]byte, error) {
	data, err := json.MarshalIndent(msgs, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode redacted messages: %w", err)
	}
	return data, nil
}

func encodeFailed(msgs []messages.Message, errorTimestamp time.Time) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"conversationId", "messageId", "errorTimestamp"}); err != nil {
		return nil, fmt.Errorf("encode failed-message header: %w", err)
	}

	ts := errorTimestamp.UTC().Format(time.RFC3339)
	for i := range msgs {
		if err := w.Write([]string{msgs[i].ConversationID, msgs[i].ID, ts}); err != nil {
			return nil, fmt.Errorf("encode failed-message row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("encode failed-message export: %w", err)
	}
	return buf.Bytes(), nil
}
