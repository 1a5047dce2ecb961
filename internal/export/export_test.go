package export_test

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/arclight-io/scrubber/internal/export"
	"github.com/arclight-io/scrubber/internal/messages"
)

func TestWriteRedacted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "redacted_messages.json")
	msgs := []messages.Message{
		{
			ID:               "m1",
			ConversationID:   "c1",
			UserID:           "u1",
			Content:          "SSN 123-45-6789",
			ProcessedContent: "SSN [REDACTED - SSN (0.91)]",
			Entities: []messages.Entity{
				{Text: "123-45-6789", Category: "SSN", Confidence: 0.91},
			},
		},
	}

	if err := export.WriteRedacted(path, msgs); err != nil {
		t.Fatalf("WriteRedacted failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}

	var decoded []messages.Message
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(decoded) != 1 {
		t.Fatalf("decoded %d messages, want 1", len(decoded))
	}
	if decoded[0].ProcessedContent != msgs[0].ProcessedContent {
		t.Errorf("processedContent = %q, want %q", decoded[0].ProcessedContent, msgs[0].ProcessedContent)
	}
	if !reflect.DeepEqual(decoded[0].Entities, msgs[0].Entities) {
		t.Errorf("entities = %+v, want %+v", decoded[0].Entities, msgs[0].Entities)
	}
	if data[0] != '[' {
		t.Errorf("output does not start with a JSON array")
	}
}

func TestWriteRedactedEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "redacted_messages.json")
	if err := export.WriteRedacted(path, nil); err != nil {
		t.Fatalf("WriteRedacted failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != "null" {
		var decoded []messages.Message
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("output is not valid JSON: %v", err)
		}
		if len(decoded) != 0 {
			t.Errorf("decoded %d messages, want 0", len(decoded))
		}
	}
}

func TestWriteFailed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failed_messages_ledger.csv")
	ts := time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC)
	msgs := []messages.Message{
		{ID: "m1", ConversationID: "c1"},
		{ID: "m2", ConversationID: "c2"},
	}

	if err := export.WriteFailed(path, msgs, ts); err != nil {
		t.Fatalf("WriteFailed failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("parse CSV: %v", err)
	}

	want := [][]string{
		{"conversationId", "messageId", "errorTimestamp"},
		{"c1", "m1", "2025-03-01T12:30:00Z"},
		{"c2", "m2", "2025-03-01T12:30:00Z"},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("CSV rows = %v, want %v", rows, want)
	}
}

func TestWriteFailedHeaderOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failed_messages_ledger.csv")
	if err := export.WriteFailed(path, nil, time.Now()); err != nil {
		t.Fatalf("WriteFailed failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("parse CSV: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want header only", len(rows))
	}
	if !reflect.DeepEqual(rows[0], []string{"conversationId", "messageId", "errorTimestamp"}) {
		t.Errorf("header = %v", rows[0])
	}
}
