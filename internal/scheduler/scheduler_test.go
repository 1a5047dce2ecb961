package scheduler_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/arclight-io/scrubber/internal/messages"
	"github.com/arclight-io/scrubber/internal/scheduler"
	"github.com/arclight-io/scrubber/pkg/detection"
)

type fakeDetector struct {
	mu          sync.Mutex
	inFlight    int
	maxInFlight int
	fn          func(documents []string) ([]detection.DocumentResult, error)
	delay       time.Duration
}

func (f *fakeDetector) Detect(ctx context.Context, documents []string, language string) ([]detection.DocumentResult, error) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()

	return f.fn(documents)
}

func cleanResults(documents []string) ([]detection.DocumentResult, error) {
	return make([]detection.DocumentResult, len(documents)), nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func makeMessages(n int) []messages.Message {
	msgs := make([]messages.Message, n)
	for i := range msgs {
		msgs[i] = messages.Message{
			ID:             fmt.Sprintf("m%d", i),
			ConversationID: "c1",
			Content:        fmt.Sprintf("message %d", i),
		}
	}
	return msgs
}

func TestPartition(t *testing.T) {
	tests := []struct {
		name    string
		n       int
		size    int
		batches int
	}{
		{"exact multiple", 10, 5, 2},
		{"remainder", 11, 5, 3},
		{"single batch", 3, 5, 1},
		{"size one", 4, 1, 4},
		{"empty", 0, 5, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			batches := scheduler.Partition(makeMessages(tc.n), tc.size)
			if len(batches) != tc.batches {
				t.Fatalf("Partition produced %d batches, want %d", len(batches), tc.batches)
			}

			seen := make(map[string]bool)
			for _, batch := range batches {
				if len(batch) > tc.size {
					t.Errorf("batch size %d exceeds %d", len(batch), tc.size)
				}
				for _, m := range batch {
					if seen[m.ID] {
						t.Errorf("message %s appears in more than one batch", m.ID)
					}
					seen[m.ID] = true
				}
			}
			if len(seen) != tc.n {
				t.Errorf("batches cover %d messages, want %d", len(seen), tc.n)
			}
		})
	}
}

func TestPartitionInvalidSize(t *testing.T) {
	if got := scheduler.Partition(makeMessages(3), 0); got != nil {
		t.Errorf("Partition with size 0 = %v, want nil", got)
	}
}

func TestConcurrentBatches(t *testing.T) {
	tests := []struct {
		tier string
		want int64
	}{
		{"S", 20},
		{"S0", 5},
		{"F0", 5},
		{"unknown", 5},
		{"", 5},
	}

	for _, tc := range tests {
		if got := scheduler.ConcurrentBatches(tc.tier); got != tc.want {
			t.Errorf("ConcurrentBatches(%q) = %d, want %d", tc.tier, got, tc.want)
		}
	}
}

func TestProcessSuccess(t *testing.T) {
	detector := &fakeDetector{fn: func(documents []string) ([]detection.DocumentResult, error) {
		results := make([]detection.DocumentResult, len(documents))
		for i, doc := range documents {
			if strings.Contains(doc, "sensitive") {
				results[i].Entities = []detection.Entity{
					{Text: "sensitive", Category: "Secret", ConfidenceScore: 0.9, Offset: 8, Length: 9},
				}
			}
		}
		return results, nil
	}}

	sched := scheduler.New(detector, scheduler.Options{BatchSize: 2, Tier: "S0", Language: "en"}, testLogger())

	msgs := []messages.Message{
		{ID: "m0", ConversationID: "c1", Content: "message sensitive"},
		{ID: "m1", ConversationID: "c1", Content: "plain"},
		{ID: "m2", ConversationID: "c1", Content: "plain too"},
	}

	result, err := sched.Process(context.Background(), msgs)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if len(result.Succeeded) != 3 || len(result.Failed) != 0 {
		t.Fatalf("Process = %d succeeded / %d failed, want 3/0", len(result.Succeeded), len(result.Failed))
	}

	for _, m := range result.Succeeded {
		if m.ID != "m0" {
			continue
		}
		want := "message [REDACTED - Secret (0.90)]"
		if m.ProcessedContent != want {
			t.Errorf("ProcessedContent = %q, want %q", m.ProcessedContent, want)
		}
		if len(m.Entities) != 1 || m.Entities[0].Category != "Secret" {
			t.Errorf("Entities = %+v, want one Secret entity", m.Entities)
		}
		if m.ProcessedAt.IsZero() {
			t.Error("ProcessedAt not set on succeeded message")
		}
	}
}

func TestProcessTransportFailureFailsWholeBatch(t *testing.T) {
	calls := 0
	var mu sync.Mutex
	detector := &fakeDetector{fn: func(documents []string) ([]detection.DocumentResult, error) {
		mu.Lock()
		calls++
		first := calls == 1
		mu.Unlock()
		if first {
			return nil, fmt.Errorf("%w: connection reset", detection.ErrTransport)
		}
		return cleanResults(documents)
	}}

	sched := scheduler.New(detector, scheduler.Options{BatchSize: 2, Tier: "F0", Language: "en"}, testLogger())

	result, err := sched.Process(context.Background(), makeMessages(4))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if len(result.Succeeded)+len(result.Failed) != 4 {
		t.Fatalf("messages lost: %d succeeded + %d failed, want 4 total", len(result.Succeeded), len(result.Failed))
	}
	if len(result.Failed) != 2 {
		t.Errorf("Failed = %d messages, want the whole 2-message batch", len(result.Failed))
	}
}

func TestProcessDocumentErrorFailsOnlyThatMessage(t *testing.T) {
	detector := &fakeDetector{fn: func(documents []string) ([]detection.DocumentResult, error) {
		results := make([]detection.DocumentResult, len(documents))
		for i, doc := range documents {
			if strings.Contains(doc, "message 1") {
				results[i].Err = fmt.Errorf("%w: invalid document", detection.ErrDetection)
			}
		}
		return results, nil
	}}

	sched := scheduler.New(detector, scheduler.Options{BatchSize: 5, Tier: "S0", Language: "en"}, testLogger())

	result, err := sched.Process(context.Background(), makeMessages(3))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if len(result.Succeeded) != 2 || len(result.Failed) != 1 {
		t.Fatalf("Process = %d/%d, want 2 succeeded / 1 failed", len(result.Succeeded), len(result.Failed))
	}
	if result.Failed[0].ID != "m1" {
		t.Errorf("failed message = %s, want m1", result.Failed[0].ID)
	}
}

func TestProcessBoundsConcurrency(t *testing.T) {
	detector := &fakeDetector{
		delay: 5 * time.Millisecond,
		fn:    cleanResults,
	}

	sched := scheduler.New(detector, scheduler.Options{BatchSize: 1, Tier: "S0", Language: "en"}, testLogger())

	if _, err := sched.Process(context.Background(), makeMessages(25)); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if detector.maxInFlight > 5 {
		t.Errorf("max in-flight batches = %d, want <= 5 for tier S0", detector.maxInFlight)
	}
}

func TestProcessProgressCallback(t *testing.T) {
	detector := &fakeDetector{fn: cleanResults}

	var mu sync.Mutex
	completed := 0
	sched := scheduler.New(detector, scheduler.Options{
		BatchSize: 2,
		Tier:      "S0",
		Language:  "en",
		OnBatchComplete: func() {
			mu.Lock()
			completed++
			mu.Unlock()
		},
	}, testLogger())

	if _, err := sched.Process(context.Background(), makeMessages(5)); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if completed != 3 {
		t.Errorf("progress callbacks = %d, want 3 (one per batch)", completed)
	}
}

func TestProcessCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	detector := &fakeDetector{fn: cleanResults}
	sched := scheduler.New(detector, scheduler.Options{BatchSize: 1, Tier: "S0", Language: "en"}, testLogger())

	_, err := sched.Process(ctx, makeMessages(3))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Process on cancelled context = %v, want context.Canceled", err)
	}
}
