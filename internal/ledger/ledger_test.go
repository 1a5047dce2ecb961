package ledger_test

import (
	"testing"

	"github.com/arclight-io/scrubber/internal/ledger"
	"github.com/arclight-io/scrubber/internal/messages"
)

func TestFilterUnprocessed(t *testing.T) {
	msgs := []messages.Message{
		{ID: "m1", ConversationID: "c1"},
		{ID: "m2", ConversationID: "c1"},
		{ID: "m1", ConversationID: "c2"},
	}
	keys := ledger.KeySet{"c1_m1": {}}

	got := ledger.FilterUnprocessed(msgs, keys)
	if len(got) != 2 {
		t.Fatalf("FilterUnprocessed returned %d messages, want 2", len(got))
	}
	if got[0].Key() != "c1_m2" || got[1].Key() != "c2_m1" {
		t.Errorf("FilterUnprocessed = [%s %s], want [c1_m2 c2_m1]", got[0].Key(), got[1].Key())
	}
}

func TestFilterUnprocessedExcludesLedgeredMessage(t *testing.T) {
	// A key already present in the ledger must exclude the message from
	// the dispatch set on a re-run.
	msgs := []messages.Message{{ID: "m1", ConversationID: "c1"}}
	keys := ledger.KeySet{"c1_m1": {}}

	if got := ledger.FilterUnprocessed(msgs, keys); len(got) != 0 {
		t.Errorf("FilterUnprocessed = %d messages, want 0", len(got))
	}
}

func TestFilterUnprocessedIdempotent(t *testing.T) {
	msgs := []messages.Message{
		{ID: "m1", ConversationID: "c1"},
		{ID: "m2", ConversationID: "c2"},
	}
	keys := ledger.KeySet{"c2_m2": {}}

	first := ledger.FilterUnprocessed(msgs, keys)
	second := ledger.FilterUnprocessed(msgs, keys)

	if len(first) != len(second) {
		t.Fatalf("filter not idempotent: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Key() != second[i].Key() {
			t.Errorf("filter not idempotent at %d: %s vs %s", i, first[i].Key(), second[i].Key())
		}
	}
}

func TestFilterUnprocessedEmptyLedger(t *testing.T) {
	msgs := []messages.Message{{ID: "m1", ConversationID: "c1"}}

	got := ledger.FilterUnprocessed(msgs, ledger.KeySet{})
	if len(got) != 1 {
		t.Errorf("FilterUnprocessed with empty ledger = %d messages, want all", len(got))
	}
}

func TestNewProgress(t *testing.T) {
	p := ledger.NewProgress(200, 50)

	if p.Total != 200 || p.Processed != 50 || p.Remaining != 150 {
		t.Errorf("NewProgress counts = %+v", p)
	}
	if p.Percent != 25 {
		t.Errorf("NewProgress percent = %v, want 25", p.Percent)
	}
}

func TestNewProgressZeroTotal(t *testing.T) {
	p := ledger.NewProgress(0, 0)
	if p.Percent != 0 {
		t.Errorf("NewProgress(0, 0) percent = %v, want 0", p.Percent)
	}
}

func TestProgressString(t *testing.T) {
	p := ledger.NewProgress(4, 1)
	want := "1/4 messages processed (25.00%), 3 remaining"
	if got := p.String(); got != want {
		t.Errorf("Progress.String() = %q, want %q", got, want)
	}
}
