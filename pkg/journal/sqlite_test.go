package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestJournal_AppendAndRecent(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	entries := []struct {
		kind    string
		lineRef string
		detail  string
	}{
		{"poll_success", "", "pages=1 truncated=false lines=2"},
		{"disruption_new", "SKY:Line:1", "Signal failure|open|2026-03-15T08:00:00Z"},
		{"poll_throttled", "", "throttle=1 backoff=2m0s"},
	}
	for _, e := range entries {
		if err := j.Append(ctx, e.kind, e.lineRef, e.detail); err != nil {
			t.Fatalf("Append(%s) error: %v", e.kind, err)
		}
	}

	events, err := j.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent() error: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events; want 3", len(events))
	}

	// Most recent first.
	if events[0].Kind != "poll_throttled" || events[2].Kind != "poll_success" {
		t.Errorf("unexpected order: %s, %s, %s", events[0].Kind, events[1].Kind, events[2].Kind)
	}
	if events[1].LineRef != "SKY:Line:1" {
		t.Errorf("line_ref = %q; want SKY:Line:1", events[1].LineRef)
	}
	if events[0].Ts.IsZero() {
		t.Error("event timestamp not recorded")
	}
}

func TestJournal_RecentLimit(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := j.Append(ctx, "poll_success", "", ""); err != nil {
			t.Fatalf("Append() error: %v", err)
		}
	}

	events, err := j.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent() error: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("got %d events; want 2", len(events))
	}

	// Non-positive limit falls back to the default.
	events, err = j.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("Recent(0) error: %v", err)
	}
	if len(events) != 5 {
		t.Errorf("got %d events with default limit; want 5", len(events))
	}
}

func TestJournal_RecentEmpty(t *testing.T) {
	j := openTestJournal(t)

	events, err := j.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent() error: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("got %d events from empty journal; want 0", len(events))
	}
}

func TestJournal_Prune(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	if err := j.Append(ctx, "poll_success", "", ""); err != nil {
		t.Fatalf("Append() error: %v", err)
	}

	// Nothing is older than an hour yet.
	removed, err := j.Prune(ctx, time.Hour)
	if err != nil {
		t.Fatalf("Prune() error: %v", err)
	}
	if removed != 0 {
		t.Errorf("pruned %d events inside retention; want 0", removed)
	}

	// A zero retention window removes everything written so far.
	time.Sleep(10 * time.Millisecond)
	removed, err = j.Prune(ctx, 0)
	if err != nil {
		t.Fatalf("Prune() error: %v", err)
	}
	if removed != 1 {
		t.Errorf("pruned %d events; want 1", removed)
	}

	events, err := j.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent() error: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("got %d events after prune; want 0", len(events))
	}
}
