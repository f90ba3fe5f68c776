package situation

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/nordlys-io/sxwatch/pkg/feed"
)

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func tsp(s string) *time.Time {
	t := ts(s)
	return &t
}

func TestAggregate_MultiLineFanOut(t *testing.T) {
	now := ts("2026-03-15T12:00:00Z")
	records := []feed.Situation{
		{
			ID:      "SKY:1",
			Summary: "Bus replaces train",
			Start:   ts("2026-03-15T08:00:00Z"),
			End:     tsp("2026-03-15T18:00:00Z"),
			Lines:   []string{"SKY:Line:1", "SKY:Line:2"},
		},
	}

	snaps := Aggregate([]string{"SKY:Line:1", "SKY:Line:2", "SKY:Line:3"}, records, now)

	for _, ref := range []string{"SKY:Line:1", "SKY:Line:2"} {
		snap, ok := snaps[ref]
		if !ok {
			t.Fatalf("missing snapshot for %s", ref)
		}
		if len(snap.Items) != 1 {
			t.Fatalf("%s: got %d items; want 1", ref, len(snap.Items))
		}
		if snap.Items[0].ID != "SKY:1" {
			t.Errorf("%s: got item %q; want SKY:1", ref, snap.Items[0].ID)
		}
		if snap.Primary != "Bus replaces train" {
			t.Errorf("%s: primary = %q; want %q", ref, snap.Primary, "Bus replaces train")
		}
	}

	// Unaffected line gets the synthetic normal entry.
	quiet := snaps["SKY:Line:3"]
	if len(quiet.Items) != 1 {
		t.Fatalf("quiet line: got %d items; want 1", len(quiet.Items))
	}
	if quiet.Primary != StateNormal {
		t.Errorf("quiet line: primary = %q; want %q", quiet.Primary, StateNormal)
	}
	if quiet.Items[0].Status != StatusOpen {
		t.Errorf("quiet line: status = %v; want open", quiet.Items[0].Status)
	}
}

func TestAggregate_Ordering(t *testing.T) {
	now := ts("2026-03-15T12:00:00Z")
	records := []feed.Situation{
		{
			ID: "expired", Summary: "Old works",
			Start: ts("2026-03-10T08:00:00Z"), End: tsp("2026-03-11T08:00:00Z"),
			Lines: []string{"SKY:Line:1"},
		},
		{
			ID: "planned", Summary: "Upcoming works",
			Start: ts("2026-03-20T08:00:00Z"), End: tsp("2026-03-21T08:00:00Z"),
			Lines: []string{"SKY:Line:1"},
		},
		{
			ID: "open-older", Summary: "Signal failure",
			Start: ts("2026-03-15T06:00:00Z"),
			Lines: []string{"SKY:Line:1"},
		},
		{
			ID: "open-newer", Summary: "Track obstruction",
			Start: ts("2026-03-15T10:00:00Z"),
			Lines: []string{"SKY:Line:1"},
		},
	}

	snap := Aggregate([]string{"SKY:Line:1"}, records, now)["SKY:Line:1"]

	wantOrder := []string{"open-newer", "open-older", "planned", "expired"}
	if len(snap.Items) != len(wantOrder) {
		t.Fatalf("got %d items; want %d", len(snap.Items), len(wantOrder))
	}
	for i, id := range wantOrder {
		if snap.Items[i].ID != id {
			t.Errorf("items[%d] = %q; want %q", i, snap.Items[i].ID, id)
		}
	}

	if snap.Counts[StatusOpen] != 2 || snap.Counts[StatusPlanned] != 1 || snap.Counts[StatusExpired] != 1 {
		t.Errorf("counts = %v; want open=2 planned=1 expired=1", snap.Counts)
	}
}

func TestAggregate_PrimaryConcatenation(t *testing.T) {
	now := ts("2026-03-15T12:00:00Z")
	records := []feed.Situation{
		{ID: "a", Summary: "Signal failure", Start: ts("2026-03-15T10:00:00Z"), Lines: []string{"SKY:Line:1"}},
		{ID: "b", Summary: "Reduced capacity", Start: ts("2026-03-15T09:00:00Z"), Lines: []string{"SKY:Line:1"}},
	}

	snap := Aggregate([]string{"SKY:Line:1"}, records, now)["SKY:Line:1"]

	want := "Signal failure | Reduced capacity"
	if snap.Primary != want {
		t.Errorf("primary = %q; want %q", snap.Primary, want)
	}
}

func TestAggregate_PrimaryLengthFallback(t *testing.T) {
	now := ts("2026-03-15T12:00:00Z")
	long := strings.Repeat("x", 200)
	records := []feed.Situation{
		{ID: "a", Summary: long + "-first", Start: ts("2026-03-15T10:00:00Z"), Lines: []string{"SKY:Line:1"}},
		{ID: "b", Summary: long + "-second", Start: ts("2026-03-15T09:00:00Z"), Lines: []string{"SKY:Line:1"}},
	}

	snap := Aggregate([]string{"SKY:Line:1"}, records, now)["SKY:Line:1"]

	want := fmt.Sprintf("2 open disruptions: %s-first", long)
	if snap.Primary != want {
		t.Errorf("primary = %q; want count fallback %q", snap.Primary, want)
	}
}

func TestAggregate_PrimaryIgnoresLowerStatuses(t *testing.T) {
	now := ts("2026-03-15T12:00:00Z")
	records := []feed.Situation{
		{ID: "open", Summary: "Signal failure", Start: ts("2026-03-15T10:00:00Z"), Lines: []string{"SKY:Line:1"}},
		{ID: "planned", Summary: "Upcoming works", Start: ts("2026-03-20T08:00:00Z"), Lines: []string{"SKY:Line:1"}},
	}

	snap := Aggregate([]string{"SKY:Line:1"}, records, now)["SKY:Line:1"]

	if snap.Primary != "Signal failure" {
		t.Errorf("primary = %q; want only the open summary", snap.Primary)
	}
}

func TestAggregate_PlannedOnlyLine(t *testing.T) {
	now := ts("2026-03-15T12:00:00Z")
	records := []feed.Situation{
		{ID: "planned", Summary: "Upcoming works", Start: ts("2026-03-20T08:00:00Z"), Lines: []string{"SKY:Line:1"}},
	}

	snap := Aggregate([]string{"SKY:Line:1"}, records, now)["SKY:Line:1"]

	// A planned disruption is real data; no synthetic entry is added.
	if len(snap.Items) != 1 || snap.Items[0].ID != "planned" {
		t.Fatalf("unexpected items %+v", snap.Items)
	}
	if snap.Primary != "Upcoming works" {
		t.Errorf("primary = %q; want %q", snap.Primary, "Upcoming works")
	}
}

func TestAggregate_MixedStatusesEndToEnd(t *testing.T) {
	now := ts("2026-03-15T12:00:00Z")
	records := []feed.Situation{
		{
			ID: "active", Summary: "Bus replaces train", Progress: "open",
			Start: now.Add(-time.Hour), End: tsp("2026-03-15T13:00:00Z"),
			Lines: []string{"SKY:Line:X"},
		},
		{
			// Stale closed flag on a future record must not expire it.
			ID: "future", Summary: "Planned track works", Progress: "closed",
			Start: now.Add(10 * 24 * time.Hour),
			Lines: []string{"SKY:Line:X"},
		},
		{
			ID: "over", Summary: "Last week's incident", Progress: "open",
			Start: now.Add(-48 * time.Hour), End: tsp("2026-03-14T12:00:00Z"),
			Lines: []string{"SKY:Line:X"},
		},
	}

	snap := Aggregate([]string{"SKY:Line:X"}, records, now)["SKY:Line:X"]

	wantStatuses := []Status{StatusOpen, StatusPlanned, StatusExpired}
	if len(snap.Items) != len(wantStatuses) {
		t.Fatalf("got %d items; want %d", len(snap.Items), len(wantStatuses))
	}
	for i, want := range wantStatuses {
		if snap.Items[i].Status != want {
			t.Errorf("items[%d].Status = %v; want %v", i, snap.Items[i].Status, want)
		}
	}
	if snap.Primary != "Bus replaces train" {
		t.Errorf("primary = %q; want the active record's summary", snap.Primary)
	}
}

func TestAggregate_DuplicateLineRefInRecord(t *testing.T) {
	now := ts("2026-03-15T12:00:00Z")
	records := []feed.Situation{
		{
			ID: "dup", Summary: "Signal failure",
			Start: ts("2026-03-15T10:00:00Z"),
			Lines: []string{"SKY:Line:1", "SKY:Line:1"},
		},
	}

	snap := Aggregate([]string{"SKY:Line:1"}, records, now)["SKY:Line:1"]
	if len(snap.Items) != 1 {
		t.Errorf("got %d items; want 1 entry per record", len(snap.Items))
	}
}
