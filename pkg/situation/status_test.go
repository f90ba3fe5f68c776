package situation

import (
	"math/rand"
	"testing"
	"time"
)

func TestResolve(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	past := now.Add(-24 * time.Hour)
	future := now.Add(24 * time.Hour)
	farFuture := now.Add(48 * time.Hour)

	tests := []struct {
		name     string
		start    time.Time
		end      *time.Time
		progress string
		want     Status
	}{
		{
			name:     "active window open progress",
			start:    past,
			end:      &future,
			progress: "open",
			want:     StatusOpen,
		},
		{
			name:     "active window no end",
			start:    past,
			end:      nil,
			progress: "open",
			want:     StatusOpen,
		},
		{
			name:     "future start is planned",
			start:    future,
			end:      &farFuture,
			progress: "open",
			want:     StatusPlanned,
		},
		{
			name:     "future start overrides closed progress",
			start:    future,
			end:      &farFuture,
			progress: "closed",
			want:     StatusPlanned,
		},
		{
			name:     "past end is expired",
			start:    now.Add(-48 * time.Hour),
			end:      &past,
			progress: "open",
			want:     StatusExpired,
		},
		{
			name:     "closed progress inside window is expired",
			start:    past,
			end:      &future,
			progress: "closed",
			want:     StatusExpired,
		},
		{
			name:     "closed progress case-insensitive",
			start:    past,
			end:      &future,
			progress: "CLOSED",
			want:     StatusExpired,
		},
		{
			name:     "closed progress with padding",
			start:    past,
			end:      &future,
			progress: "  Closed ",
			want:     StatusExpired,
		},
		{
			name:     "unknown progress counts as active",
			start:    past,
			end:      &future,
			progress: "published",
			want:     StatusOpen,
		},
		{
			name:     "empty progress counts as active",
			start:    past,
			end:      nil,
			progress: "",
			want:     StatusOpen,
		},
		{
			name:     "closed with no end stays expired",
			start:    past,
			end:      nil,
			progress: "closed",
			want:     StatusExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(now, tt.start, tt.end, tt.progress)
			if got != tt.want {
				t.Errorf("Resolve() = %v; want %v", got, tt.want)
			}
		})
	}
}

// Classification must depend only on the inputs: calling Resolve twice with
// identical arguments always yields the same status.
func TestResolve_Deterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	progresses := []string{"open", "closed", "published", ""}

	for i := 0; i < 200; i++ {
		start := now.Add(time.Duration(rng.Intn(96)-48) * time.Hour)
		var end *time.Time
		if rng.Intn(2) == 0 {
			e := start.Add(time.Duration(rng.Intn(72)) * time.Hour)
			end = &e
		}
		progress := progresses[rng.Intn(len(progresses))]

		first := Resolve(now, start, end, progress)
		second := Resolve(now, start, end, progress)
		if first != second {
			t.Fatalf("Resolve not deterministic for start=%v end=%v progress=%q: %v then %v",
				start, end, progress, first, second)
		}

		// Time-based truth: a future start is always planned.
		if now.Before(start) && first != StatusPlanned {
			t.Errorf("future start=%v progress=%q classified as %v; want planned", start, progress, first)
		}
	}
}
