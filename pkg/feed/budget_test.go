package feed

import (
	"context"
	"net/http"
	"testing"
	"time"
)

func TestRateBudget_CanProceed(t *testing.T) {
	tests := []struct {
		name      string
		allowed   int64
		available int64
		want      bool
	}{
		{name: "unknown quota permits", allowed: -1, available: -1, want: true},
		{name: "remaining quota permits", allowed: 1000, available: 42, want: true},
		{name: "exhausted quota denies", allowed: 1000, available: 0, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewRateBudget(0)
			b.Observe(tt.allowed, tt.available)
			if got := b.CanProceed(); got != tt.want {
				t.Errorf("CanProceed() = %v; want %v", got, tt.want)
			}
		})
	}
}

func TestRateBudget_ObserveIgnoresNegative(t *testing.T) {
	b := NewRateBudget(0)
	b.Observe(1000, 5)
	b.Observe(-1, -1) // feed stopped reporting; keep last known numbers

	allowed, available, _, _ := b.Quota()
	if allowed != 1000 || available != 5 {
		t.Errorf("Quota() = (%d, %d); want (1000, 5)", allowed, available)
	}
}

func TestRateBudget_ObserveHeaders(t *testing.T) {
	b := NewRateBudget(0)

	h := http.Header{}
	h.Set("rate-limit-allowed", "1000")
	h.Set("rate-limit-available", "993")
	h.Set("rate-limit-used", "7")
	h.Set("rate-limit-expiry-time", "2026-03-15T13:00:00Z")
	b.ObserveHeaders(h)

	allowed, available, used, expiry := b.Quota()
	if allowed != 1000 || available != 993 || used != 7 {
		t.Errorf("Quota() = (%d, %d, %d); want (1000, 993, 7)", allowed, available, used)
	}
	if expiry != "2026-03-15T13:00:00Z" {
		t.Errorf("expiry = %q; want the header value", expiry)
	}

	// Malformed headers leave the previous values untouched.
	h2 := http.Header{}
	h2.Set("rate-limit-allowed", "plenty")
	b.ObserveHeaders(h2)
	allowed, _, _, _ = b.Quota()
	if allowed != 1000 {
		t.Errorf("allowed = %d after malformed header; want 1000", allowed)
	}
}

func TestRateBudget_FirstWaitIsImmediate(t *testing.T) {
	b := NewRateBudget(time.Second)

	start := time.Now()
	b.Wait(context.Background())
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("first Wait took %v; want immediate", elapsed)
	}
}

func TestRateBudget_WaitEnforcesSpacing(t *testing.T) {
	b := NewRateBudget(50 * time.Millisecond)

	b.Wait(context.Background())
	start := time.Now()
	b.Wait(context.Background())
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("second Wait returned after %v; want at least ~50ms spacing", elapsed)
	}
}

func TestRateBudget_WaitHonorsCancel(t *testing.T) {
	b := NewRateBudget(time.Minute)
	b.Wait(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	b.Wait(ctx)
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("canceled Wait took %v; want immediate return", elapsed)
	}
}
