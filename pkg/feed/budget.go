package feed

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Rate-limit metadata headers carried on every feed response.
const (
	headerRateAllowed    = "rate-limit-allowed"
	headerRateAvailable  = "rate-limit-available"
	headerRateUsed       = "rate-limit-used"
	headerRateExpiryTime = "rate-limit-expiry-time"
)

// DefaultMinInterval is the minimum spacing between requests. The upstream
// spike arrest is documented at 100ms; 250ms leaves a safety margin.
const DefaultMinInterval = 250 * time.Millisecond

// RateBudget tracks the feed's request quota and enforces the minimum
// inter-request spacing. Quota numbers come from the rate-limit-* response
// headers; absent metadata leaves the previous state untouched, so the
// budget fails open and relies on the 429 path to catch true exhaustion.
//
// Each coordinator instance owns its own budget; there is no cross-instance
// coordination.
type RateBudget struct {
	mu          sync.Mutex
	allowed     int64
	available   int64
	used        int64
	expiry      string
	lastRequest time.Time
	minInterval time.Duration
}

// NewRateBudget creates a budget with the given minimum request spacing.
// A non-positive spacing selects DefaultMinInterval. Quota starts unknown,
// which CanProceed treats as permitted.
func NewRateBudget(minInterval time.Duration) *RateBudget {
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	return &RateBudget{
		allowed:     -1,
		available:   -1,
		used:        -1,
		minInterval: minInterval,
	}
}

// Observe updates the tracked quota from response metadata. Negative values
// mean "not reported" and are ignored.
func (b *RateBudget) Observe(allowed, available int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if allowed >= 0 {
		b.allowed = allowed
	}
	if available >= 0 {
		b.available = available
	}
}

// ObserveHeaders extracts rate-limit metadata from feed response headers
// and feeds it into the budget. Headers that are missing or malformed are
// skipped.
func (b *RateBudget) ObserveHeaders(h http.Header) {
	allowed := parseHeaderInt(h, headerRateAllowed)
	available := parseHeaderInt(h, headerRateAvailable)
	used := parseHeaderInt(h, headerRateUsed)
	expiry := h.Get(headerRateExpiryTime)

	b.Observe(allowed, available)

	b.mu.Lock()
	defer b.mu.Unlock()
	if used >= 0 {
		b.used = used
	}
	if expiry != "" {
		b.expiry = expiry
	}
}

// CanProceed reports whether another request fits inside the quota.
// Unknown quota counts as permitted.
func (b *RateBudget) CanProceed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.available != 0
}

// Wait blocks until at least the minimum interval has elapsed since the
// previous request, then records the request time. The first call never
// waits. Cancellation of ctx ends the wait early; Wait never returns an
// error.
func (b *RateBudget) Wait(ctx context.Context) {
	b.mu.Lock()
	last := b.lastRequest
	b.mu.Unlock()

	if !last.IsZero() {
		if wait := b.minInterval - time.Since(last); wait > 0 {
			select {
			case <-time.After(wait):
			case <-ctx.Done():
			}
		}
	}

	b.mu.Lock()
	b.lastRequest = time.Now()
	b.mu.Unlock()
}

// Quota returns the last observed quota numbers. Values are -1 while the
// feed has not reported them yet.
func (b *RateBudget) Quota() (allowed, available, used int64, expiry string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.allowed, b.available, b.used, b.expiry
}

func parseHeaderInt(h http.Header, key string) int64 {
	v := h.Get(key)
	if v == "" {
		return -1
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return -1
	}
	return n
}
