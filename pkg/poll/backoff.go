package poll

import "time"

// Backoff computes the polling interval after consecutive throttling
// responses: max(Initial, min(Cap, Initial·Multiplier^(n-1))). The
// sequence is deterministic and monotonically non-decreasing.
type Backoff struct {
	Initial    time.Duration
	Cap        time.Duration
	Multiplier float64
}

// DefaultBackoff matches the upstream quota's observed recovery behavior:
// 120s, 300s, 600s, 600s, ...
func DefaultBackoff() *Backoff {
	return &Backoff{
		Initial:    2 * time.Minute,
		Cap:        10 * time.Minute,
		Multiplier: 2.5,
	}
}

// Next returns the interval for the nth consecutive throttle (1-based).
func (b *Backoff) Next(throttles int) time.Duration {
	d := float64(b.Initial)
	for i := 1; i < throttles; i++ {
		d *= b.Multiplier
	}
	if d > float64(b.Cap) {
		d = float64(b.Cap)
	}
	if d < float64(b.Initial) {
		d = float64(b.Initial)
	}
	return time.Duration(d)
}
