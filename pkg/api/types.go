package api

import "time"

// HealthResponse reports daemon liveness and snapshot freshness. Fresh is
// false while cached data is served under backoff.
type HealthResponse struct {
	Status        string    `json:"status"`
	Fresh         bool      `json:"fresh"`
	BackingOff    bool      `json:"backing_off"`
	ThrottleCount int       `json:"throttle_count"`
	FetchedAt     time.Time `json:"fetched_at,omitempty"`
	Truncated     bool      `json:"truncated"`
	LineCount     int       `json:"line_count"`
}
