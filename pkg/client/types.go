package client

import (
	"time"

	"github.com/nordlys-io/sxwatch/pkg/situation"
)

// Types mirror the daemon's API responses. They are redeclared here
// rather than imported from pkg/poll and pkg/journal so SDK consumers
// (CLI, TUI) do not link the daemon's metrics registry or CGO SQLite
// driver.

// View is the daemon's current per-line snapshot plus freshness metadata.
type View struct {
	Lines         map[string]situation.LineSnapshot `json:"lines"`
	FetchedAt     time.Time                         `json:"fetched_at"`
	Fresh         bool                              `json:"fresh"`
	Truncated     bool                              `json:"truncated"`
	BackingOff    bool                              `json:"backing_off"`
	ThrottleCount int                               `json:"throttle_count"`
}

// Health mirrors GET /v1/health.
type Health struct {
	Status        string    `json:"status"`
	Fresh         bool      `json:"fresh"`
	BackingOff    bool      `json:"backing_off"`
	ThrottleCount int       `json:"throttle_count"`
	FetchedAt     time.Time `json:"fetched_at,omitempty"`
	Truncated     bool      `json:"truncated"`
	LineCount     int       `json:"line_count"`
}

// Event mirrors one journal entry from GET /v1/events.
type Event struct {
	ID      int64     `json:"id"`
	Ts      time.Time `json:"ts"`
	Kind    string    `json:"kind"`
	LineRef string    `json:"line_ref,omitempty"`
	Detail  string    `json:"detail,omitempty"`
}
