package situation

import (
	"strings"
	"time"
)

// Status classifies a disruption record relative to the current time.
type Status string

const (
	StatusOpen    Status = "open"
	StatusPlanned Status = "planned"
	StatusExpired Status = "expired"
)

const progressClosed = "closed"

// Resolve classifies one record from its validity window and the feed's
// own progress flag. Time-based truth wins over the flag: a future-dated
// record can carry a stale "closed" flag and must still classify as
// planned, never expired. The comparison is case-insensitive and
// unrecognized flag values count as active, so an oddly flagged record
// stays visible rather than being suppressed.
//
// The result depends only on the arguments; identical inputs always
// classify identically.
func Resolve(now, start time.Time, end *time.Time, progress string) Status {
	closed := strings.EqualFold(strings.TrimSpace(progress), progressClosed)
	switch {
	case now.Before(start):
		return StatusPlanned
	case end != nil && now.After(*end):
		return StatusExpired
	case closed:
		return StatusExpired
	default:
		return StatusOpen
	}
}

// sortPriority orders statuses for display: open disruptions always
// surface first.
func sortPriority(s Status) int {
	switch s {
	case StatusOpen:
		return 0
	case StatusPlanned:
		return 1
	case StatusExpired:
		return 2
	default:
		return 3
	}
}
