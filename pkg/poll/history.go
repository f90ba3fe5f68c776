package poll

import "time"

// requestRecord is one entry in the bounded request history kept for
// diagnostics. The full history is dumped to the log on every throttle
// event to help explain what led to it.
type requestRecord struct {
	Timestamp time.Time
	Duration  time.Duration
	Status    string
	Lines     int
	Err       string
}

type requestHistory struct {
	max     int
	entries []requestRecord
}

func newRequestHistory(max int) *requestHistory {
	return &requestHistory{max: max}
}

func (h *requestHistory) add(r requestRecord) {
	h.entries = append(h.entries, r)
	if len(h.entries) > h.max {
		h.entries = h.entries[len(h.entries)-h.max:]
	}
}

func (h *requestHistory) all() []requestRecord {
	out := make([]requestRecord, len(h.entries))
	copy(out, h.entries)
	return out
}
