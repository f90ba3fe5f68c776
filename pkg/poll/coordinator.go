package poll

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nordlys-io/sxwatch/pkg/feed"
	"github.com/nordlys-io/sxwatch/pkg/situation"
)

const (
	// DefaultInterval is the normal polling cadence.
	DefaultInterval = 60 * time.Second

	// DefaultResetAfter is how long throttle-free operation must last
	// before the throttle counter resets to zero.
	DefaultResetAfter = 30 * time.Minute

	historySize = 10
)

// Journal event kinds emitted by the coordinator.
const (
	KindPollSuccess       = "poll_success"
	KindPollThrottled     = "poll_throttled"
	KindPollError         = "poll_error"
	KindDisruptionNew     = "disruption_new"
	KindDisruptionRemoved = "disruption_removed"
)

// ErrNoCache is returned when a poll is throttled before any snapshot has
// ever been cached: there is nothing to serve.
var ErrNoCache = errors.New("poll: throttled with no cached snapshot")

// Fetcher is the feed access the coordinator drives. *feed.Client
// satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context) (feed.Result, error)
}

// Journal receives operational events (poll outcomes, disruption
// appear/disappear notices). Optional.
type Journal interface {
	Append(ctx context.Context, kind, lineRef, detail string) error
}

// Publisher pushes finished snapshots to out-of-process consumers.
// Optional.
type Publisher interface {
	Publish(ctx context.Context, view View) error
}

// View is the immutable per-cycle result handed to external collaborators.
// Fresh distinguishes data fetched this cycle from cached data served
// under backoff.
type View struct {
	Lines         map[string]situation.LineSnapshot `json:"lines"`
	FetchedAt     time.Time                         `json:"fetched_at"`
	Fresh         bool                              `json:"fresh"`
	Truncated     bool                              `json:"truncated"`
	BackingOff    bool                              `json:"backing_off"`
	ThrottleCount int                               `json:"throttle_count"`
}

// Config carries the coordinator's construction-time settings. Overrides
// are resolved once here; consuming components never re-resolve
// configuration.
type Config struct {
	Lines      []string
	Interval   time.Duration
	Backoff    *Backoff
	ResetAfter time.Duration
	Journal    Journal
	Publisher  Publisher
	Budget     *feed.RateBudget
}

// Coordinator owns the polling cadence and the throttle/backoff state
// machine. One coordinator serves one line-filter set; independent
// instances share no state.
type Coordinator struct {
	fetcher        Fetcher
	journal        Journal
	publisher      Publisher
	budget         *feed.RateBudget
	backoff        *Backoff
	normalInterval time.Duration
	resetAfter     time.Duration
	now            func() time.Time

	mu           sync.RWMutex
	lines        []string
	interval     time.Duration
	throttles    int
	inBackoff    bool
	lastThrottle time.Time
	fresh        bool
	cached       *cachedSnapshot
	prev         map[string]map[string]struct{}
	history      *requestHistory
}

// cachedSnapshot is the last-good aggregation result. It is replaced
// wholesale on success and only ever read during throttled cycles.
type cachedSnapshot struct {
	lines     map[string]situation.LineSnapshot
	fetchedAt time.Time
	truncated bool
}

type disruptionChange struct {
	kind    string
	lineRef string
	detail  string
}

// New creates a coordinator. Zero config fields get defaults.
func New(fetcher Fetcher, cfg Config) *Coordinator {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	backoff := cfg.Backoff
	if backoff == nil {
		backoff = DefaultBackoff()
	}
	resetAfter := cfg.ResetAfter
	if resetAfter <= 0 {
		resetAfter = DefaultResetAfter
	}
	return &Coordinator{
		fetcher:        fetcher,
		journal:        cfg.Journal,
		publisher:      cfg.Publisher,
		budget:         cfg.Budget,
		backoff:        backoff,
		normalInterval: interval,
		resetAfter:     resetAfter,
		now:            time.Now,
		lines:          append([]string(nil), cfg.Lines...),
		interval:       interval,
		prev:           make(map[string]map[string]struct{}),
		history:        newRequestHistory(historySize),
	}
}

// Run polls until ctx is canceled. The first poll happens immediately; the
// delay between polls follows the backoff state machine.
func (c *Coordinator) Run(ctx context.Context) {
	log.Printf("poll: coordinator started (%d lines, interval %s)", len(c.Lines()), c.normalInterval)

	if _, err := c.PollOnce(ctx); err != nil && ctx.Err() == nil {
		log.Printf("poll: initial poll failed: %v", err)
	}

	for {
		timer := time.NewTimer(c.CurrentInterval())
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Println("poll: coordinator stopped")
			return
		case <-timer.C:
			if _, err := c.PollOnce(ctx); err != nil && ctx.Err() == nil {
				log.Printf("poll: poll failed: %v", err)
			}
		}
	}
}

// PollOnce performs one fetch-classify-aggregate cycle. On success the
// cached snapshot is swapped atomically and the fresh view returned. On
// throttling the cached snapshot is served instead (ErrNoCache when there
// is none yet). Other fetch failures return an error and leave the cadence
// and cache untouched.
func (c *Coordinator) PollOnce(ctx context.Context) (View, error) {
	started := c.now()
	res, err := c.fetcher.Fetch(ctx)
	elapsed := c.now().Sub(started)

	if err != nil {
		if errors.Is(err, feed.ErrThrottled) {
			return c.handleThrottle(ctx, started, elapsed, err)
		}

		c.mu.Lock()
		c.history.add(requestRecord{Timestamp: started, Duration: elapsed, Status: "error", Err: err.Error()})
		c.mu.Unlock()

		PollsTotal.WithLabelValues("error").Inc()
		c.journalAppend(ctx, KindPollError, "", err.Error())
		return View{}, fmt.Errorf("poll: fetch failed: %w", err)
	}

	now := c.now()
	lines := c.Lines()
	aggregated := situation.Aggregate(lines, res.Situations, now)

	c.mu.Lock()
	c.history.add(requestRecord{Timestamp: started, Duration: elapsed, Status: "success", Lines: len(aggregated)})
	if c.inBackoff {
		log.Printf("poll: feed access recovered after throttling, interval back to %s", c.normalInterval)
		c.inBackoff = false
		c.interval = c.normalInterval
	}
	if c.throttles > 0 && now.Sub(c.lastThrottle) > c.resetAfter {
		log.Printf("poll: throttle counter reset after %s without throttling", c.resetAfter)
		c.throttles = 0
	}
	c.cached = &cachedSnapshot{lines: aggregated, fetchedAt: now, truncated: res.Truncated}
	c.fresh = true
	changes := c.diffDisruptionsLocked(aggregated)
	view := c.viewLocked()
	c.mu.Unlock()

	PollsTotal.WithLabelValues("success").Inc()
	c.updateMetrics(view)

	for _, ch := range changes {
		log.Printf("poll: %s on %s: %s", ch.kind, ch.lineRef, ch.detail)
		c.journalAppend(ctx, ch.kind, ch.lineRef, ch.detail)
	}
	c.journalAppend(ctx, KindPollSuccess, "", fmt.Sprintf("pages=%d truncated=%t lines=%d", res.Pages, res.Truncated, len(aggregated)))

	if c.publisher != nil {
		if err := c.publisher.Publish(ctx, view); err != nil {
			log.Printf("poll: snapshot publish failed: %v", err)
		}
	}

	return view, nil
}

func (c *Coordinator) handleThrottle(ctx context.Context, started time.Time, elapsed time.Duration, cause error) (View, error) {
	now := c.now()

	c.mu.Lock()
	c.history.add(requestRecord{Timestamp: started, Duration: elapsed, Status: "throttled", Err: cause.Error()})
	c.throttles++
	c.inBackoff = true
	c.lastThrottle = now
	c.interval = c.backoff.Next(c.throttles)
	c.fresh = false
	throttles := c.throttles
	interval := c.interval
	history := c.history.all()
	view := c.viewLocked()
	hasCache := c.cached != nil
	c.mu.Unlock()

	log.Printf("poll: rate limit hit (throttle #%d), backing off %s and preserving last known state", throttles, interval)
	for i, r := range history {
		detail := fmt.Sprintf("lines=%d", r.Lines)
		if r.Err != "" {
			detail = "error=" + r.Err
		}
		log.Printf("poll:   request %d/%d: %s status=%s duration=%s %s",
			i+1, len(history), r.Timestamp.Format("15:04:05.000"), r.Status, r.Duration.Round(time.Millisecond), detail)
	}

	PollsTotal.WithLabelValues("throttled").Inc()
	c.updateMetrics(view)
	c.journalAppend(ctx, KindPollThrottled, "", fmt.Sprintf("throttle=%d backoff=%s", throttles, interval))

	if !hasCache {
		return View{}, fmt.Errorf("%w: %v", ErrNoCache, cause)
	}
	return view, nil
}

// View returns the current per-line view. Before the first successful poll
// the view is empty and not fresh.
func (c *Coordinator) View() View {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.viewLocked()
}

func (c *Coordinator) viewLocked() View {
	view := View{
		Fresh:         c.fresh,
		BackingOff:    c.inBackoff,
		ThrottleCount: c.throttles,
	}
	if c.cached != nil {
		view.Lines = c.cached.lines
		view.FetchedAt = c.cached.fetchedAt
		view.Truncated = c.cached.truncated
	}
	return view
}

// Lines returns the configured line filter. Collaborators diff successive
// results to track additions and removals themselves.
func (c *Coordinator) Lines() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.lines...)
}

// UpdateLines replaces the line filter. The change takes effect on the
// next poll; the cached snapshot keeps the old grouping until then.
func (c *Coordinator) UpdateLines(lines []string) {
	c.mu.Lock()
	c.lines = append([]string(nil), lines...)
	c.mu.Unlock()
	log.Printf("poll: line filter updated (%d lines)", len(lines))
}

// CurrentInterval returns the delay before the next poll.
func (c *Coordinator) CurrentInterval() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.interval
}

// diffDisruptionsLocked compares the new snapshot's disruption identity
// sets against the previous poll and returns appear/disappear notices.
// Caller holds c.mu.
func (c *Coordinator) diffDisruptionsLocked(snap map[string]situation.LineSnapshot) []disruptionChange {
	current := make(map[string]map[string]struct{}, len(snap))
	for ref, line := range snap {
		ids := make(map[string]struct{}, len(line.Items))
		for _, item := range line.Items {
			if item.Summary == situation.StateNormal {
				continue
			}
			ids[disruptionIdentity(item)] = struct{}{}
		}
		current[ref] = ids
	}

	var changes []disruptionChange
	for ref, ids := range current {
		previous := c.prev[ref]
		for id := range ids {
			if _, ok := previous[id]; !ok {
				changes = append(changes, disruptionChange{kind: KindDisruptionNew, lineRef: ref, detail: id})
			}
		}
		for id := range previous {
			if _, ok := ids[id]; !ok {
				changes = append(changes, disruptionChange{kind: KindDisruptionRemoved, lineRef: ref, detail: id})
			}
		}
	}

	c.prev = current
	return changes
}

// disruptionIdentity builds a stable identity for change tracking: a
// summary prefix plus status and validity start is unique enough.
func disruptionIdentity(item situation.Classified) string {
	summary := item.Summary
	if len(summary) > 50 {
		summary = summary[:50]
	}
	return fmt.Sprintf("%s|%s|%s", summary, item.Status, item.Start.Format(time.RFC3339))
}

func (c *Coordinator) journalAppend(ctx context.Context, kind, lineRef, detail string) {
	if c.journal == nil {
		return
	}
	if err := c.journal.Append(ctx, kind, lineRef, detail); err != nil && ctx.Err() == nil {
		log.Printf("poll: journal append failed: %v", err)
	}
}

func (c *Coordinator) updateMetrics(view View) {
	PollIntervalSeconds.Set(c.CurrentInterval().Seconds())
	ConsecutiveThrottles.Set(float64(view.ThrottleCount))
	if view.Fresh {
		SnapshotFresh.Set(1)
	} else {
		SnapshotFresh.Set(0)
	}

	LineDisruptions.Reset()
	for ref, line := range view.Lines {
		for status, count := range line.Counts {
			LineDisruptions.WithLabelValues(ref, string(status)).Set(float64(count))
		}
	}

	if c.budget != nil {
		allowed, available, _, _ := c.budget.Quota()
		if allowed >= 0 {
			RateLimitAllowed.Set(float64(allowed))
		}
		if available >= 0 {
			RateLimitAvailable.Set(float64(available))
		}
	}
}
