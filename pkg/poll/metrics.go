package poll

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// PollsTotal counts poll cycles by outcome.
	PollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sxwatch_polls_total",
			Help: "Total poll cycles by outcome",
		},
		[]string{"outcome"},
	)

	// PollIntervalSeconds tracks the current polling interval, which grows
	// under backoff.
	PollIntervalSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sxwatch_poll_interval_seconds",
			Help: "Current polling interval in seconds",
		},
	)

	// ConsecutiveThrottles tracks the throttle counter driving backoff.
	ConsecutiveThrottles = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sxwatch_consecutive_throttles",
			Help: "Consecutive throttling responses since the last reset",
		},
	)

	// SnapshotFresh is 1 when the last cycle produced fresh data and 0
	// while cached data is served under backoff.
	SnapshotFresh = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sxwatch_snapshot_fresh",
			Help: "1 when the current snapshot is fresh, 0 when serving cached data",
		},
	)

	// LineDisruptions tracks classified disruption counts per line.
	LineDisruptions = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sxwatch_line_disruptions",
			Help: "Current disruption count per line and status",
		},
		[]string{"line_ref", "status"},
	)

	// RateLimitAllowed and RateLimitAvailable mirror the feed's quota
	// headers.
	RateLimitAllowed = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sxwatch_rate_limit_allowed",
			Help: "Request quota ceiling reported by the feed",
		},
	)
	RateLimitAvailable = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sxwatch_rate_limit_available",
			Help: "Remaining request quota reported by the feed",
		},
	)
)

func init() {
	prometheus.MustRegister(PollsTotal)
	prometheus.MustRegister(PollIntervalSeconds)
	prometheus.MustRegister(ConsecutiveThrottles)
	prometheus.MustRegister(SnapshotFresh)
	prometheus.MustRegister(LineDisruptions)
	prometheus.MustRegister(RateLimitAllowed)
	prometheus.MustRegister(RateLimitAvailable)
}
