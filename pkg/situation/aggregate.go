package situation

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/nordlys-io/sxwatch/pkg/feed"
)

// StateNormal is the synthetic summary used when a line has no current
// disruptions.
const StateNormal = "Normal service"

const (
	primaryMaxLen    = 255
	primarySeparator = " | "
)

// Classified is a disruption record plus its derived status.
type Classified struct {
	feed.Situation
	Status Status `json:"status"`
}

// LineSnapshot is the immutable per-line view produced by one poll cycle:
// every classified disruption affecting the line, ordered by relevance,
// plus the derived primary display string and per-status counts.
type LineSnapshot struct {
	LineRef string         `json:"line_ref"`
	Items   []Classified   `json:"items"`
	Primary string         `json:"primary"`
	Counts  map[Status]int `json:"counts"`
}

// Aggregate builds the per-line view for the configured lines. A record
// naming several lines lands in every matching group. Within a group,
// items sort by status priority (open before planned before expired) and
// then by validity start, most recent first, which keeps the primary entry
// the most relevant currently-active disruption. Lines with no matching
// record get a single synthetic "Normal service" entry.
func Aggregate(lines []string, records []feed.Situation, now time.Time) map[string]LineSnapshot {
	snapshots := make(map[string]LineSnapshot, len(lines))

	for _, ref := range lines {
		var items []Classified
		for _, rec := range records {
			for _, recLine := range rec.Lines {
				if recLine == ref {
					items = append(items, Classified{
						Situation: rec,
						Status:    Resolve(now, rec.Start, rec.End, rec.Progress),
					})
					// A record may name the same line more than once; one
					// entry per record is enough.
					break
				}
			}
		}

		if len(items) == 0 {
			items = []Classified{{
				Situation: feed.Situation{
					Summary:     StateNormal,
					Description: StateNormal,
					Progress:    "normal",
					Start:       now,
					Lines:       []string{ref},
				},
				Status: StatusOpen,
			}}
		} else {
			sort.SliceStable(items, func(i, j int) bool {
				pi, pj := sortPriority(items[i].Status), sortPriority(items[j].Status)
				if pi != pj {
					return pi < pj
				}
				return items[i].Start.After(items[j].Start)
			})
		}

		counts := make(map[Status]int, 3)
		for _, it := range items {
			counts[it.Status]++
		}

		snapshots[ref] = LineSnapshot{
			LineRef: ref,
			Items:   items,
			Primary: primaryDisplay(items),
			Counts:  counts,
		}
	}

	return snapshots
}

// primaryDisplay derives the display string for the group. When several
// records share the top-priority status their summaries are concatenated
// so co-occurring disruptions are not silently hidden; past the length
// ceiling the string falls back to a count-based summary.
func primaryDisplay(items []Classified) string {
	top := items[0].Status
	var summaries []string
	for _, it := range items {
		if it.Status == top {
			summaries = append(summaries, it.Summary)
		}
	}

	joined := strings.Join(summaries, primarySeparator)
	if len(summaries) == 1 || len(joined) <= primaryMaxLen {
		return joined
	}
	return fmt.Sprintf("%d %s disruptions: %s", len(summaries), top, summaries[0])
}
