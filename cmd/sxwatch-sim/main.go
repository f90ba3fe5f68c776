// Command sxwatch-sim serves a mock situation exchange feed for local
// development. It paginates via requestorId cursors, emits rate-limit
// headers, and can inject 429 rounds to exercise the backoff path. Like
// the real feed, it deliberately serves JSON under a text content type.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"
)

type simConfig struct {
	addr          string
	dataset       string
	situations    int
	pageSize      int
	quota         int64
	throttleEvery int
	lines         int
}

type simServer struct {
	cfg simConfig

	mu      sync.Mutex
	cursors map[string]int
	rounds  int
	used    int64

	records []map[string]any
}

func main() {
	var cfg simConfig
	flag.StringVar(&cfg.addr, "addr", "127.0.0.1:9191", "listen address")
	flag.StringVar(&cfg.dataset, "dataset", "SIM", "dataset the mock feed claims to serve")
	flag.IntVar(&cfg.situations, "situations", 25, "total situations in the feed")
	flag.IntVar(&cfg.pageSize, "page-size", 10, "situations per page when maxSize is not given")
	flag.Int64Var(&cfg.quota, "quota", 1000, "rate-limit-allowed reported in headers")
	flag.IntVar(&cfg.throttleEvery, "throttle-every", 0, "reject every Nth polling round with 429 (0 disables)")
	flag.IntVar(&cfg.lines, "lines", 5, "number of distinct line refs situations are spread over")
	flag.Parse()

	s := &simServer{
		cfg:     cfg,
		cursors: make(map[string]int),
		records: buildSituations(cfg),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /sx", s.handleSX)

	log.Printf("sim: mock feed listening on %s (%d situations, %d per page, throttle-every=%d)",
		cfg.addr, cfg.situations, cfg.pageSize, cfg.throttleEvery)
	srv := &http.Server{Addr: cfg.addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	if err := srv.ListenAndServe(); err != nil {
		log.Fatalf("sim: server failed: %v", err)
	}
}

func (s *simServer) handleSX(w http.ResponseWriter, r *http.Request) {
	requestor := r.URL.Query().Get("requestorId")
	if requestor == "" {
		http.Error(w, "requestorId is required", http.StatusBadRequest)
		return
	}
	if ds := r.URL.Query().Get("datasetId"); ds != s.cfg.dataset {
		http.Error(w, fmt.Sprintf("unknown dataset %q", ds), http.StatusNotFound)
		return
	}

	pageSize := s.cfg.pageSize
	if v := r.URL.Query().Get("maxSize"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "invalid maxSize", http.StatusBadRequest)
			return
		}
		pageSize = n
	}

	s.mu.Lock()
	offset, seen := s.cursors[requestor]
	if !seen {
		// A fresh requestorId starts a new polling round.
		s.rounds++
	}
	round := s.rounds
	s.used++
	used := s.used
	throttle := s.cfg.throttleEvery > 0 && !seen && round%s.cfg.throttleEvery == 0

	var page []map[string]any
	more := false
	if !throttle {
		end := offset + pageSize
		if end > len(s.records) {
			end = len(s.records)
		}
		page = s.records[offset:end]
		more = end < len(s.records)
		if more {
			s.cursors[requestor] = end
		} else {
			delete(s.cursors, requestor)
		}
	}
	s.mu.Unlock()

	available := s.cfg.quota - used
	if available < 0 {
		available = 0
	}
	w.Header().Set("rate-limit-allowed", strconv.FormatInt(s.cfg.quota, 10))
	w.Header().Set("rate-limit-available", strconv.FormatInt(available, 10))
	w.Header().Set("rate-limit-used", strconv.FormatInt(used, 10))
	w.Header().Set("rate-limit-expiry-time", time.Now().Add(time.Minute).UTC().Format(time.RFC3339))

	if throttle {
		log.Printf("sim: throttling round %d (requestor %s)", round, requestor)
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
		return
	}

	body := map[string]any{
		"Siri": map[string]any{
			"ServiceDelivery": map[string]any{
				"MoreData": more,
				"SituationExchangeDelivery": []any{
					map[string]any{
						"Situations": map[string]any{
							"PtSituationElement": page,
						},
					},
				},
			},
		},
	}

	// The real feed labels JSON bodies as plain text; keep that quirk so
	// clients cannot cheat by trusting the content type.
	w.Header().Set("Content-Type", "text/plain;charset=UTF-8")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("sim: failed to encode response: %v", err)
	}
}

// buildSituations spreads synthetic disruptions over the configured lines
// with a mix of open, planned and expired validity windows.
func buildSituations(cfg simConfig) []map[string]any {
	now := time.Now().UTC()
	records := make([]map[string]any, 0, cfg.situations)

	for i := 0; i < cfg.situations; i++ {
		lineRef := fmt.Sprintf("%s:Line:%d", cfg.dataset, i%cfg.lines+1)

		var start, end time.Time
		progress := "open"
		switch i % 3 {
		case 0: // currently active
			start = now.Add(-2 * time.Hour)
			end = now.Add(4 * time.Hour)
		case 1: // planned for tomorrow
			start = now.Add(24 * time.Hour)
			end = now.Add(30 * time.Hour)
		case 2: // over and closed
			start = now.Add(-48 * time.Hour)
			end = now.Add(-24 * time.Hour)
			progress = "closed"
		}

		records = append(records, map[string]any{
			"SituationNumber": map[string]any{"value": fmt.Sprintf("%s:SituationNumber:%d", cfg.dataset, i+1)},
			"Progress":        progress,
			"ValidityPeriod": []any{map[string]any{
				"StartTime": start.Format(time.RFC3339),
				"EndTime":   end.Format(time.RFC3339),
			}},
			"Summary":     []any{map[string]any{"value": fmt.Sprintf("Simulated disruption %d on %s", i+1, lineRef)}},
			"Description": []any{map[string]any{"value": "Generated by sxwatch-sim for local testing."}},
			"Affects": map[string]any{
				"Networks": map[string]any{
					"AffectedNetwork": []any{map[string]any{
						"AffectedLine": []any{map[string]any{
							"LineRef": map[string]any{"value": lineRef},
						}},
					}},
				},
			},
		})
	}

	return records
}
