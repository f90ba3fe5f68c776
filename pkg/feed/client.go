package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// DefaultBaseURL is the Entur SIRI-SX REST endpoint.
const DefaultBaseURL = "https://api.entur.io/realtime/v1/rest/sx"

const (
	clientName = "nordlys-sxwatch"

	// Pagination ceilings. Hitting either yields a truncated partial
	// result, never an error.
	maxPages      = 20
	fetchDeadline = 30 * time.Second
)

// ErrThrottled marks an explicit rate-limit response (HTTP 429). The
// coordinator treats it differently from ordinary fetch failures, so it
// must stay distinguishable via errors.Is.
var ErrThrottled = errors.New("feed: request throttled")

// Client performs one logical fetch of all situations in a dataset,
// transparently paginating via the requestorId continuation token. The
// token is valid only within one multi-page round and is regenerated on
// every Fetch; upstream delta semantics for reused tokens are unreliable.
type Client struct {
	baseURL   string
	datasetID string
	maxSize   int
	budget    *RateBudget
	http      *http.Client
}

// NewClient creates a feed client. An empty baseURL selects the Entur
// endpoint; datasetID optionally narrows the feed to one codespace. A nil
// budget gets a default one.
func NewClient(baseURL, datasetID string, budget *RateBudget) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if budget == nil {
		budget = NewRateBudget(0)
	}
	return &Client{
		baseURL:   baseURL,
		datasetID: datasetID,
		budget:    budget,
		http:      &http.Client{Timeout: 10 * time.Second},
	}
}

// SetMaxPageSize asks the feed for at most n situations per page. Zero
// leaves the server default in place.
func (c *Client) SetMaxPageSize(n int) {
	c.maxSize = n
}

// Budget returns the rate budget the client reports into.
func (c *Client) Budget() *RateBudget {
	return c.budget
}

// Fetch retrieves all situations, following MoreData pages until the feed
// is drained or a ceiling is hit. Page requests share the client's rate
// budget. A 429 anywhere in the round returns ErrThrottled; other
// transport or parse failures return a plain fetch error.
func (c *Client) Fetch(ctx context.Context) (Result, error) {
	requestorID := uuid.NewString()
	started := time.Now()
	res := Result{FetchedAt: started}

	for page := 1; ; page++ {
		c.budget.Wait(ctx)
		if err := ctx.Err(); err != nil {
			return Result{}, fmt.Errorf("feed: fetch canceled: %w", err)
		}

		situations, more, err := c.fetchPage(ctx, requestorID)
		if err != nil {
			return Result{}, err
		}
		res.Situations = append(res.Situations, situations...)
		res.Pages = page

		if !more {
			break
		}
		if page >= maxPages {
			log.Printf("feed: page ceiling (%d) hit with MoreData still set, returning partial result", maxPages)
			res.Truncated = true
			break
		}
		if time.Since(started) >= fetchDeadline {
			log.Printf("feed: fetch deadline (%s) hit after %d pages, returning partial result", fetchDeadline, page)
			res.Truncated = true
			break
		}
		if !c.budget.CanProceed() {
			log.Printf("feed: rate budget exhausted after %d pages, returning partial result", page)
			res.Truncated = true
			break
		}
	}

	return res, nil
}

func (c *Client) fetchPage(ctx context.Context, requestorID string) ([]Situation, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.pageURL(requestorID), nil)
	if err != nil {
		return nil, false, fmt.Errorf("feed: build request: %w", err)
	}
	req.Header.Set("ET-Client-Name", clientName)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("feed: request failed: %w", err)
	}
	defer resp.Body.Close()

	// Quota headers are present on throttled responses too.
	c.budget.ObserveHeaders(resp.Header)

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, false, fmt.Errorf("feed: HTTP 429: %w", ErrThrottled)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("feed: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("feed: read body: %w", err)
	}

	// The feed sometimes declares the wrong Content-Type for a JSON body,
	// so the header never gates parsing.
	var envelope siriEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, false, fmt.Errorf("feed: decode body: %w", err)
	}

	delivery := envelope.Siri.ServiceDelivery
	var situations []Situation
	for _, sx := range delivery.SituationExchangeDelivery {
		for _, el := range sx.Situations.PtSituationElement {
			sit, err := parseSituation(el)
			if err != nil {
				log.Printf("feed: skipping situation %s: %v", el.SituationNumber.Value, err)
				continue
			}
			if len(sit.Lines) == 0 {
				// Not a line-scoped situation (stops, modes, ...); nothing
				// downstream can group it by.
				continue
			}
			situations = append(situations, sit)
		}
	}

	return situations, delivery.MoreData, nil
}

func (c *Client) pageURL(requestorID string) string {
	params := url.Values{}
	if c.datasetID != "" {
		params.Set("datasetId", c.datasetID)
	}
	params.Set("requestorId", requestorID)
	if c.maxSize > 0 {
		params.Set("maxSize", strconv.Itoa(c.maxSize))
	}
	return c.baseURL + "?" + params.Encode()
}

func parseSituation(el ptSituationElement) (Situation, error) {
	if len(el.ValidityPeriod) == 0 || el.ValidityPeriod[0].StartTime == "" {
		return Situation{}, errors.New("missing validity start")
	}
	period := el.ValidityPeriod[0]

	start, err := parseTime(period.StartTime)
	if err != nil {
		return Situation{}, fmt.Errorf("bad validity start %q: %w", period.StartTime, err)
	}

	var end *time.Time
	if period.EndTime != "" {
		t, err := parseTime(period.EndTime)
		if err != nil {
			return Situation{}, fmt.Errorf("bad validity end %q: %w", period.EndTime, err)
		}
		end = &t
	}

	sit := Situation{
		ID:       el.SituationNumber.Value,
		Progress: el.Progress,
		Start:    start,
		End:      end,
	}
	if len(el.Summary) > 0 {
		sit.Summary = el.Summary[0].Value
	}
	if len(el.Description) > 0 {
		sit.Description = el.Description[0].Value
	}

	if el.Affects.Networks != nil {
		for _, network := range el.Affects.Networks.AffectedNetwork {
			for _, line := range network.AffectedLine {
				if ref := line.LineRef.Value; ref != "" {
					sit.Lines = append(sit.Lines, ref)
				}
			}
		}
	}

	return sit, nil
}

// parseTime accepts the feed's ISO-8601 timestamps, with or without an
// explicit zone offset.
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02T15:04:05", s)
}
