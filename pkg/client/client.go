package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/nordlys-io/sxwatch/pkg/situation"
)

// Client is the sxwatch daemon SDK client.
type Client struct {
	endpoint string
	http     *http.Client
}

// NewClient creates a new client.
// endpoint defaults to "http://127.0.0.1:8091" if empty.
func NewClient(endpoint string) *Client {
	if endpoint == "" {
		endpoint = "http://127.0.0.1:8091"
	}
	return &Client{
		endpoint: endpoint,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Health checks the daemon's liveness and freshness state.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var h Health
	if err := c.getJSON(ctx, "/v1/health", &h); err != nil {
		return Health{}, err
	}
	return h, nil
}

// Lines fetches the full per-line snapshot.
func (c *Client) Lines(ctx context.Context) (View, error) {
	var v View
	if err := c.getJSON(ctx, "/v1/lines", &v); err != nil {
		return View{}, err
	}
	return v, nil
}

// Line fetches the snapshot for a single line reference.
func (c *Client) Line(ctx context.Context, ref string) (situation.LineSnapshot, error) {
	var snap situation.LineSnapshot
	if err := c.getJSON(ctx, "/v1/lines/"+url.PathEscape(ref), &snap); err != nil {
		return situation.LineSnapshot{}, err
	}
	return snap, nil
}

// Events fetches recent journal events from the daemon.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	var events []Event
	if err := c.getJSON(ctx, fmt.Sprintf("/v1/events?limit=%d", limit), &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
