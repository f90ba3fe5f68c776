package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/nordlys-io/sxwatch/pkg/client"
)

var (
	Version   = "v1.0.0"
	Commit    = "unknown"
	BuildTime = "unknown"
)

const usage = `Usage: sxwatch <command>

Commands:
  health            Show daemon freshness and backoff state
  lines             Show the snapshot for every monitored line
  line <line-ref>   Show the snapshot for one line
  events [n]        Show the n most recent journal events (default 20)

Environment:
  SXWATCH_ADDR      Daemon endpoint (default http://127.0.0.1:8091)
`

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(1)
	}

	endpoint := os.Getenv("SXWATCH_ADDR")
	if endpoint != "" && !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "http://" + endpoint
	}
	c := client.NewClient(endpoint)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "health":
		err = showHealth(ctx, c)
	case "lines":
		err = showLines(ctx, c)
	case "line":
		if len(os.Args) < 3 {
			fmt.Println("Usage: sxwatch line <line-ref>")
			os.Exit(1)
		}
		err = showLine(ctx, c, os.Args[2])
	case "events":
		limit := 20
		if len(os.Args) > 2 {
			if _, perr := fmt.Sscanf(os.Args[2], "%d", &limit); perr != nil {
				fmt.Printf("Invalid event count: %s\n", os.Args[2])
				os.Exit(1)
			}
		}
		err = showEvents(ctx, c, limit)
	default:
		fmt.Print(usage)
		os.Exit(1)
	}

	if err != nil {
		fmt.Printf("Error: %v\n", err)
		fmt.Println("Is sxwatch-d running?")
		os.Exit(1)
	}
}

func showHealth(ctx context.Context, c *client.Client) error {
	h, err := c.Health(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Status:      %s\n", h.Status)
	fmt.Printf("Fresh:       %t\n", h.Fresh)
	fmt.Printf("Backing off: %t\n", h.BackingOff)
	if h.ThrottleCount > 0 {
		fmt.Printf("Throttles:   %d\n", h.ThrottleCount)
	}
	if !h.FetchedAt.IsZero() {
		fmt.Printf("Last fetch:  %s\n", h.FetchedAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Printf("Lines:       %d\n", h.LineCount)
	if h.Truncated {
		fmt.Println("WARNING: last fetch was truncated; snapshot may be incomplete")
	}
	return nil
}

func showLines(ctx context.Context, c *client.Client) error {
	view, err := c.Lines(ctx)
	if err != nil {
		return err
	}

	refs := make([]string, 0, len(view.Lines))
	for ref := range view.Lines {
		refs = append(refs, ref)
	}
	sort.Strings(refs)

	for _, ref := range refs {
		snap := view.Lines[ref]
		fmt.Printf("%s: %s\n", ref, snap.Primary)
	}
	if !view.Fresh {
		fmt.Println("(served from cache while backing off)")
	}
	return nil
}

func showLine(ctx context.Context, c *client.Client, ref string) error {
	snap, err := c.Line(ctx, ref)
	if err != nil {
		return err
	}

	fmt.Printf("%s: %s\n", snap.LineRef, snap.Primary)
	for _, item := range snap.Items {
		end := "until further notice"
		if item.End != nil {
			end = "to " + item.End.Format("2006-01-02 15:04")
		}
		fmt.Printf("  [%-7s] %s (from %s, %s)\n",
			item.Status, item.Summary, item.Start.Format("2006-01-02 15:04"), end)
	}
	return nil
}

func showEvents(ctx context.Context, c *client.Client, limit int) error {
	events, err := c.Events(ctx, limit)
	if err != nil {
		return err
	}

	for _, ev := range events {
		line := ev.LineRef
		if line == "" {
			line = "-"
		}
		fmt.Printf("%s  %-20s %-12s %s\n", ev.Ts.Format("2006-01-02 15:04:05"), ev.Kind, line, ev.Detail)
	}
	return nil
}
