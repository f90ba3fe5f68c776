package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/nordlys-io/sxwatch/pkg/client"
)

// Server adapts the sxwatch daemon to the Model Context Protocol.
type Server struct {
	mcpServer *server.MCPServer
	apiClient *client.Client
}

// NewServer creates a new MCP server instance.
func NewServer(apiURL string) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"sxwatch",
			"1.0.0",
		),
		apiClient: client.NewClient(apiURL),
	}
	s.registerResources()
	s.registerTools()
	s.registerPrompts()
	return s
}

// Serve starts the MCP server on stdio.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcpServer)
}

// --- Resources ---

func (s *Server) registerResources() {
	// sxwatch://lines
	s.mcpServer.AddResource(mcp.NewResource(
		"sxwatch://lines",
		"Per-Line Disruption Snapshot",
		mcp.WithResourceDescription("Current classified disruptions for every monitored transit line"),
		mcp.WithMIMEType("application/json"),
	), s.handleReadLines)

	// sxwatch://events
	s.mcpServer.AddResource(mcp.NewResource(
		"sxwatch://events",
		"Operational Event Journal",
		mcp.WithResourceDescription("Recent poll outcomes, throttle episodes and disruption changes"),
		mcp.WithMIMEType("application/json"),
	), s.handleReadEvents)
}

// --- Tools ---

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool(
		"line_status",
		mcp.WithDescription("Get the current disruption status for one transit line. Returns the primary summary, status counts and every classified disruption."),
		mcp.WithString("line_ref", mcp.Required(), mcp.Description("The line reference (e.g. 'SKY:Line:1')")),
	), s.handleLineStatus)

	s.mcpServer.AddTool(mcp.NewTool(
		"feed_health",
		mcp.WithDescription("Check whether the watcher is serving fresh data or cached data under rate-limit backoff."),
	), s.handleFeedHealth)
}

// --- Prompts ---

func (s *Server) registerPrompts() {
	s.mcpServer.AddPrompt(mcp.NewPrompt(
		"sxwatch-aware",
		mcp.WithPromptDescription("Provides context about sxwatch concepts (lines, statuses, freshness)"),
	), s.handleGetPrompt)
}

// --- Handlers ---

func (s *Server) handleReadLines(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	view, err := s.apiClient.Lines(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch lines: %w", err)
	}

	data, err := json.MarshalIndent(view, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal lines: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleReadEvents(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	events, err := s.apiClient.Events(ctx, 50)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch events: %w", err)
	}

	data, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal events: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleLineStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref := mcp.ParseString(request, "line_ref", "")
	if ref == "" {
		return mcp.NewToolResultError("line_ref is required"), nil
	}

	snap, err := s.apiClient.Line(ctx, ref)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("API error: %v", err)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\n", snap.LineRef, snap.Primary)
	fmt.Fprintf(&b, "Counts: open=%d planned=%d expired=%d\n",
		snap.Counts["open"], snap.Counts["planned"], snap.Counts["expired"])
	for _, item := range snap.Items {
		end := "until further notice"
		if item.End != nil {
			end = "to " + item.End.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(&b, "- [%s] %s (from %s, %s)\n",
			item.Status, item.Summary, item.Start.Format("2006-01-02 15:04"), end)
	}

	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) handleFeedHealth(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	health, err := s.apiClient.Health(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("API error: %v", err)), nil
	}

	msg := fmt.Sprintf("Status: %s\nFresh: %t\nBacking off: %t\nConsecutive throttles: %d\nLast fetch: %s",
		health.Status, health.Fresh, health.BackingOff, health.ThrottleCount, health.FetchedAt.Format("2006-01-02 15:04:05"))
	return mcp.NewToolResultText(msg), nil
}

func (s *Server) handleGetPrompt(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	name := request.Params.Name
	if name != "sxwatch-aware" {
		return nil, fmt.Errorf("prompt not found: %s", name)
	}

	promptText := `You are interacting with sxwatch, a transit disruption watcher.

Concepts:
- Line: A monitored transit line, identified by a reference like 'SKY:Line:1'.
- Disruption: A situation affecting one or more lines, classified as open, planned or expired.
- Primary: A one-line summary of the most urgent disruptions on a line.
- Freshness: Whether the snapshot comes from a recent feed fetch or from cache
  while the watcher backs off from upstream rate limiting.

Use the 'line_status' tool to inspect one line, and 'feed_health' to check
whether the data is fresh before relying on it. When the watcher reports
backing_off, the snapshot may be stale; say so to the user.
`

	return mcp.NewGetPromptResult(
		"sxwatch-aware",
		[]mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(promptText)),
		},
	), nil
}
