package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nordlys-io/sxwatch/pkg/client"
)

// Config
const (
	pollRate       = time.Second
	maxEvents      = 20
	viewportHeight = 12
)

// Styles
var (
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			Width(100)

	paneStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1).
			Width(100)

	eventTimeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Width(20)
	eventLineStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("99"))

	openStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")) // Red
	plannedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")) // Orange
	normalStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))  // Green
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))  // Blue
)

type tickMsg time.Time

type dataMsg struct {
	view   client.View
	events []client.Event
	err    error
}

type model struct {
	api      *client.Client
	spinner  spinner.Model
	viewport viewport.Model
	view     client.View
	events   []client.Event
	err      error
	ready    bool
}

func initialModel(api *client.Client) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return model{
		api:     api,
		spinner: s,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		fetchData(m.api),
		tick(),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
		return m, tea.Batch(cmds...)

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case tickMsg:
		cmds = append(cmds, fetchData(m.api), tick())

	case dataMsg:
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.err = nil
			m.view = msg.view
			m.events = msg.events
			m.updateViewportContent()
		}
		if !m.ready {
			m.ready = true
		}

	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, viewportHeight)
			m.viewport.Style = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62")).
				PaddingRight(2)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = viewportHeight
		}
	}

	return m, tea.Batch(cmds...)
}

func (m *model) updateViewportContent() {
	var sb strings.Builder

	for _, e := range m.events {
		ts := e.Ts.Format("15:04:05")

		var kindStr string
		switch {
		case strings.Contains(e.Kind, "throttled") || strings.Contains(e.Kind, "error"):
			kindStr = openStyle.Render(e.Kind)
		case strings.Contains(e.Kind, "success") || strings.Contains(e.Kind, "removed"):
			kindStr = normalStyle.Render(e.Kind)
		default:
			kindStr = infoStyle.Render(e.Kind)
		}

		line := e.LineRef
		if line == "" {
			line = "-"
		}

		sb.WriteString(fmt.Sprintf("%s %s %s\n",
			eventTimeStyle.Render(ts),
			kindStr,
			eventLineStyle.Render(line),
		))
	}

	m.viewport.SetContent(sb.String())
}

func (m model) View() string {
	if !m.ready {
		return fmt.Sprintf("\n%s Initializing...", m.spinner.View())
	}

	// Top Pane: per-line status
	var lineList strings.Builder
	lineList.WriteString(lipgloss.NewStyle().Bold(true).Underline(true).Render("Monitored Lines") + "\n\n")

	if len(m.view.Lines) == 0 {
		lineList.WriteString(subtleStyle.Render("No lines monitored."))
	} else {
		refs := make([]string, 0, len(m.view.Lines))
		for ref := range m.view.Lines {
			refs = append(refs, ref)
		}
		sort.Strings(refs)

		for _, ref := range refs {
			snap := m.view.Lines[ref]
			style := normalStyle
			switch {
			case snap.Counts["open"] > 0:
				style = openStyle
			case snap.Counts["planned"] > 0:
				style = plannedStyle
			}
			lineList.WriteString(fmt.Sprintf("• %s  %s\n", ref, style.Render(snap.Primary)))
		}
	}

	topPane := paneStyle.Render(lineList.String())

	// Bottom Pane: Event Stream
	header := headerStyle.Render(fmt.Sprintf("%s Event Stream", m.spinner.View()))
	bottomPane := m.viewport.View()

	// Status Footer
	var status string
	switch {
	case m.err != nil:
		status = errorStyle.Render(fmt.Sprintf("Offline: %v", m.err))
	case m.view.BackingOff:
		status = warnStyle.Render(fmt.Sprintf("Backing off • serving cache from %s • %d throttles",
			m.view.FetchedAt.Format("15:04:05"), m.view.ThrottleCount))
	default:
		status = okStyle.Render(fmt.Sprintf("Fresh • fetched %s • %d lines",
			m.view.FetchedAt.Format("15:04:05"), len(m.view.Lines)))
	}
	footer := subtleStyle.Render(fmt.Sprintf("\n%s\nPress q to quit", status))

	return lipgloss.JoinVertical(lipgloss.Left, topPane, header, bottomPane, footer)
}

// Commands

func fetchData(api *client.Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		defer cancel()

		view, err := api.Lines(ctx)
		if err != nil {
			return dataMsg{err: err}
		}

		events, err := api.Events(ctx, maxEvents)
		if err != nil {
			return dataMsg{err: err}
		}

		return dataMsg{view: view, events: events}
	}
}

func tick() tea.Cmd {
	return tea.Tick(pollRate, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func main() {
	endpoint := os.Getenv("SXWATCH_ADDR")
	if endpoint != "" && !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "http://" + endpoint
	}

	p := tea.NewProgram(initialModel(client.NewClient(endpoint)), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Alas, there's been an error: %v", err)
		os.Exit(1)
	}
}
