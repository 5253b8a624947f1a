package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rmax-ai/bookgraph/pkg/client"
	"github.com/rmax-ai/bookgraph/pkg/engine"
	"github.com/rmax-ai/bookgraph/pkg/graph"
)

const (
	pollRate       = 2 * time.Second
	requestTimeout = 5 * time.Second
	viewportHeight = 12
	progressWidth  = 20
)

var (
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	activeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	titleStyle  = lipgloss.NewStyle().Bold(true).Underline(true)

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

	scoreStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Width(6)
	authorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("99"))
)

type tickMsg time.Time

type viewMsg struct {
	view engine.View
	err  error
}

type actionMsg struct {
	err error
}

type model struct {
	client   *client.Client
	spinner  spinner.Model
	viewport viewport.Model
	view     engine.View
	err      error
	notice   string
	ready    bool
}

func initialModel(c *client.Client) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return model{
		client:   c,
		spinner:  s,
		viewport: newViewport(100),
	}
}

func newViewport(width int) viewport.Model {
	vp := viewport.New(width, viewportHeight)
	vp.Style = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		PaddingRight(2)
	return vp
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetchView(), tick())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			m.notice = "refreshing graph..."
			return m, m.action(func(ctx context.Context, c *client.Client) error {
				_, err := c.RefreshGraph(ctx)
				return err
			})
		case "f":
			m.notice = "fetching recommendations..."
			return m, m.action(func(ctx context.Context, c *client.Client) error {
				_, err := c.FetchRecommendations(ctx)
				return err
			})
		}
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case tickMsg:
		cmds = append(cmds, m.fetchView(), tick())

	case viewMsg:
		m.ready = true
		m.err = msg.err
		if msg.err == nil {
			m.view = msg.view
			m.viewport.SetContent(renderRecommendations(m.view.Recommendations))
		}

	case actionMsg:
		if msg.err != nil {
			m.notice = errorStyle.Render(msg.err.Error())
		} else {
			m.notice = ""
		}
		cmds = append(cmds, m.fetchView())

	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = viewportHeight
	}

	return m, tea.Batch(cmds...)
}

func (m model) View() string {
	if !m.ready {
		return fmt.Sprintf("\n%s Connecting to %s...", m.spinner.View(), m.client.Endpoint())
	}

	libraryPane := paneStyle.Render(renderLibrary(m.view.Books, m.view.ActiveBook))
	header := headerStyle.Render(fmt.Sprintf("%s Recommendations", m.spinner.View()))

	var status string
	if m.err != nil {
		status = errorStyle.Render(fmt.Sprintf("Offline: %v", m.err))
	} else {
		status = renderStatus(m.view)
	}
	footer := subtleStyle.Render(fmt.Sprintf("\n%s\n%s\nr refresh • f recommend • q quit", status, m.notice))

	return lipgloss.JoinVertical(lipgloss.Left, libraryPane, header, m.viewport.View(), footer)
}

func renderLibrary(books []graph.Book, active *graph.Book) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Library") + "\n\n")
	if len(books) == 0 {
		sb.WriteString(subtleStyle.Render("No books yet."))
		return sb.String()
	}
	for _, b := range books {
		marker := "  "
		title := b.Title
		if active != nil && active.ID == b.ID {
			marker = "▶ "
			title = activeStyle.Render(title)
		}
		line := fmt.Sprintf("%s%s %s %3d%%", marker, progressBar(b.Progress, progressWidth), title, b.Progress)
		if b.Author != "" {
			line += " " + authorStyle.Render(b.Author)
		}
		sb.WriteString(line + "\n")
	}
	return sb.String()
}

func renderRecommendations(st engine.RecommendationState) string {
	switch {
	case st.Error != "" && len(st.Recommendations) == 0:
		return errorStyle.Render(st.Error)
	case st.Empty:
		return subtleStyle.Render("No recommendations. Press f to fetch.")
	}
	var sb strings.Builder
	for _, r := range st.Recommendations {
		line := scoreStyle.Render(fmt.Sprintf("%.0f%%", r.MatchScore*100)) + r.Title
		if r.Author != nil {
			line += " " + authorStyle.Render(*r.Author)
		}
		if r.Reason != "" {
			line += subtleStyle.Render(" · " + r.Reason)
		}
		sb.WriteString(line + "\n")
	}
	if st.Error != "" {
		sb.WriteString(warnStyle.Render("last fetch failed: " + st.Error))
	}
	return sb.String()
}

func renderStatus(v engine.View) string {
	gs := v.GraphStatus
	graphInfo := fmt.Sprintf("%d nodes • %d edges • from %s", gs.Nodes, gs.Edges, gs.Source)

	var backend string
	switch h := v.Health.Healthy; {
	case h == nil:
		backend = subtleStyle.Render("backend unknown")
	case *h:
		backend = okStyle.Render("backend online")
	default:
		backend = errorStyle.Render("backend offline")
	}

	switch {
	case gs.Error != "":
		graphInfo = errorStyle.Render(graphInfo + " • " + gs.Error)
	case gs.Degraded:
		graphInfo = warnStyle.Render(graphInfo + " • cached")
	default:
		graphInfo = okStyle.Render(graphInfo)
	}
	return backend + " • " + graphInfo
}

func progressBar(progress, width int) string {
	progress = max(0, min(progress, 100))
	filled := progress * width / 100
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + "]"
}

func (m model) fetchView() tea.Cmd {
	c := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		v, err := c.View(ctx)
		return viewMsg{view: v, err: err}
	}
}

func (m model) action(fn func(context.Context, *client.Client) error) tea.Cmd {
	c := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return actionMsg{err: fn(ctx, c)}
	}
}

func tick() tea.Cmd {
	return tea.Tick(pollRate, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func main() {
	daemonURL := client.DefaultEndpoint
	if env := os.Getenv("BOOKGRAPH_DAEMON_URL"); env != "" {
		daemonURL = env
	}
	flag.StringVar(&daemonURL, "daemon", daemonURL, "bookgraph-d base URL")
	flag.Parse()

	p := tea.NewProgram(initialModel(client.NewClient(daemonURL)), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "bookgraph-tui: %v\n", err)
		os.Exit(1)
	}
}
