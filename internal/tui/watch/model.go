package watch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattjoyce/site2ts/internal/history"
)

const (
	refreshInterval = time.Second
	maxVisibleRuns  = 30
)

// HistoryReader is the slice of the history store the TUI reads.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]history.Run, error)
}

type tickMsg time.Time

type runsMsg struct {
	runs []history.Run
	err  error
}

// Model is the main BubbleTea model for the watch TUI.
type Model struct {
	history HistoryReader

	width  int
	height int

	runs        []history.Run
	lastRefresh time.Time
	lastError   string

	spinner spinner.Model
	theme   Theme
}

// New creates a new watch TUI model over the history index.
func New(hist HistoryReader) *Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return &Model{
		history: hist,
		spinner: sp,
		theme:   NewDefaultTheme(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.fetchRuns(),
		tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) }),
		tea.EnterAltScreen,
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		return m, tea.Batch(
			m.fetchRuns(),
			tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) }),
		)

	case runsMsg:
		if msg.err != nil {
			m.lastError = msg.err.Error()
		} else {
			m.runs = msg.runs
			m.lastError = ""
			m.lastRefresh = time.Now()
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.theme.Title.Render("site2ts pipeline"))
	b.WriteString("  ")
	b.WriteString(m.spinner.View())
	if !m.lastRefresh.IsZero() {
		b.WriteString(m.theme.Dim.Render(
			fmt.Sprintf("  refreshed %s", m.lastRefresh.Format("15:04:05"))))
	}
	b.WriteString("\n\n")

	if m.lastError != "" {
		b.WriteString(m.theme.StatusFailed.Render("! " + m.lastError))
		b.WriteString("\n\n")
	}

	b.WriteString(m.theme.Header.Render(
		fmt.Sprintf("%-10s %-8s %-26s %-10s %s", "STAGE", "STATUS", "ARTIFACT", "DURATION", "STARTED")))
	b.WriteString("\n")

	if len(m.runs) == 0 {
		b.WriteString(m.theme.Dim.Render("no stage runs yet"))
		b.WriteString("\n")
	}

	visible := m.runs
	if len(visible) > maxVisibleRuns {
		visible = visible[:maxVisibleRuns]
	}
	for _, run := range visible {
		b.WriteString(m.renderRun(run))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.theme.Dim.Render("q to quit"))
	return b.String()
}

func (m Model) renderRun(run history.Run) string {
	status := m.theme.StatusOK.Render(run.Status)
	if run.Status == history.StatusFailed {
		status = m.theme.StatusFailed.Render(run.Status)
	}

	artifact := run.ArtifactID
	if artifact == "" {
		artifact = "-"
	}

	line := fmt.Sprintf("%-10s %-8s %-26s %-10s %s",
		run.Stage,
		status,
		artifact,
		fmt.Sprintf("%dms", run.DurationMs),
		run.StartedAt.Local().Format("15:04:05"),
	)
	if run.Error != "" {
		line += "  " + m.theme.Highlight.Render(run.Error)
	}
	return line
}

// fetchRuns reads the latest runs off the main goroutine.
func (m Model) fetchRuns() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		runs, err := m.history.Recent(ctx, maxVisibleRuns)
		return runsMsg{runs: runs, err: err}
	}
}
