package watch

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattjoyce/site2ts/internal/history"
)

type stubHistory struct {
	runs []history.Run
	err  error
}

func (s *stubHistory) Recent(ctx context.Context, limit int) ([]history.Run, error) {
	return s.runs, s.err
}

func TestModelRendersRuns(t *testing.T) {
	t.Parallel()

	m := New(&stubHistory{})
	updated, _ := m.Update(runsMsg{runs: []history.Run{
		{JobID: "01J8ZX0000000000000000001A", Stage: "crawl", ArtifactID: "01J8ZXSM00000000000000001A", Status: history.StatusOK, StartedAt: time.Now(), DurationMs: 420},
		{JobID: "01J8ZX0000000000000000002B", Stage: "generate", Status: history.StatusFailed, Error: "no scaffold found: run scaffold first", StartedAt: time.Now()},
	}})

	view := updated.View()
	if !strings.Contains(view, "crawl") {
		t.Fatalf("view missing crawl row:\n%s", view)
	}
	if !strings.Contains(view, "run scaffold first") {
		t.Fatalf("view missing failure detail:\n%s", view)
	}
}

func TestModelShowsHistoryError(t *testing.T) {
	t.Parallel()

	m := New(&stubHistory{})
	updated, _ := m.Update(runsMsg{err: errors.New("history unavailable")})
	if !strings.Contains(updated.View(), "history unavailable") {
		t.Fatal("view missing error banner")
	}
}

func TestModelQuitsOnQ(t *testing.T) {
	t.Parallel()

	m := New(&stubHistory{})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
}

func TestModelEmptyState(t *testing.T) {
	t.Parallel()

	m := New(&stubHistory{})
	if !strings.Contains(m.View(), "no stage runs yet") {
		t.Fatal("view missing empty state")
	}
}
