package ui_test

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"

	"tracerlib/internal/session"
	"tracerlib/internal/ui"
)

func sampleSession(t *testing.T) *session.Session {
	t.Helper()
	ctrl := session.NewController(nil)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	n := 0
	s, err := ctrl.Start(session.Config{Clock: func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Millisecond)
	}})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	ctrl.Enter("main", "f")
	ctrl.Enter("strings", "ToUpper")
	ctrl.Leave("strings", "ToUpper")
	ctrl.Leave("main", "f")
	ctrl.Stop()
	return s
}

func TestViewerRendersTree(t *testing.T) {
	m := ui.NewViewer(sampleSession(t))
	resized, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 20})

	view := resized.View()
	if !strings.Contains(view, "main.f") {
		t.Errorf("view missing root:\n%s", view)
	}
	if !strings.Contains(view, "strings.ToUpper") {
		t.Errorf("view missing expanded child:\n%s", view)
	}
	if !strings.Contains(view, "events 4") {
		t.Errorf("view missing header stats:\n%s", view)
	}
}

func TestViewerCollapse(t *testing.T) {
	m := ui.NewViewer(sampleSession(t))
	resized, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 20})

	// Cursor starts on the root; toggling collapses its child away.
	collapsed, _ := resized.Update(tea.KeyMsg{Type: tea.KeySpace})
	view := collapsed.View()
	if strings.Contains(view, "strings.ToUpper") {
		t.Errorf("child still visible after collapse:\n%s", view)
	}
}

func TestViewerTruncatesNarrowRows(t *testing.T) {
	ctrl := session.NewController(nil)
	s, err := ctrl.Start(session.Config{})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	long := strings.Repeat("deep", 20)
	ctrl.Enter("main", long)
	ctrl.Leave("main", long)
	ctrl.Stop()

	const width = 24
	m := ui.NewViewer(s)
	resized, _ := m.Update(tea.WindowSizeMsg{Width: width, Height: 10})
	view := resized.View()

	if !strings.Contains(view, "…") {
		t.Fatalf("narrow view not truncated:\n%s", view)
	}
	for _, line := range strings.Split(view, "\n") {
		if strings.Contains(line, "main.") && runewidth.StringWidth(line) > width {
			t.Errorf("row wider than %d columns: %q", width, line)
		}
	}
}

func TestViewerQuit(t *testing.T) {
	m := ui.NewViewer(sampleSession(t))
	resized, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 20})

	_, cmd := resized.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("quit key produced no command")
	}
}
