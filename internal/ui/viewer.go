// Package ui renders finalized trace sessions as an interactive tree
// browser.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"tracerlib/internal/callgraph"
	"tracerlib/internal/classify"
	"tracerlib/internal/session"
)

var (
	styleUser    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	styleStdlib  = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	styleUnknown = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	styleCursor  = lipgloss.NewStyle().Reverse(true)
	styleHeader  = lipgloss.NewStyle().Bold(true)
	styleFooter  = lipgloss.NewStyle().Faint(true)
	styleAnomaly = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

func classStyle(c classify.Class) lipgloss.Style {
	switch c {
	case classify.ClassUser:
		return styleUser
	case classify.ClassStdlib:
		return styleStdlib
	default:
		return styleUnknown
	}
}

type keyMap struct {
	Up     key.Binding
	Down   key.Binding
	Toggle key.Binding
	Quit   key.Binding
}

var keys = keyMap{
	Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Toggle: key.NewBinding(key.WithKeys(" ", "enter"), key.WithHelp("space", "expand/collapse")),
	Quit:   key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
}

// row is one visible line of the tree.
type row struct {
	node  *callgraph.Node
	depth int
}

type viewerModel struct {
	sess     *session.Session
	roots    []*callgraph.Node
	expanded map[*callgraph.Node]bool
	rows     []row
	cursor   int

	vp    viewport.Model
	ready bool
	width int
}

// NewViewer returns a Bubble Tea model browsing a finalized session.
func NewViewer(s *session.Session) tea.Model {
	m := &viewerModel{
		sess:     s,
		roots:    s.Roots(),
		expanded: make(map[*callgraph.Node]bool),
		width:    80,
	}
	// Roots start expanded one level deep.
	for _, root := range m.roots {
		m.expanded[root] = true
	}
	m.rebuildRows()
	return m
}

func (m *viewerModel) Init() tea.Cmd {
	return nil
}

func (m *viewerModel) rebuildRows() {
	m.rows = m.rows[:0]
	var walk func(n *callgraph.Node, depth int)
	walk = func(n *callgraph.Node, depth int) {
		m.rows = append(m.rows, row{node: n, depth: depth})
		if m.expanded[n] {
			for _, child := range n.Children {
				walk(child, depth+1)
			}
		}
	}
	for _, root := range m.roots {
		walk(root, 0)
	}
	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *viewerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		// Header and footer each take one line.
		height := msg.Height - 2
		if height < 1 {
			height = 1
		}
		if !m.ready {
			m.vp = viewport.New(msg.Width, height)
			m.ready = true
		} else {
			m.vp.Width = msg.Width
			m.vp.Height = height
		}
		m.syncViewport()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
			m.syncViewport()
		case key.Matches(msg, keys.Down):
			if m.cursor < len(m.rows)-1 {
				m.cursor++
			}
			m.syncViewport()
		case key.Matches(msg, keys.Toggle):
			if m.cursor < len(m.rows) {
				n := m.rows[m.cursor].node
				if len(n.Children) > 0 {
					m.expanded[n] = !m.expanded[n]
					m.rebuildRows()
					m.syncViewport()
				}
			}
		}
	}
	return m, nil
}

// syncViewport re-renders the tree into the viewport and keeps the cursor
// line visible.
func (m *viewerModel) syncViewport() {
	if !m.ready {
		return
	}
	lines := make([]string, len(m.rows))
	for i := range m.rows {
		lines[i] = m.renderRow(i)
	}
	m.vp.SetContent(strings.Join(lines, "\n"))

	if m.cursor < m.vp.YOffset {
		m.vp.SetYOffset(m.cursor)
	} else if m.cursor >= m.vp.YOffset+m.vp.Height {
		m.vp.SetYOffset(m.cursor - m.vp.Height + 1)
	}
}

// segment is a styled span of a row. Rows are measured and truncated on the
// plain text, then styled span by span, so escape sequences never count
// toward the width and truncation cannot cut one apart.
type segment struct {
	text  string
	style lipgloss.Style
}

func renderSegments(segs []segment, width int) string {
	var b strings.Builder
	remaining := width
	for _, seg := range segs {
		w := runewidth.StringWidth(seg.text)
		if w <= remaining {
			b.WriteString(seg.style.Render(seg.text))
			remaining -= w
			continue
		}
		b.WriteString(seg.style.Render(runewidth.Truncate(seg.text, remaining, "…")))
		break
	}
	return b.String()
}

func (m *viewerModel) renderRow(i int) string {
	r := m.rows[i]
	n := r.node

	marker := "  "
	if len(n.Children) > 0 {
		if m.expanded[n] {
			marker = "▾ "
		} else {
			marker = "▸ "
		}
	}

	segs := []segment{
		{text: strings.Repeat("  ", r.depth) + marker},
		{text: n.Name(), style: classStyle(n.Class)},
	}
	if n.Returned() {
		segs = append(segs, segment{
			text:  fmt.Sprintf("  %.3fms", float64(n.Duration().Microseconds())/1000),
			style: styleFooter,
		})
	}
	if n.Incomplete {
		segs = append(segs, segment{text: " [incomplete]", style: styleAnomaly})
	}
	if n.Unterminated {
		segs = append(segs, segment{text: " [unterminated]", style: styleAnomaly})
	}
	if n.Elided > 0 {
		segs = append(segs, segment{text: fmt.Sprintf(" (+%d elided)", n.Elided), style: styleFooter})
	}

	if i == m.cursor {
		for j := range segs {
			segs[j].style = styleCursor
		}
	}
	return renderSegments(segs, m.width)
}

func (m *viewerModel) View() string {
	if !m.ready {
		return "loading..."
	}

	c := m.sess.Counters()
	header := styleHeader.Render(fmt.Sprintf("session %s", shortID(m.sess.ID()))) +
		styleFooter.Render(fmt.Sprintf("  events %d  goroutines %d  wall %s",
			m.sess.EventCount(), len(m.sess.Gids()), m.sess.Wall()))
	if m.sess.Panicked() {
		header += styleAnomaly.Render("  panicked")
	}

	footer := styleFooter.Render(fmt.Sprintf(
		"%d/%d  stray %d  realigned %d  dropped %d  filtered %d   %s · %s · %s",
		m.cursor+1, len(m.rows), c.StrayReturns, c.Realigned, c.Dropped, c.Filtered,
		keys.Up.Help().Key+"/"+keys.Down.Help().Key,
		keys.Toggle.Help().Key, keys.Quit.Help().Key))

	return header + "\n" + m.vp.View() + "\n" + footer
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
