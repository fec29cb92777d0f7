package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/unbound-force/testsmell/internal/analysis"
	"github.com/unbound-force/testsmell/internal/report"
	"github.com/unbound-force/testsmell/internal/taxonomy"
)

// keyMap defines keybindings for the interactive TUI.
type keyMap struct {
	Up        key.Binding
	Down      key.Binding
	PageUp    key.Binding
	PageDown  key.Binding
	HideClean key.Binding
	Next      key.Binding
	Prev      key.Binding
	Quit      key.Binding
	Help      key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Prev, k.HideClean, k.Quit, k.Help}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.PageUp, k.PageDown},
		{k.Next, k.Prev, k.HideClean},
		{k.Quit, k.Help},
	}
}

var defaultKeyMap = keyMap{
	Up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("^/k", "up")),
	Down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("v/j", "down")),
	PageUp:    key.NewBinding(key.WithKeys("pgup", "ctrl+u"), key.WithHelp("pgup", "page up")),
	PageDown:  key.NewBinding(key.WithKeys("pgdown", "ctrl+d"), key.WithHelp("pgdn", "page down")),
	HideClean: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "toggle clean tests")),
	Next:      key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next violation")),
	Prev:      key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "previous violation")),
	Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"), key.WithHelp("q", "quit")),
	Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
}

// Styles for the TUI.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63")).
			MarginBottom(1)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

// analyzeModel is the Bubble Tea model for browsing an analysis report.
type analyzeModel struct {
	report    *analysis.Report
	viewport  viewport.Model
	help      help.Model
	keys      keyMap
	ready     bool
	hideClean bool
	content   string

	// marks holds the content line of every violation, top to bottom.
	marks []int
}

func newAnalyzeModel(rpt *analysis.Report) analyzeModel {
	content := renderAnalyzeContent(rpt, false)
	return analyzeModel{
		report:  rpt,
		help:    help.New(),
		keys:    defaultKeyMap,
		content: content,
		marks:   violationLines(content),
	}
}

func renderAnalyzeContent(rpt *analysis.Report, hideClean bool) string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render(
		fmt.Sprintf("testsmell: %d test(s), %d violation(s)",
			rpt.Summary.TotalTests, rpt.Summary.TotalViolations)))
	sb.WriteString("\n\n")

	if err := report.WriteText(&sb, rpt, report.TextOptions{Verbose: true, HideClean: hideClean}); err != nil {
		sb.WriteString(statusStyle.Render(fmt.Sprintf("cannot render report: %v", err)))
		sb.WriteString("\n")
	}
	return sb.String()
}

// violationLines finds the tree lines that render a violation. Those
// lines carry the rule ID as a separate word; the rule table below the
// tree puts it against a border instead.
func violationLines(content string) []int {
	var marks []int
	for i, line := range strings.Split(content, "\n") {
		for _, id := range taxonomy.AllRules {
			if strings.Contains(line, " "+string(id)+" ") {
				marks = append(marks, i)
				break
			}
		}
	}
	return marks
}

// jump scrolls to the first violation below (forward) or above the top
// line of the viewport.
func (m *analyzeModel) jump(forward bool) {
	top := m.viewport.YOffset
	if forward {
		for _, l := range m.marks {
			if l > top {
				m.viewport.SetYOffset(l)
				return
			}
		}
		return
	}
	for i := len(m.marks) - 1; i >= 0; i-- {
		if m.marks[i] < top {
			m.viewport.SetYOffset(m.marks[i])
			return
		}
	}
}

func (m analyzeModel) Init() tea.Cmd {
	return nil
}

func (m analyzeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		footerHeight := 2

		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-footerHeight)
			m.viewport.SetContent(m.content)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - footerHeight
		}

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		case key.Matches(msg, m.keys.HideClean):
			m.hideClean = !m.hideClean
			m.content = renderAnalyzeContent(m.report, m.hideClean)
			m.marks = violationLines(m.content)
			if m.ready {
				m.viewport.SetContent(m.content)
			}
		case m.ready && key.Matches(msg, m.keys.Next):
			m.jump(true)
		case m.ready && key.Matches(msg, m.keys.Prev):
			m.jump(false)
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m analyzeModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	footer := statusStyle.Render(fmt.Sprintf(" %3.f%%  %d violation(s) ",
		m.viewport.ScrollPercent()*100, len(m.marks))) + " " + m.help.View(m.keys)

	return m.viewport.View() + "\n" + footer
}

// runInteractiveAnalyze launches the Bubble Tea TUI for browsing an
// analysis report.
func runInteractiveAnalyze(rpt *analysis.Report) error {
	model := newAnalyzeModel(rpt)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err := p.Run()
	return err
}
