package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/ctoreval/preexec"
)

var selectedStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#FAFAFA")).
	Background(lipgloss.Color("#7D56F4"))

type modelState int

const (
	stateList modelState = iota
	stateDetail
)

type interactiveModel struct {
	report   *preexec.Report
	st       styles
	filename string
	visible  []int
	filter   textinput.Model
	selected int
	state    modelState
}

func newInteractiveModel(filename string, report *preexec.Report) *interactiveModel {
	ti := textinput.New()
	ti.Placeholder = "constructor, global or reason"
	ti.Prompt = "/ "
	ti.Width = 40

	m := &interactiveModel{
		report:   report,
		st:       newStyles(true),
		filename: filename,
		filter:   ti,
		state:    stateList,
	}
	m.applyFilter()
	return m
}

func (m *interactiveModel) Init() tea.Cmd {
	return nil
}

// matches reports whether a diagnostic mentions q in its constructor name,
// touched globals or deferral reason.
func matches(d preexec.Diagnostic, q string) bool {
	if q == "" {
		return true
	}
	fields := append([]string{d.Constructor, d.Outcome.String(), d.Reason.String()}, d.Modified...)
	fields = append(fields, d.Synthesized...)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

func (m *interactiveModel) applyFilter() {
	q := strings.ToLower(strings.TrimSpace(m.filter.Value()))
	m.visible = m.visible[:0]
	for i, d := range m.report.Diagnostics {
		if matches(d, q) {
			m.visible = append(m.visible, i)
		}
	}
	if m.selected >= len(m.visible) {
		m.selected = max(len(m.visible)-1, 0)
	}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	if m.filter.Focused() {
		switch key.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "esc", "enter":
			m.filter.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		m.filter, cmd = m.filter.Update(msg)
		m.applyFilter()
		return m, cmd
	}

	switch key.String() {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "/":
		if m.state == stateList {
			return m, m.filter.Focus()
		}

	case "up", "k":
		if m.state == stateList && m.selected > 0 {
			m.selected--
		}

	case "down", "j":
		if m.state == stateList && m.selected < len(m.visible)-1 {
			m.selected++
		}

	case "enter":
		switch m.state {
		case stateList:
			if len(m.visible) > 0 {
				m.state = stateDetail
			}
		case stateDetail:
			m.state = stateList
		}

	case "esc":
		if m.state == stateDetail {
			m.state = stateList
		} else if m.filter.Value() != "" {
			m.filter.SetValue("")
			m.applyFilter()
		}
	}
	return m, nil
}

func (m *interactiveModel) View() string {
	var b strings.Builder
	b.WriteString(m.st.title.Render("ctoreval"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")

	switch m.state {
	case stateList:
		b.WriteString(m.filter.View())
		b.WriteString("\n\n")
		if len(m.visible) == 0 {
			b.WriteString(m.st.dim.Render("no matching constructors"))
			b.WriteString("\n")
		}
		for i, idx := range m.visible {
			d := m.report.Diagnostics[idx]
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> @" + d.Constructor))
			} else {
				b.WriteString("  " + m.st.symbol.Render("@"+d.Constructor))
			}
			b.WriteString(" ")
			b.WriteString(outcomeLabel(d, m.st))
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "\n%d folded, %d deferred\n", m.report.Folded(), m.report.Deferred())
		b.WriteString(m.st.dim.Render("↑/↓ select • / filter • enter details • q quit"))

	case stateDetail:
		d := m.report.Diagnostics[m.visible[m.selected]]
		fmt.Fprintf(&b, "%s %s\n\n", m.st.symbol.Render("@"+d.Constructor), outcomeLabel(d, m.st))
		fmt.Fprintf(&b, "priority     %d\n", d.Priority)
		fmt.Fprintf(&b, "steps        %s\n", numbers.Sprintf("%d", d.Steps))
		fmt.Fprintf(&b, "stores       %s\n", numbers.Sprintf("%d", d.Stores))
		fmt.Fprintf(&b, "peak memory  %s bytes\n", numbers.Sprintf("%d", d.PeakBytes))
		if len(d.Modified) > 0 {
			fmt.Fprintf(&b, "writes       %s\n", symbols(d.Modified))
		}
		if len(d.Synthesized) > 0 {
			fmt.Fprintf(&b, "adds         %s\n", symbols(d.Synthesized))
		}
		if d.Err != nil {
			b.WriteString("\n")
			b.WriteString(m.st.deferred.Render(d.Err.Error()))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(m.st.dim.Render("enter/esc back • q quit"))
	}
	return b.String()
}

func runInteractive(filename string, report *preexec.Report) error {
	p := tea.NewProgram(newInteractiveModel(filename, report), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
