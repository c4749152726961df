// Package ui draws the interactive progress view of keel build.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"keel/internal/driver"
)

// phaseWeight is how far along an input is once a phase has started.
var phaseWeight = map[string]float64{
	"load":     0.05,
	"schedule": 0.15,
	"layout":   0.3,
	"lower":    0.45,
	"ssa":      0.7,
	"codegen":  0.85,
}

type input struct {
	path   string
	phase  string
	status driver.BuildStatus
}

func (in input) label() string {
	if in.status == driver.BuildWorking && in.phase != "" {
		return in.phase
	}
	return in.status.String()
}

func (in input) fraction() float64 {
	if in.status.Finished() {
		return 1
	}
	return phaseWeight[in.phase]
}

type model struct {
	title   string
	events  <-chan driver.BuildEvent
	spinner spinner.Model
	bar     progress.Model
	inputs  []input
	index   map[string]int
	width   int
	done    bool
}

type eventMsg driver.BuildEvent
type doneMsg struct{}

// NewProgressModel returns a Bubble Tea model listing every input with its
// current phase above an overall progress bar. It quits once events is
// closed.
func NewProgressModel(title string, paths []string, events <-chan driver.BuildEvent) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = 76

	m := &model{
		title:   title,
		events:  events,
		spinner: sp,
		bar:     bar,
		inputs:  make([]input, len(paths)),
		index:   make(map[string]int, len(paths)),
		width:   80,
	}
	for i, p := range paths {
		m.inputs[i] = input{path: p}
		m.index[p] = i
	}
	return m
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listen())
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		return m, tea.Batch(m.apply(driver.BuildEvent(msg)), m.listen())
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.bar.Width = max(msg.Width-4, 10)
		}
		return m, nil
	case progress.FrameMsg:
		bar, cmd := m.bar.Update(msg)
		m.bar = bar.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *model) View() string {
	if len(m.inputs) == 0 {
		return ""
	}
	header := fmt.Sprintf("%s %s", m.spinner.View(), m.title)
	if m.done {
		header = "done: " + m.title
	}

	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Render(header))
	b.WriteString("\n\n")

	const statusWidth = 9
	nameWidth := max(m.width-statusWidth-4, 20)
	for _, in := range m.inputs {
		label := in.label()
		fmt.Fprintf(&b, "  %s %s\n", statusStyle(in.status).Render(fmt.Sprintf("%*s", statusWidth, label)), truncate(in.path, nameWidth))
	}
	b.WriteString("\n")
	if m.done {
		b.WriteString(m.bar.ViewAs(1))
	} else {
		b.WriteString(m.bar.View())
	}
	b.WriteString("\n")
	return b.String()
}

func (m *model) listen() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return doneMsg{}
		}
		return eventMsg(ev)
	}
}

func (m *model) apply(ev driver.BuildEvent) tea.Cmd {
	i, ok := m.index[ev.Path]
	if !ok {
		return nil
	}
	m.inputs[i].status = ev.Status
	if ev.Phase != "" {
		m.inputs[i].phase = ev.Phase
	}
	return m.bar.SetPercent(m.fraction())
}

// fraction is the mean progress over all inputs.
func (m *model) fraction() float64 {
	var sum float64
	for _, in := range m.inputs {
		sum += in.fraction()
	}
	return sum / float64(len(m.inputs))
}

func statusStyle(s driver.BuildStatus) lipgloss.Style {
	switch s {
	case driver.BuildDone, driver.BuildCached:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	case driver.BuildFailed:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	case driver.BuildWorking:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
}

func truncate(s string, width int) string {
	if runewidth.StringWidth(s) <= width {
		return s
	}
	if width <= 3 {
		return runewidth.Truncate(s, width, "")
	}
	return runewidth.Truncate(s, width, "...")
}
