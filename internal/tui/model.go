package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
)

// maxPrintLines is how many modeller messages stay on screen.
const maxPrintLines = 8

// StepMsg announces the operation that is about to run.
type StepMsg struct {
	Index     int
	Total     int
	Operation string
}

// ProgressMsg is a progress report for the running operation.
type ProgressMsg float32

// PrintMsg is a message printed by the modeller.
type PrintMsg string

// StepDoneMsg ends the running operation.
type StepDoneMsg struct {
	Err error
}

// DoneMsg ends the program.
type DoneMsg struct{}

// Model renders the running operation: a header, a progress bar and the
// latest modeller messages.
type Model struct {
	title     string
	step      StepMsg
	fraction  float64
	lines     []string
	completed []string
	running   bool
	quitting  bool
	width     int

	bar  progress.Model
	spin spinner.Model
}

// NewModel creates a Model with the given title.
func NewModel(title string) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = Accent

	return Model{
		title: title,
		bar:   progress.New(progress.WithDefaultGradient(), progress.WithWidth(40), progress.WithoutPercentage()),
		spin:  s,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return m.spin.Tick
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case StepMsg:
		m.step = msg
		m.fraction = 0
		m.lines = nil
		m.running = true
		return m, nil

	case ProgressMsg:
		f := float64(msg)
		if f < 0 {
			f = 0
		}
		if f > 1 {
			f = 1
		}
		m.fraction = f
		return m, nil

	case PrintMsg:
		m.lines = append(m.lines, string(msg))
		if len(m.lines) > maxPrintLines {
			m.lines = m.lines[len(m.lines)-maxPrintLines:]
		}
		return m, nil

	case StepDoneMsg:
		m.running = false
		m.completed = append(m.completed, m.summary(msg.Err))
		return m, nil

	case DoneMsg:
		m.quitting = true
		return m, tea.Quit

	case tea.WindowSizeMsg:
		m.width = msg.Width
		width := msg.Width - 10
		if width > 60 {
			width = 60
		}
		if width > 10 {
			m.bar.Width = width
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) summary(err error) string {
	name := m.step.Operation
	if m.step.Total > 1 {
		name = fmt.Sprintf("[%d/%d] %s", m.step.Index+1, m.step.Total, name)
	}
	if err != nil {
		return Failure.Render("✗ "+name) + " " + Muted.Render(err.Error())
	}
	return Success.Render("✓ " + name)
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	if m.title != "" {
		b.WriteString(Title.Render(m.title))
		b.WriteString("\n")
	}
	for _, line := range m.completed {
		b.WriteString(line)
		b.WriteString("\n")
	}
	if !m.running || m.quitting {
		return b.String()
	}

	name := m.step.Operation
	if m.step.Total > 1 {
		name = fmt.Sprintf("[%d/%d] %s", m.step.Index+1, m.step.Total, name)
	}
	fmt.Fprintf(&b, "%s %s\n", m.spin.View(), name)
	fmt.Fprintf(&b, "%s %3.0f%%\n", m.bar.ViewAs(m.fraction), m.fraction*100)
	for _, line := range m.lines {
		if m.width > 4 {
			line = ansi.Truncate(line, m.width-2, "…")
		}
		b.WriteString(Muted.Render("  " + line))
		b.WriteString("\n")
	}
	return b.String()
}
