package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func update(t *testing.T, m Model, msgs ...tea.Msg) Model {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	return m
}

func TestModel_ProgressAndPrints(t *testing.T) {
	m := update(t, NewModel("road assignment"),
		StepMsg{Index: 0, Total: 2, Operation: "tmg.demo.progress"},
		ProgressMsg(0.5),
		PrintMsg("iteration 1"),
	)

	view := m.View()
	for _, want := range []string{"road assignment", "[1/2] tmg.demo.progress", " 50%", "iteration 1"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q:\n%s", want, view)
		}
	}
}

func TestModel_ProgressIsClamped(t *testing.T) {
	tests := []struct {
		in   float32
		want string
	}{
		{-1, "  0%"},
		{2, "100%"},
	}
	for _, tt := range tests {
		m := update(t, NewModel(""), StepMsg{Operation: "op"}, ProgressMsg(tt.in))
		if !strings.Contains(m.View(), tt.want) {
			t.Errorf("ProgressMsg(%v): view missing %q:\n%s", tt.in, tt.want, m.View())
		}
	}
}

func TestModel_KeepsLatestPrints(t *testing.T) {
	m := update(t, NewModel(""), StepMsg{Operation: "op"})
	for i := 0; i < maxPrintLines+3; i++ {
		m = update(t, m, PrintMsg(strings.Repeat("x", i+1)))
	}
	if len(m.lines) != maxPrintLines {
		t.Fatalf("len(lines) = %d, want %d", len(m.lines), maxPrintLines)
	}
	if m.lines[0] != strings.Repeat("x", 4) {
		t.Errorf("oldest kept line = %q", m.lines[0])
	}
}

func TestModel_StepDoneAndQuit(t *testing.T) {
	m := update(t, NewModel(""),
		StepMsg{Index: 0, Total: 2, Operation: "a"},
		StepDoneMsg{},
		StepMsg{Index: 1, Total: 2, Operation: "b"},
		StepDoneMsg{Err: errors.New("boom")},
	)

	view := m.View()
	if !strings.Contains(view, "✓ [1/2] a") {
		t.Errorf("View() missing success line:\n%s", view)
	}
	if !strings.Contains(view, "✗ [2/2] b") || !strings.Contains(view, "boom") {
		t.Errorf("View() missing failure line:\n%s", view)
	}
	if strings.Contains(view, "%") {
		t.Errorf("View() shows a progress bar after the step ended:\n%s", view)
	}

	_, cmd := m.Update(DoneMsg{})
	if cmd == nil {
		t.Fatal("DoneMsg returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("DoneMsg did not quit")
	}
}

func TestModel_WindowSize(t *testing.T) {
	m := update(t, NewModel(""), tea.WindowSizeMsg{Width: 200, Height: 40})
	if m.bar.Width != 60 {
		t.Errorf("bar width = %d, want 60", m.bar.Width)
	}
	m = update(t, m, tea.WindowSizeMsg{Width: 15, Height: 40})
	if m.bar.Width != 60 {
		t.Errorf("bar width after narrow window = %d, want unchanged 60", m.bar.Width)
	}
}

func TestModel_TruncatesLongLines(t *testing.T) {
	m := update(t, NewModel(""),
		tea.WindowSizeMsg{Width: 20, Height: 10},
		StepMsg{Operation: "op"},
		PrintMsg(strings.Repeat("y", 50)),
	)
	view := m.View()
	if strings.Contains(view, strings.Repeat("y", 19)) {
		t.Errorf("long line not truncated:\n%s", view)
	}
	if !strings.Contains(view, "…") {
		t.Errorf("truncated line missing ellipsis:\n%s", view)
	}
}
