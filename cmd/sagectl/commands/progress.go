package commands

import (
	"os"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/vchigne/sage/internal/cli/ui"
)

var spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))

// runWithFeedback runs work, showing a bubbletea spinner while stdout is a
// TTY and falling back to a static "label..." line otherwise (spec.md §6:
// a TTY gets a live progress view, anything else gets a static summary).
func runWithFeedback[T any](label string, work func() T) T {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		ui.PrintInfo("%s...", label)
		return work()
	}

	done := make(chan T, 1)
	go func() { done <- work() }()

	p := tea.NewProgram(newProgressModel(label, done))
	final, err := p.Run()
	if err != nil {
		ui.PrintWarning("progress display failed: %v", err)
		return <-done
	}
	return final.(progressModel).result.(T)
}

type progressResultMsg struct{ value any }

type progressModel struct {
	label   string
	sp      spinner.Model
	done    <-chan any
	result  any
	waiting bool
}

func newProgressModel[T any](label string, done <-chan T) progressModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle

	relay := make(chan any, 1)
	go func() { relay <- <-done }()

	return progressModel{label: label, sp: s, done: relay, waiting: true}
}

func (m progressModel) Init() tea.Cmd {
	return tea.Batch(m.sp.Tick, waitForResult(m.done))
}

func waitForResult(done <-chan any) tea.Cmd {
	return func() tea.Msg {
		return progressResultMsg{value: <-done}
	}
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case progressResultMsg:
		m.result = msg.value
		m.waiting = false
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.sp, cmd = m.sp.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m progressModel) View() string {
	if !m.waiting {
		return ""
	}
	return m.sp.View() + " " + m.label + "...\n"
}
