package console

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ErrInterrupted is returned when the user quits the spinner before the work finishes
var ErrInterrupted = errors.New("interrupted")

var (
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("99"))
	messageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type spinnerModel struct {
	spinner spinner.Model
	message string
	done    bool
	err     error
}

type spinnerCompleteMsg struct {
	err error
}

func newSpinnerModel(message string) spinnerModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle
	return spinnerModel{
		spinner: s,
		message: message,
	}
}

func (m spinnerModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m, nil

	case spinnerCompleteMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit

	default:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
}

func (m spinnerModel) View() string {
	if m.done {
		return completionLine(m.message, m.err) + "\n"
	}
	return fmt.Sprintf("%s %s\n", m.spinner.View(), messageStyle.Render(m.message))
}

func completionLine(message string, err error) string {
	if err != nil {
		return ErrorStyle.Render("✗ " + message + " failed: " + err.Error())
	}
	return SuccessStyle.Render("✓ " + message + " complete")
}

type spinnerResult[T any] struct {
	value T
	err   error
}

// RunWithSpinner runs fn while showing a spinner on an interactive terminal.
// Without a terminal it prints plain start and completion lines to w.
func RunWithSpinner[T any](ctx context.Context, w io.Writer, interactive bool, message string, fn func(context.Context) (T, error)) (T, error) {
	if !interactive {
		fmt.Fprintln(w, messageStyle.Render(message+"..."))
		value, err := fn(ctx)
		fmt.Fprintln(w, completionLine(message, err))
		return value, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newSpinnerModel(message), tea.WithOutput(w), tea.WithContext(ctx))

	results := make(chan spinnerResult[T], 1)
	go func() {
		value, err := fn(ctx)
		results <- spinnerResult[T]{value: value, err: err}
		p.Send(spinnerCompleteMsg{err: err})
	}()

	finalModel, runErr := p.Run()
	cancel()
	res := <-results

	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return res.value, runErr
	}

	if sm, ok := finalModel.(spinnerModel); ok && !sm.done {
		var zero T
		return zero, ErrInterrupted
	}

	return res.value, res.err
}
