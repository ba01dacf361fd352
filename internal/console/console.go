// Package console holds the terminal-facing helpers: styles, TTY detection,
// confirmation prompts and the progress spinner.
package console

import (
	"os"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	SuccessStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	HeaderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("99")).Bold(true)
	InfoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	LabelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	WarnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	ErrorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	DividerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// Divider is a horizontal rule for section breaks
func Divider() string {
	return DividerStyle.Render("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
}

// IsTTY reports whether stdout is an interactive terminal
func IsTTY() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// AskConfirm shows a yes/no prompt and stores the answer in value
func AskConfirm(title, description string, value *bool) error {
	return huh.NewConfirm().
		Title(title).
		Description(description).
		Affirmative("Yes").
		Negative("No").
		Value(value).
		Run()
}
