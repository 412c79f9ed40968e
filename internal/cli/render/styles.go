// Package render draws Diagnostic output to a terminal: a per-Finding
// table plus a summary line, colored the way the CLI's ui package colors
// success/error/warning output.
package render

import "github.com/charmbracelet/lipgloss"

var styles = struct {
	Bold     lipgloss.Style
	Error    lipgloss.Style
	Warning  lipgloss.Style
	Info     lipgloss.Style
	Success  lipgloss.Style
	Header   lipgloss.Style
	Dim      lipgloss.Style
	Box      lipgloss.Style
}{
	Bold:    lipgloss.NewStyle().Bold(true),
	Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
	Info:    lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
	Success: lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
	Header:  lipgloss.NewStyle().Bold(true).Underline(true),
	Dim:     lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Padding(0, 1),
}
