// Package cli is the interactive shell around the node: argument
// parsing, startup banner, and the peer/resource browser. None of this
// is exercised by the core engine in internal/; it is the thin wrapper
// spec's purpose section pushes out of scope.
package cli

import "github.com/charmbracelet/lipgloss"

var (
	TITLE = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#7d56f4"))

	INFO = lipgloss.NewStyle().
		Italic(true).
		Foreground(lipgloss.Color("#888888"))

	SUCCESS = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#28a745"))

	ERROR = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#ee4b2b"))
)
