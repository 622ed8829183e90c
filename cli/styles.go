package main

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Integrity failures (forged signatures, tampered resources, pin mismatches)
// may indicate active compromise, while network failures may be a plain
// outage. They must not look alike.
var (
	styleOK        = lipgloss.NewStyle().Foreground(lipgloss.Color("#00AF5F")).Bold(true)
	styleIntegrity = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")).Bold(true)
	styleNetwork   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD700"))
	styleState     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C6C6C"))
	styleWarn      = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF8C00")).Bold(true)
)

func stdoutIsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// styled renders text with a style when stdout is a terminal, plain
// otherwise.
func styled(s lipgloss.Style, text string) string {
	if !stdoutIsTerminal() {
		return text
	}
	return s.Render(text)
}
