package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorOK    = lipgloss.Color("#00AF5F")
	colorError = lipgloss.Color("#FF0000")
	colorWarn  = lipgloss.Color("#FF8C00")
	colorDim   = lipgloss.Color("#6C6C6C")
	colorTitle = lipgloss.Color("#5F87FF")

	styleTitle       = lipgloss.NewStyle().Foreground(colorTitle).Bold(true)
	styleOK          = lipgloss.NewStyle().Foreground(colorOK).Bold(true)
	styleError       = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	styleErrorDetail = lipgloss.NewStyle().Foreground(colorError)
	styleWarn        = lipgloss.NewStyle().Foreground(colorWarn).Bold(true)
	styleDim         = lipgloss.NewStyle().Foreground(colorDim)
	styleSpinner     = lipgloss.NewStyle().Foreground(colorTitle)
)
