// Package tui provides the live terminal dashboard for moor's watch mode,
// built on the Bubble Tea framework.
package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// BuildStartedMsg reports that a rebuild has begun.
type BuildStartedMsg struct {
	At time.Time
}

// BuildFinishedMsg reports the outcome of a rebuild.
type BuildFinishedMsg struct {
	Duration       time.Duration
	Version        string
	Resources      int
	ManifestDigest string
	Unsigned       bool
	Err            error
}

// WatchErrorMsg reports a filesystem watcher error.
type WatchErrorMsg struct {
	Err error
}

// Model is the root Bubble Tea model for the watch dashboard.
type Model struct {
	outputDir string
	spinner   spinner.Model
	building  bool
	builds    int
	last      *BuildFinishedMsg
	lastAt    time.Time
	watchErr  error
	width     int
}

// New creates a dashboard model for the given output directory.
func New(outputDir string) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styleSpinner
	return &Model{
		outputDir: outputDir,
		spinner:   s,
		width:     80,
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
		return m, nil

	case BuildStartedMsg:
		m.building = true
		m.lastAt = msg.At
		return m, nil

	case BuildFinishedMsg:
		m.building = false
		m.builds++
		m.last = &msg
		return m, nil

	case WatchErrorMsg:
		m.watchErr = msg.Err
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	out := styleTitle.Render("moor watch") + "  " + styleDim.Render(m.outputDir) + "\n\n"

	if m.building {
		out += m.spinner.View() + " building...\n"
	} else if m.last != nil {
		out += m.renderLast()
	} else {
		out += styleDim.Render("waiting for first build") + "\n"
	}

	if m.watchErr != nil {
		out += "\n" + styleError.Render(fmt.Sprintf("watcher: %v", m.watchErr)) + "\n"
	}

	out += "\n" + styleDim.Render(fmt.Sprintf("%d builds · q to quit", m.builds))
	return out
}

func (m *Model) renderLast() string {
	if m.last.Err != nil {
		return styleError.Render("build failed") + "\n" +
			styleErrorDetail.Render(m.last.Err.Error()) + "\n"
	}

	out := styleOK.Render("build ok") +
		styleDim.Render(fmt.Sprintf(" in %s", m.last.Duration.Round(time.Millisecond))) + "\n"
	out += fmt.Sprintf("  version    %s\n", m.last.Version)
	out += fmt.Sprintf("  resources  %d\n", m.last.Resources)
	out += fmt.Sprintf("  digest     %s\n", shorten(m.last.ManifestDigest, 16))
	if m.last.Unsigned {
		out += "  " + styleWarn.Render("UNSIGNED development build") + "\n"
	}
	return out
}

func shorten(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
