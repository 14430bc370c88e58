package output

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Color palette.
var (
	colorRed    = lipgloss.Color("#ff5555")
	colorGreen  = lipgloss.Color("#50fa7b")
	colorYellow = lipgloss.Color("#f1fa8c")
	colorBlue   = lipgloss.Color("#8be9fd")
	colorDim    = lipgloss.Color("#6272a4")
	colorOrange = lipgloss.Color("#ffb86c")
)

// styles are bound to a renderer so that color is only emitted when the
// destination is a terminal.
type styles struct {
	allowed  lipgloss.Style
	blocked  lipgloss.Style
	heading  lipgloss.Style
	blocking lipgloss.Style
	warning  lipgloss.Style
	skipped  lipgloss.Style
	dim      lipgloss.Style
	command  lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		allowed: r.NewStyle().
			Foreground(colorGreen).
			Bold(true),
		blocked: r.NewStyle().
			Foreground(colorRed).
			Bold(true),
		heading: r.NewStyle().
			Foreground(colorBlue).
			Bold(true),
		blocking: r.NewStyle().
			Foreground(colorRed),
		warning: r.NewStyle().
			Foreground(colorYellow),
		skipped: r.NewStyle().
			Foreground(colorOrange),
		dim: r.NewStyle().
			Foreground(colorDim),
		command: r.NewStyle().
			Bold(true),
	}
}
