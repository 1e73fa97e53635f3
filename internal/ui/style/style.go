// Package style holds the palette and glyphs shared by the log handler and
// the command output.
package style

import "github.com/charmbracelet/lipgloss"

// Palette.
var (
	Muted  = lipgloss.Color("#6B7280")
	Text   = lipgloss.Color("#E5E7EB")
	Green  = lipgloss.Color("#22A06B")
	Red    = lipgloss.Color("#D93025")
	Yellow = lipgloss.Color("#F59E0B")
)

// Glyphs.
const (
	Check   = "✓"
	Cross   = "✗"
	Warning = "!"
	Trace   = "·"
)
