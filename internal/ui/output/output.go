// Package output creates termenv outputs with the CLI's color handling.
package output

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// ColorProfile returns Ascii when NO_COLOR is set and the detected terminal
// profile otherwise.
func ColorProfile() termenv.Profile {
	if os.Getenv("NO_COLOR") != "" {
		return termenv.Ascii
	}
	return termenv.EnvColorProfile()
}

// New creates an output for w, defaulting to stderr.
func New(w io.Writer, opts ...termenv.OutputOption) *termenv.Output {
	if w == nil {
		w = os.Stderr
	}

	opts = append(opts,
		termenv.WithProfile(ColorProfile()),
		termenv.WithTTY(true),
	)
	return termenv.NewOutput(w, opts...)
}

// Paint renders s in color c using the profile of out.
func Paint(out *termenv.Output, s string, c lipgloss.Color) string {
	return out.String(s).Foreground(out.Color(string(c))).String()
}
