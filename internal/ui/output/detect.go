package output

import (
	"io"
	"os"

	"golang.org/x/term"
)

// LogMode is how log records are rendered.
type LogMode int

const (
	// LogModeAuto picks a mode from the environment.
	LogModeAuto LogMode = iota
	// LogModePretty renders colored single-line records for people.
	LogModePretty
	// LogModeJSON renders one JSON object per record for machines.
	LogModeJSON
)

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	return ok && term.IsTerminal(int(f.Fd()))
}

// DetectLogMode returns LogModeJSON when stderr is not a terminal or CI is
// set, and LogModePretty otherwise.
func DetectLogMode() LogMode {
	ci := os.Getenv("CI")
	if !IsTerminal(os.Stderr) || ci == "true" || ci == "1" {
		return LogModeJSON
	}
	return LogModePretty
}

// ResolveLogMode applies a --log-format value to the detected mode.
// flag is one of "auto", "pretty", "json" or empty.
func ResolveLogMode(detected LogMode, flag string) LogMode {
	switch flag {
	case "pretty":
		return LogModePretty
	case "json":
		return LogModeJSON
	default:
		return detected
	}
}
