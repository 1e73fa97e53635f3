package logger

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// ErrorEntry is one level of an error chain.
type ErrorEntry struct {
	Message  string
	Metadata map[string]any
}

// zerrLike matches go.trai.ch/zerr errors without depending on their type.
type zerrLike interface {
	Message() string
	Metadata() map[string]any
	Unwrap() error
}

// collectErrorEntries flattens err into one entry per message. Metadata of
// message-less wrappers is attached to the next message. Joined errors are
// flattened in order.
func collectErrorEntries(err error) []ErrorEntry {
	var entries []ErrorEntry
	var pending map[string]any

	var walk func(error)
	walk = func(err error) {
		for err != nil {
			switch e := err.(type) {
			case zerrLike:
				meta := e.Metadata()
				if pending != nil {
					maps.Copy(meta, pending)
					pending = nil
				}
				if e.Message() == "" {
					pending = meta
				} else {
					entries = append(entries, ErrorEntry{Message: e.Message(), Metadata: meta})
				}
				err = e.Unwrap()
			case interface{ Unwrap() []error }:
				for _, inner := range e.Unwrap() {
					walk(inner)
				}
				return
			default:
				entries = append(entries, ErrorEntry{Message: err.Error(), Metadata: pending})
				pending = nil
				return
			}
		}
	}
	walk(err)

	return entries
}

// formatErrorEntries renders entries as the main error followed by its causes.
func formatErrorEntries(entries []ErrorEntry) string {
	var lines []string

	for i, entry := range entries {
		msgLines := strings.Split(entry.Message, "\n")

		first, indent := "Error: ", "       "
		if i > 0 {
			if i == 1 {
				lines = append(lines, "", "  Caused by:")
			}
			first, indent = "    → ", "      "
		}

		lines = append(lines, first+msgLines[0])
		for _, line := range msgLines[1:] {
			lines = append(lines, indent+line)
		}
		for _, key := range slices.Sorted(maps.Keys(entry.Metadata)) {
			lines = append(lines, fmt.Sprintf("%s%s: %v", indent, key, entry.Metadata[key]))
		}
	}

	return strings.Join(lines, "\n")
}
