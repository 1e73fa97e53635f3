package pipeline

import (
	"regexp"
	"strings"

	"go.trai.ch/jit/internal/core/domain"
)

// esmSyntax matches import/export statements and import.meta at statement
// boundaries. Matches inside strings or comments produce a harmless extra
// transform.
var esmSyntax = regexp.MustCompile(
	`(?m)(?:^|[\s;])(?:import\s*[\w*{]+[\s\w*,{}]*from\s*["']|import\s*["']|export\s*[*{]|export\s+(?:default|class|function|const|let|var|async|type|interface|enum)\b|import\.meta\b)`,
)

// HasESMSyntax reports whether source appears to use ES module syntax.
func HasESMSyntax(source string) bool {
	return esmSyntax.MatchString(source)
}

// SyntaxFlags derives the TypeScript and JSX flags from a file extension.
func SyntaxFlags(ext string) (ts, jsx bool) {
	switch strings.ToLower(ext) {
	case ".ts", ".mts", ".cts":
		return true, false
	case ".tsx":
		return true, true
	case ".jsx":
		return false, true
	default:
		return false, false
	}
}

// NeedsTransform reports whether a file must go through the transformer.
// Plain CommonJS is executed as is.
func NeedsTransform(ext, source string, class domain.Classification) bool {
	if class == domain.ClassForceTransform {
		return true
	}
	if ts, jsx := SyntaxFlags(ext); ts || jsx {
		return true
	}
	return HasESMSyntax(source)
}
