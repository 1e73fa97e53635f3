package domain

// ResolveRequest is a single request to map a specifier to a file.
type ResolveRequest struct {
	// Specifier is the string the caller used, e.g. "./util" or "lodash".
	Specifier string
	// FromDir is the directory relative specifiers are resolved against.
	FromDir string
}

// ResolvedModule is the result of a successful resolution.
// AbsolutePath existed and was a regular file when it was resolved.
type ResolvedModule struct {
	AbsolutePath string
	IsNative     bool
	Extension    string
}

// Classification is the transform policy applied to a resolved path.
type Classification uint8

const (
	// ClassDefault transforms the module only if its syntax requires it.
	ClassDefault Classification = iota
	// ClassNative hands the module to the host's native loader untouched.
	ClassNative
	// ClassForceTransform always transforms the module.
	ClassForceTransform
)

// String returns the lowercase name of the classification.
func (c Classification) String() string {
	switch c {
	case ClassNative:
		return "native"
	case ClassForceTransform:
		return "force-transform"
	default:
		return "default"
	}
}
