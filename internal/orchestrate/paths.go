package orchestrate

import (
	"path/filepath"
	"strings"
)

// WithinBase reports whether path resolves to base or a descendant of it.
// Both sides are made absolute and cleaned before comparing, so ".."
// segments cannot escape.
func WithinBase(path, base string) bool {
	p, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	b, err := filepath.Abs(base)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(b, p)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// SafeRelPath returns path relative to base, or ok=false when path lies
// outside base.
func SafeRelPath(path, base string) (string, bool) {
	if !WithinBase(path, base) {
		return "", false
	}
	p, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}
	b, err := filepath.Abs(base)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(b, p)
	if err != nil {
		return "", false
	}
	return rel, true
}
