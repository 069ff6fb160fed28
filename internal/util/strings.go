// Package util provides common utility functions and constants used across the
// ali-bastion application. This package is intentionally kept dependency-free
// (no imports from other internal/* packages) to serve as a shared foundation
// without introducing circular dependencies.
package util

import (
	"fmt"
	"strings"
)

// DefaultString returns the fallback value if v is empty or consists entirely
// of whitespace; otherwise it returns v unchanged.
//
// Examples:
//
//	DefaultString("hello", "world")  → "hello"   // non-empty → kept
//	DefaultString("",      "world")  → "world"   // empty → fallback
//	DefaultString("  ",    "world")  → "world"   // whitespace-only → fallback
func DefaultString(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

// EmptyDash returns "-" if s is empty or consists entirely of whitespace;
// otherwise it returns s unchanged.
//
// Call sites:
//   - internal/cli/root.go (newDoctorCmd): the PATH column of the binaries table.
//   - internal/cli/root.go (newEventsCmd): the HOST, ADDRESS and MESSAGE columns.
func EmptyDash(s string) string {
	return DefaultString(s, "-")
}

// PadRight left-aligns s in a field of the given width, the equivalent of the
// "%-*s" verb. Strings at or beyond the width are returned unchanged, never
// truncated, so long host names stay readable.
//
// Examples:
//
//	PadRight("api", 6)        → "api   "
//	PadRight("production", 4) → "production"
func PadRight(s string, width int) string {
	return fmt.Sprintf("%-*s", width, s)
}
