package rizom

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors for the operation taxonomy. Callers dispatch with errors.Is.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	// ErrOperation marks internal invariant violations: missing original
	// document, missing version id, unhandled version operation. These are
	// programming or configuration errors and fail loudly.
	ErrOperation = errors.New("operation error")
	// ErrTooManyOperations is returned by the loop-prevention guard when
	// hooks recurse into operations past the allowed depth.
	ErrTooManyOperations = errors.New("operation loop detected")
)

// Field validation error codes, accumulated per path.
const (
	ErrCodeRequired     = "required"
	ErrCodeUnique       = "unique"
	ErrCodeInvalid      = "invalid"
	ErrCodeNotNormative = "validation_error"
)

// ValidationErrors aggregates per-field failures so the caller sees every
// problem at once. The map key is the canonical field path.
type ValidationErrors struct {
	Fields map[string]string
}

// NewValidationErrors returns an empty accumulator.
func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{Fields: map[string]string{}}
}

// Add records a failure for a path, keeping the first code per path.
func (v *ValidationErrors) Add(path, code string) {
	if _, exists := v.Fields[path]; !exists {
		v.Fields[path] = code
	}
}

// Empty reports whether no failure was recorded.
func (v *ValidationErrors) Empty() bool { return len(v.Fields) == 0 }

// Error renders paths sorted for stable output.
func (v *ValidationErrors) Error() string {
	paths := make([]string, 0, len(v.Fields))
	for p := range v.Fields {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	var b strings.Builder
	b.WriteString("validation failed:")
	for _, p := range paths {
		fmt.Fprintf(&b, " %s=%s", p, v.Fields[p])
	}
	return b.String()
}

// HookError wraps a failure raised by a user hook with enough context to name
// the culprit.
type HookError struct {
	Hook string
	Slug string
	ID   string
	Err  error
}

func (e *HookError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("hook %s on %s %s: %v", e.Hook, e.Slug, e.ID, e.Err)
	}
	return fmt.Sprintf("hook %s on %s: %v", e.Hook, e.Slug, e.Err)
}

func (e *HookError) Unwrap() error { return e.Err }
