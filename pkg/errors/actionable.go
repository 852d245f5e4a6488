// Package errors turns failures from document trees, the network and the copy
// engine into categorised errors carrying suggestions a user can act on.
//
//	enricher := errors.NewEnricher()
//	err := enricher.Enrich(copyErr, "albums/2023/IMG_1.JPG")
//	fmt.Println(err, errors.FormatSuggestions(err))
package errors

import (
	"errors"
	"strings"
)

// Error categories. The first five mirror the document tree taxonomy.
const (
	CategoryNotFound      ErrorCategory = "not_found"
	CategoryIO            ErrorCategory = "io"
	CategoryAlreadyExists ErrorCategory = "already_exists"
	CategoryTruncated     ErrorCategory = "truncated"
	CategoryUnsupported   ErrorCategory = "unsupported"
	CategoryPermission    ErrorCategory = "permission"
	CategoryDiskSpace     ErrorCategory = "disk_space"
	CategoryNetwork       ErrorCategory = "network"
	CategoryUnknown       ErrorCategory = "unknown"
)

// ErrorCategory represents the type of error that occurred.
type ErrorCategory string

// ActionableError is an error with a category and suggestions for the user.
type ActionableError interface {
	error
	Unwrap() error
	Category() ErrorCategory
	Suggestions() []string
	AffectedPath() string
}

// NewActionableError creates an ActionableError wrapping cause.
func NewActionableError(cause error, category ErrorCategory, suggestions []string, affectedPath string) ActionableError {
	return &actionableError{
		cause:        cause,
		category:     category,
		suggestions:  suggestions,
		affectedPath: affectedPath,
	}
}

// CategoryOf returns the category of err, or CategoryUnknown when err is not
// actionable.
func CategoryOf(err error) ErrorCategory {
	var actionable ActionableError
	if errors.As(err, &actionable) {
		return actionable.Category()
	}

	return CategoryUnknown
}

// FormatSuggestions formats the suggestions of an ActionableError as an
// indented bullet list. Returns "" for other errors.
func FormatSuggestions(err error) string {
	var actionable ActionableError
	if !errors.As(err, &actionable) {
		return ""
	}

	var builder strings.Builder
	for i, suggestion := range actionable.Suggestions() {
		if i > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString("  • ")
		builder.WriteString(suggestion)
	}

	return builder.String()
}

type actionableError struct {
	cause        error
	category     ErrorCategory
	suggestions  []string
	affectedPath string
}

func (e *actionableError) AffectedPath() string    { return e.affectedPath }
func (e *actionableError) Category() ErrorCategory { return e.category }
func (e *actionableError) Error() string           { return e.cause.Error() }
func (e *actionableError) Suggestions() []string   { return e.suggestions }
func (e *actionableError) Unwrap() error           { return e.cause }
