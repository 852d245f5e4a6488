package errors

import (
	"errors"
	"regexp"
	"strings"
)

// Enricher enriches errors with a category and suggestions.
type Enricher interface {
	Enrich(err error, affectedPath string) error
}

// NewEnricher creates an Enricher with the default matcher and generator.
func NewEnricher() Enricher {
	return &enricher{
		matcher:   NewPatternMatcher(),
		generator: NewSuggestionGenerator(),
	}
}

//nolint:gochecknoglobals // Compiled once, shared by all enrichers
var pathExtractionPattern = regexp.MustCompile(`\b\w+\s+([./][^\s:]+):`)

type enricher struct {
	matcher   PatternMatcher
	generator SuggestionGenerator
}

// Enrich categorises err. Errors that are already actionable are returned
// unchanged; nil stays nil. When affectedPath is empty a path is extracted
// from messages like "open /a/b: permission denied".
func (e *enricher) Enrich(err error, affectedPath string) error {
	if err == nil {
		return nil
	}

	var actionable ActionableError
	if errors.As(err, &actionable) {
		return actionable
	}

	if affectedPath == "" {
		affectedPath = extractPath(err.Error())
	}

	category := e.matcher.Match(err)

	return NewActionableError(err, category, e.generator.Generate(category, affectedPath), affectedPath)
}

func extractPath(errorMsg string) string {
	if matches := pathExtractionPattern.FindStringSubmatch(errorMsg); len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}

	return ""
}
