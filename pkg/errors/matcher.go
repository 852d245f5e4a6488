package errors

import (
	"context"
	"errors"
	"io/fs"
	"net"
	"strings"

	"github.com/joe/lndp/pkg/filesystem"
)

// PatternMatcher assigns a category to an error.
type PatternMatcher interface {
	Match(err error) ErrorCategory
}

// NewPatternMatcher creates a PatternMatcher that checks sentinels first and
// falls back to message patterns.
func NewPatternMatcher() PatternMatcher {
	return &patternMatcher{
		sentinels: []sentinelRule{
			{err: fs.ErrPermission, category: CategoryPermission},
			{err: filesystem.ErrNotFound, category: CategoryNotFound},
			{err: filesystem.ErrAlreadyExists, category: CategoryAlreadyExists},
			{err: filesystem.ErrTruncated, category: CategoryTruncated},
			{err: filesystem.ErrUnsupported, category: CategoryUnsupported},
			{err: context.DeadlineExceeded, category: CategoryNetwork},
		},
		patterns: []patternRule{
			{category: CategoryPermission, patterns: []string{"permission denied", "access denied", "operation not permitted"}},
			{category: CategoryDiskSpace, patterns: []string{"no space left on device", "disk full", "quota exceeded"}},
			{category: CategoryNotFound, patterns: []string{"no such file or directory", "file not found", "not found"}},
			{category: CategoryNetwork, patterns: []string{"connection refused", "connection reset", "no route to host", "timeout"}},
			{category: CategoryIO, patterns: []string{"short write", "input/output error", "i/o"}},
		},
	}
}

type sentinelRule struct {
	err      error
	category ErrorCategory
}

type patternRule struct {
	category ErrorCategory
	patterns []string
}

type patternMatcher struct {
	sentinels []sentinelRule
	patterns  []patternRule
}

// Match returns the first matching category, checking rules in order.
func (m *patternMatcher) Match(err error) ErrorCategory {
	if err == nil {
		return CategoryUnknown
	}

	for _, rule := range m.sentinels {
		if errors.Is(err, rule.err) {
			return rule.category
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return CategoryNetwork
	}

	// Message patterns run before the generic ErrIO sentinel so a wrapped
	// "no space left on device" is reported as disk space.
	lowerMsg := strings.ToLower(err.Error())
	for _, rule := range m.patterns {
		for _, pattern := range rule.patterns {
			if strings.Contains(lowerMsg, pattern) {
				return rule.category
			}
		}
	}

	if errors.Is(err, filesystem.ErrIO) {
		return CategoryIO
	}

	return CategoryUnknown
}
