package copyengine

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// FileFilter decides which files are copied. Directories are always
// traversed.
type FileFilter interface {
	// ShouldInclude reports whether the file at the given display path
	// ("albums/2023/IMG_1.JPG") should be copied.
	ShouldInclude(relativePath string) bool
}

// GlobFilter implements FileFilter with include and exclude glob patterns.
// Matching is case-insensitive and "**" crosses folders.
type GlobFilter struct {
	include []string
	exclude []string
}

// NewGlobFilter creates a GlobFilter. No include patterns means include
// everything; an exclude match always wins.
func NewGlobFilter(include, exclude []string) *GlobFilter {
	return &GlobFilter{include: normalize(include), exclude: normalize(exclude)}
}

// ShouldInclude implements FileFilter.
func (f *GlobFilter) ShouldInclude(relativePath string) bool {
	normalizedPath := strings.ToLower(relativePath)

	if matchAny(f.exclude, normalizedPath) {
		return false
	}

	return len(f.include) == 0 || matchAny(f.include, normalizedPath)
}

// ValidatePatterns returns the first malformed pattern, if any.
func ValidatePatterns(patterns []string) (string, bool) {
	for _, pattern := range patterns {
		if !doublestar.ValidatePattern(pattern) {
			return pattern, false
		}
	}

	return "", true
}

func matchAny(patterns []string, normalizedPath string) bool {
	for _, pattern := range patterns {
		// Patterns without a slash match the base name anywhere in the tree.
		target := normalizedPath
		if !strings.Contains(pattern, "/") {
			if i := strings.LastIndex(normalizedPath, "/"); i >= 0 {
				target = normalizedPath[i+1:]
			}
		}

		matched, err := doublestar.Match(pattern, target)
		if err == nil && matched {
			return true
		}
	}

	return false
}

func normalize(patterns []string) []string {
	out := make([]string, 0, len(patterns))

	for _, pattern := range patterns {
		if pattern = strings.TrimSpace(pattern); pattern != "" {
			out = append(out, strings.ToLower(pattern))
		}
	}

	return out
}
