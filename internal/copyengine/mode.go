package copyengine

import (
	"fmt"
	"strings"

	"github.com/joe/lndp/pkg/filesystem"
)

// CopyMode controls how files are replicated.
type CopyMode int

// Copy modes.
const (
	// ModeFull copies bytes verbatim, overwriting same-named files.
	ModeFull CopyMode = iota
	// ModeSmall downscales large images into ".small" JPEGs.
	ModeSmall
	// ModeUpdateIfNewer skips files whose destination is newer with the same length.
	ModeUpdateIfNewer
)

// String returns the mode name used on the command line.
func (m CopyMode) String() string {
	switch m {
	case ModeFull:
		return "full"
	case ModeSmall:
		return "small"
	case ModeUpdateIfNewer:
		return "update"
	default:
		return fmt.Sprintf("CopyMode(%d)", int(m))
	}
}

// ParseCopyMode parses "full", "small" or "update".
func ParseCopyMode(s string) (CopyMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "full":
		return ModeFull, nil
	case "small":
		return ModeSmall, nil
	case "update", "update-if-newer":
		return ModeUpdateIfNewer, nil
	default:
		return ModeFull, fmt.Errorf("unknown copy mode %q: %w", s, filesystem.ErrUnsupported)
	}
}

// DestinationIsCurrent reports whether an existing destination file makes
// copying src unnecessary: it is strictly newer and has the same length.
func DestinationIsCurrent(existing, src filesystem.DocumentRef) bool {
	return existing.Timestamp > src.Timestamp && existing.Length == src.Length
}

// UnmarshalText implements encoding.TextUnmarshaler for go-arg.
func (m *CopyMode) UnmarshalText(text []byte) error {
	parsed, err := ParseCopyMode(string(text))
	if err != nil {
		return err
	}

	*m = parsed

	return nil
}
