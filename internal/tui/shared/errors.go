package shared

import (
	"fmt"
	"strings"

	"github.com/joe/lndp/internal/copyengine"
	lndperrors "github.com/joe/lndp/pkg/errors"
)

// Failure display limits.
const (
	// FailureLimitInProgress is shown while a copy runs.
	FailureLimitInProgress = 3
	// FailureLimitComplete is shown in the final summary.
	FailureLimitComplete = 10
)

// RenderFailures renders up to limit failures with their suggestions.
// Paths and messages are truncated to maxWidth when it is positive.
func RenderFailures(failures []copyengine.FileFailed, limit, maxWidth int) string {
	if len(failures) == 0 {
		return ""
	}

	var builder strings.Builder

	for i, failure := range failures {
		if limit > 0 && i >= limit {
			fmt.Fprintf(&builder, "  ... and %d more\n", len(failures)-limit)
			break
		}

		fmt.Fprintf(&builder, "  %s %s\n", ErrorSymbol(), TruncatePath(failure.Path, maxWidth))

		msg := failure.Err.Error()
		if maxWidth > len(ellipsis) && len(msg) > maxWidth {
			msg = msg[:maxWidth-len(ellipsis)] + ellipsis
		}

		fmt.Fprintf(&builder, "    %s\n", RenderDim(msg))

		if suggestions := lndperrors.FormatSuggestions(failure.Err); suggestions != "" {
			fmt.Fprintf(&builder, "    %s\n", strings.ReplaceAll(suggestions, "\n", "\n    "))
		}
	}

	return builder.String()
}
