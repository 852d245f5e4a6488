package shared

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
)

// FormatBytes formats a byte count in IEC units ("1.5 MiB").
func FormatBytes(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}

	return humanize.IBytes(uint64(bytes))
}

// FormatDuration formats a duration as "2m 30s".
func FormatDuration(duration time.Duration) string {
	duration = duration.Round(time.Second)
	hours := duration / time.Hour
	duration %= time.Hour
	minutes := duration / time.Minute
	duration %= time.Minute
	seconds := duration / time.Second

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

// FormatSpeed formats a kb/s reading.
func FormatSpeed(kbps int64) string {
	return humanize.Comma(kbps) + " kb/s"
}

// TruncatePath shortens path to width runes, keeping the end, which holds the
// file name.
func TruncatePath(path string, width int) string {
	if width <= len(ellipsis) || utf8.RuneCountInString(path) <= width {
		return path
	}

	runes := []rune(path)

	return ellipsis + string(runes[len(runes)-(width-len(ellipsis)):])
}
