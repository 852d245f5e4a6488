package shared

import (
	"strings"
)

// ActivityLog keeps the most recent entries, oldest first.
type ActivityLog struct {
	entries []string
	limit   int
}

// NewActivityLog creates a log holding at most limit entries.
func NewActivityLog(limit int) *ActivityLog {
	return &ActivityLog{limit: limit}
}

// Add appends an entry, dropping the oldest past the limit.
func (l *ActivityLog) Add(entry string) {
	l.entries = append(l.entries, entry)
	if l.limit > 0 && len(l.entries) > l.limit {
		l.entries = l.entries[len(l.entries)-l.limit:]
	}
}

// Entries returns the retained entries.
func (l *ActivityLog) Entries() []string {
	return l.entries
}

// RenderActivityLog renders entries under an optional title, oldest first.
// maxEntries > 0 keeps only the most recent ones.
func RenderActivityLog(title string, entries []string, maxEntries int) string {
	var builder strings.Builder

	if trimmed := strings.TrimSpace(title); trimmed != "" {
		builder.WriteString(RenderLabel(trimmed))
		builder.WriteString("\n")
	}

	if maxEntries > 0 && maxEntries < len(entries) {
		entries = entries[len(entries)-maxEntries:]
	}

	builder.WriteString(strings.Join(prefixAll("  ", entries), "\n"))

	return builder.String()
}

func prefixAll(prefix string, lines []string) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = prefix + line
	}

	return out
}
