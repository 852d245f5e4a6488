package filesystem

import (
	"fmt"

	"github.com/kr/fs"
)

// Summary totals the contents of a tree.
type Summary struct {
	Files int
	Dirs  int
	Bytes int64
}

// Summarizer is implemented by trees that can total their contents.
type Summarizer interface {
	Summary() (Summary, error)
}

// SummarizeWalker drains w and totals what it visits. Unreadable entries are
// skipped; the root itself is not counted.
func SummarizeWalker(w *fs.Walker) (Summary, error) {
	var summary Summary

	first := true

	for w.Step() {
		if err := w.Err(); err != nil {
			if first {
				return Summary{}, classify("walk", w.Path(), err)
			}

			continue
		}

		if first {
			first = false
			continue
		}

		info := w.Stat()
		if info.IsDir() {
			summary.Dirs++
			continue
		}

		summary.Files++
		summary.Bytes += info.Size()
	}

	return summary, nil
}

// Summary walks the whole tree and totals its contents.
func (t *LocalTree) Summary() (Summary, error) {
	summary, err := SummarizeWalker(fs.Walk(t.root))
	if err != nil {
		return Summary{}, fmt.Errorf("failed to summarize %s: %w", t.root, err)
	}

	return summary, nil
}
