package browser

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/joe/lndp/pkg/filesystem"
)

// Selection is the set of selected entries of a listing, by index.
type Selection struct {
	entries  []filesystem.DocumentRef
	selected []bool
	count    int
}

// NewSelection creates an empty selection over entries.
func NewSelection(entries []filesystem.DocumentRef) *Selection {
	return &Selection{entries: entries, selected: make([]bool, len(entries))}
}

// Len returns the number of selected entries.
func (s *Selection) Len() int {
	return s.count
}

// IsSelected reports whether entry index is selected.
func (s *Selection) IsSelected(index int) bool {
	return index >= 0 && index < len(s.selected) && s.selected[index]
}

// Set selects or deselects entry index. Out of range indexes are ignored.
func (s *Selection) Set(index int, selected bool) {
	if index < 0 || index >= len(s.selected) || s.selected[index] == selected {
		return
	}

	s.selected[index] = selected
	if selected {
		s.count++
	} else {
		s.count--
	}
}

// Toggle flips entry index.
func (s *Selection) Toggle(index int) {
	s.Set(index, !s.IsSelected(index))
}

// SelectAll selects every entry.
func (s *Selection) SelectAll() {
	s.selectWhere(func(filesystem.DocumentRef) bool { return true })
}

// Clear deselects every entry.
func (s *Selection) Clear() {
	for i := range s.selected {
		s.Set(i, false)
	}
}

// SelectFrom selects every entry from index to the end.
func (s *Selection) SelectFrom(index int) {
	for i := max(index, 0); i < len(s.selected); i++ {
		s.Set(i, true)
	}
}

// ClearFrom deselects every entry from index to the end.
func (s *Selection) ClearFrom(index int) {
	for i := max(index, 0); i < len(s.selected); i++ {
		s.Set(i, false)
	}
}

// SelectImages adds every image that is not a RAW file.
func (s *Selection) SelectImages() {
	s.selectWhere(func(ref filesystem.DocumentRef) bool {
		return ref.IsImage() && !filesystem.IsRawName(ref.Name)
	})
}

// SelectRaw adds every RAW file.
func (s *Selection) SelectRaw() {
	s.selectWhere(func(ref filesystem.DocumentRef) bool { return filesystem.IsRawName(ref.Name) })
}

// SelectMatching adds every entry whose name matches the glob pattern,
// compared case-insensitively. It returns the number of entries matched.
func (s *Selection) SelectMatching(pattern string) (int, error) {
	pattern = strings.ToLower(pattern)
	if !doublestar.ValidatePattern(pattern) {
		return 0, doublestar.ErrBadPattern //nolint:wrapcheck // Sentinel from the glob library
	}

	matched := 0

	s.selectWhere(func(ref filesystem.DocumentRef) bool {
		ok, _ := doublestar.Match(pattern, strings.ToLower(ref.Name))
		if ok {
			matched++
		}

		return ok
	})

	return matched, nil
}

// Selected returns the selected entries in listing order.
func (s *Selection) Selected() []filesystem.DocumentRef {
	refs := make([]filesystem.DocumentRef, 0, s.count)

	for i, selected := range s.selected {
		if selected {
			refs = append(refs, s.entries[i])
		}
	}

	return refs
}

func (s *Selection) selectWhere(match func(filesystem.DocumentRef) bool) {
	for i, ref := range s.entries {
		if match(ref) {
			s.Set(i, true)
		}
	}
}
