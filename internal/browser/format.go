package browser

import (
	"fmt"
	"slices"
	"strings"

	"github.com/joe/lndp/pkg/filesystem"
)

// Size units.
const (
	KB = int64(1024)
	MB = KB * KB
	GB = KB * MB
)

// DetailsTimeFormat formats the date column of a listing.
const DetailsTimeFormat = "2006-01-02 15:04"

// FormatSize renders a byte count with two decimals below ten units and
// whole units above: "512 B", "1.50 KB", "42 MB".
func FormatSize(size int64) string {
	switch {
	case size < KB:
		return fmt.Sprintf("%d B", size)
	case size < 10*KB:
		return fmt.Sprintf("%.2f KB", float64(size)/float64(KB))
	case size < MB:
		return fmt.Sprintf("%d KB", size/KB)
	case size < 10*MB:
		return fmt.Sprintf("%.2f MB", float64(size)/float64(MB))
	case size < GB:
		return fmt.Sprintf("%d MB", size/MB)
	case size < 10*GB:
		return fmt.Sprintf("%.2f GB", float64(size)/float64(GB))
	default:
		return fmt.Sprintf("%d GB", size/GB)
	}
}

// Details returns the "date  |  size" line shown under an entry.
func Details(ref filesystem.DocumentRef) string {
	if ref.IsDirectory {
		return ref.ModTime().Format(DetailsTimeFormat)
	}

	return ref.ModTime().Format(DetailsTimeFormat) + "  |  " + FormatSize(ref.Length)
}

// SortForDisplay orders entries in place: directories first, then files,
// each group by name descending so camera files list newest first.
func SortForDisplay(entries []filesystem.DocumentRef) {
	slices.SortStableFunc(entries, func(a, b filesystem.DocumentRef) int {
		if a.IsDirectory != b.IsDirectory {
			if a.IsDirectory {
				return -1
			}

			return 1
		}

		return strings.Compare(b.Name, a.Name)
	})
}
