package errors

// SuggestionGenerator produces suggestions for a category.
type SuggestionGenerator interface {
	Generate(category ErrorCategory, affectedPath string) []string
}

// NewSuggestionGenerator creates a SuggestionGenerator.
func NewSuggestionGenerator() SuggestionGenerator {
	return &suggestionGenerator{}
}

type suggestionGenerator struct{}

// Generate returns suggestions for category, mentioning affectedPath when known.
//
//nolint:cyclop // One branch per category
func (g *suggestionGenerator) Generate(category ErrorCategory, affectedPath string) []string {
	var suggestions []string

	switch category {
	case CategoryNotFound:
		suggestions = []string{
			"The document may have been moved or deleted since it was listed; refresh the listing",
			"Verify the location is spelled correctly",
		}
	case CategoryIO:
		suggestions = []string{
			"Try the copy again; interrupted files are recreated from the start",
			"Check that both devices stay on the same network during the transfer",
		}
	case CategoryAlreadyExists:
		suggestions = []string{
			"A file or folder with this name already exists at the destination",
			"Rename or remove the existing entry, or copy with --mode update",
		}
	case CategoryTruncated:
		suggestions = []string{
			"The destination received fewer bytes than the source reported",
			"Copy the file again; the partial destination file will be overwritten",
		}
	case CategoryUnsupported:
		suggestions = []string{
			"This operation is not available for this entry",
			"Read-only servers reject writes; start the server with --writable",
		}
	case CategoryPermission:
		suggestions = []string{
			"Ensure you have read/write permissions for the files and directories",
		}
	case CategoryDiskSpace:
		suggestions = []string{
			"Free up space on the destination device",
			"Use --mode small to downscale images while copying",
		}
	case CategoryNetwork:
		suggestions = []string{
			"Check that the server is running and reachable on the local network",
			"Run 'lndp discover' to see which services are visible",
		}
	default:
		suggestions = []string{
			"Check the log file for more details",
		}
	}

	if affectedPath != "" {
		suggestions = append(suggestions, "Affected: "+affectedPath)
	}

	return suggestions
}
