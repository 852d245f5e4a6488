package shared

import (
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Layout and timing.
const (
	// DefaultPadding is the horizontal padding inside boxes.
	DefaultPadding = 2
	// ProgressBarWidth is the default width of progress bars.
	ProgressBarWidth = 40
	// TickIntervalMs is the spinner and redraw interval in milliseconds.
	TickIntervalMs = 100
	// ProgressPercentageScale converts fractions to percentages.
	ProgressPercentageScale = 100
	// ellipsis marks truncated paths.
	ellipsis = "..."
)

// Keys.
const (
	KeyCtrlC = "ctrl+c"
	KeyQuit  = "q"
)

// colorsDisabled is set when NO_COLOR is present or the terminal is dumb.
//
//nolint:gochecknoglobals // Read once at startup
var colorsDisabled = os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb"

// Colour accessors.
func AccentColor() lipgloss.Color    { return lipgloss.Color(accentColorCode) }
func DimColor() lipgloss.Color       { return lipgloss.Color(dimColorCode) }
func ErrorColor() lipgloss.Color     { return lipgloss.Color(errorColorCode) }
func HighlightColor() lipgloss.Color { return lipgloss.Color(highlightColorCode) }
func PrimaryColor() lipgloss.Color   { return lipgloss.Color(primaryColorCode) }
func SuccessColor() lipgloss.Color   { return lipgloss.Color(successColorCode) }
func WarningColor() lipgloss.Color   { return lipgloss.Color(warningColorCode) }

// BoxStyle frames the copy dialog.
func BoxStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(AccentColor()).
		Padding(1, DefaultPadding)
}

// DimStyle returns the style for secondary text.
func DimStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(DimColor())
}

// ErrorStyle returns the style for failures.
func ErrorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(ErrorColor()).Bold(true)
}

// LabelStyle returns the style for labels.
func LabelStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(HighlightColor()).Bold(true)
}

// SuccessStyle returns the style for completed work.
func SuccessStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(SuccessColor()).Bold(true)
}

// TitleStyle returns the style for the dialog title.
func TitleStyle() lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).Foreground(PrimaryColor()).MarginBottom(1)
}

// WarningStyle returns the style for skipped files.
func WarningStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(WarningColor())
}

// RenderBox renders content in the dialog frame.
func RenderBox(content string) string { return BoxStyle().Render(content) }

// RenderDim renders secondary text.
func RenderDim(text string) string { return DimStyle().Render(text) }

// RenderError renders a failure.
func RenderError(text string) string { return ErrorStyle().Render(text) }

// RenderLabel renders a label.
func RenderLabel(text string) string { return LabelStyle().Render(text) }

// RenderSuccess renders a success message.
func RenderSuccess(text string) string { return SuccessStyle().Render(text) }

// RenderTitle renders a title.
func RenderTitle(text string) string { return TitleStyle().Render(text) }

// RenderWarning renders a warning.
func RenderWarning(text string) string { return WarningStyle().Render(text) }

// Symbols prefixing activity entries.
func ErrorSymbol() string   { return ErrorStyle().Render("✗") }
func SkipSymbol() string    { return WarningStyle().Render("↷") }
func SuccessSymbol() string { return SuccessStyle().Render("✓") }

const (
	accentColorCode    = "62"  // Blue
	dimColorCode       = "240" // Dark gray
	errorColorCode     = "196" // Red
	highlightColorCode = "86"  // Cyan
	primaryColorCode   = "205" // Pink
	successColorCode   = "42"  // Green
	warningColorCode   = "226" // Yellow
)
