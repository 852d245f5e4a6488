// Package tui renders a running copy operation in the terminal.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/joe/lndp/internal/copyengine"
	"github.com/joe/lndp/internal/tui/shared"
)

// activityEntries is the number of recent files shown.
const activityEntries = 6

// CopyFunc runs a copy, reporting to emitter. It must return once ctx is
// cancelled.
type CopyFunc func(ctx context.Context, emitter copyengine.EventEmitter) *copyengine.CopyResult

// CopyModel is the bubble tea model of the copy dialog.
type CopyModel struct {
	title    string
	bridge   *shared.EventBridge
	cancel   context.CancelFunc
	spinner  spinner.Model
	bar      progress.Model
	activity *shared.ActivityLog
	width    int

	state      copyengine.State
	counter    int
	total      int
	file       string
	fileBytes  int64
	fileTotal  int64
	kbps       int64
	copied     int
	skipped    int
	failures   []copyengine.FileFailed
	result     *copyengine.CopyResult
	cancelling bool
}

// NewCopyModel creates the dialog. cancel is called when the user asks to
// stop; the dialog stays up until the engine reports completion.
func NewCopyModel(title string, bridge *shared.EventBridge, cancel context.CancelFunc) CopyModel {
	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = shared.DimStyle()

	return CopyModel{
		title:    title,
		bridge:   bridge,
		cancel:   cancel,
		spinner:  spin,
		bar:      shared.NewProgressModel(shared.ProgressBarWidth),
		activity: shared.NewActivityLog(activityEntries),
	}
}

// Init implements tea.Model.
func (m CopyModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.bridge.ListenCmd())
}

// Result returns the final result, or nil while the copy runs.
func (m CopyModel) Result() *copyengine.CopyResult {
	return m.result
}

// Update implements tea.Model.
func (m CopyModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case shared.KeyCtrlC, shared.KeyQuit:
			if m.result != nil {
				return m, tea.Quit
			}

			if !m.cancelling && m.cancel != nil {
				m.cancelling = true
				m.cancel()
			}
		}

		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = min(shared.ProgressBarWidth, max(10, msg.Width-4*shared.DefaultPadding)) //nolint:mnd // Box borders

		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)

		return m, cmd

	case shared.EngineEventMsg:
		m = m.apply(msg.Event)
		if m.result != nil {
			return m, tea.Quit
		}

		return m, m.bridge.ListenCmd()
	}

	return m, nil
}

func (m CopyModel) apply(event copyengine.Event) CopyModel {
	switch event := event.(type) {
	case copyengine.StateChanged:
		m.state = event.To
	case copyengine.QueueProgress:
		m.counter = event.Counter
		m.total = event.Total
	case copyengine.FileStarted:
		m.file = event.Path
		m.fileBytes = 0
		m.fileTotal = event.Size
		m.kbps = 0
	case copyengine.FileProgress:
		m.file = event.Path
		m.fileBytes = event.Bytes
		m.fileTotal = event.Total
	case copyengine.SpeedUpdate:
		m.kbps = event.KBps
	case copyengine.FileComplete:
		m.copied++
		m.activity.Add(fmt.Sprintf("%s %s", shared.SuccessSymbol(), event.Path))
	case copyengine.FileSkipped:
		m.skipped++
		m.activity.Add(fmt.Sprintf("%s %s (%s)", shared.SkipSymbol(), event.Path, event.Reason))
	case copyengine.FileFailed:
		m.failures = append(m.failures, event)
		m.activity.Add(fmt.Sprintf("%s %s", shared.ErrorSymbol(), event.Path))
	case copyengine.CopyComplete:
		m.result = event.Result
		m.state = copyengine.StateDone
		m.file = ""
	}

	return m
}

// View implements tea.Model.
func (m CopyModel) View() string {
	if m.result != nil {
		return m.summaryView() + "\n"
	}

	var b strings.Builder

	b.WriteString(shared.RenderTitle(m.title))
	b.WriteString("\n")

	status := "Scanning"
	if m.state == copyengine.StateCopying {
		status = "Copying"
	}

	if m.cancelling {
		status = "Cancelling"
	}

	fmt.Fprintf(&b, "%s %s %d of %d\n", m.spinner.View(), shared.RenderLabel(status), m.counter, m.total)

	if m.file != "" {
		percent := 0.0
		if m.fileTotal > 0 {
			percent = float64(m.fileBytes) / float64(m.fileTotal)
		}

		fmt.Fprintf(&b, "\n%s\n%s\n", shared.TruncatePath(m.file, m.pathWidth()), shared.RenderProgress(m.bar, percent))
		fmt.Fprintf(&b, "%s\n", shared.RenderDim(fmt.Sprintf("%s of %s  %s",
			shared.FormatBytes(m.fileBytes), shared.FormatBytes(m.fileTotal), shared.FormatSpeed(m.kbps))))
	}

	fmt.Fprintf(&b, "\nCopied %d  Skipped %d  Failed %d\n", m.copied, m.skipped, len(m.failures))

	if entries := m.activity.Entries(); len(entries) > 0 {
		b.WriteString("\n")
		b.WriteString(shared.RenderActivityLog("Recent", entries, activityEntries))
		b.WriteString("\n")
	}

	if len(m.failures) > 0 {
		b.WriteString("\n")
		b.WriteString(shared.RenderFailures(m.failures, shared.FailureLimitInProgress, m.pathWidth()))
	}

	return shared.RenderBox(b.String())
}

func (m CopyModel) summaryView() string {
	var b strings.Builder

	switch {
	case m.result.Err != nil:
		b.WriteString(shared.RenderWarning("Copy stopped: " + m.result.Err.Error()))
	case m.result.FilesFailed > 0:
		b.WriteString(shared.RenderError("Copy finished with failures"))
	default:
		b.WriteString(shared.RenderSuccess("Copy complete"))
	}

	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Copied   %d files (%s)\n", m.result.FilesCopied, shared.FormatBytes(m.result.BytesCopied))
	fmt.Fprintf(&b, "Created  %d folders\n", m.result.DirsCreated)
	fmt.Fprintf(&b, "Skipped  %d\n", m.result.FilesSkipped)
	fmt.Fprintf(&b, "Failed   %d\n", m.result.FilesFailed)

	if len(m.result.Failures) > 0 {
		b.WriteString("\n")
		b.WriteString(shared.RenderFailures(m.result.Failures, shared.FailureLimitComplete, m.pathWidth()))
	}

	return shared.RenderBox(b.String())
}

func (m CopyModel) pathWidth() int {
	if m.width <= 0 {
		return 0
	}

	return max(20, m.width-4*shared.DefaultPadding) //nolint:mnd // Box borders
}

// Run shows the dialog while run copies and returns its result. Cancelling
// ctx or pressing q stops the copy; Run still waits for the engine to finish.
func Run(ctx context.Context, title string, run CopyFunc, opts ...tea.ProgramOption) (*copyengine.CopyResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	bridge := shared.NewEventBridge()
	done := make(chan *copyengine.CopyResult, 1)

	go func() {
		result := run(ctx, bridge)
		bridge.Close()
		done <- result
	}()

	program := tea.NewProgram(NewCopyModel(title, bridge, cancel), opts...)
	_, err := program.Run()

	// Keep the engine from blocking on a dialog that is gone.
	go func() {
		for range bridge.Subscribe() {
		}
	}()

	if err != nil {
		cancel()
		<-done

		return nil, fmt.Errorf("failed to run copy dialog: %w", err)
	}

	return <-done, nil
}
