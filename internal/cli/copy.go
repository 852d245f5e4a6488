package cli

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/joe/lndp/internal/browser"
	"github.com/joe/lndp/internal/config"
	"github.com/joe/lndp/internal/copyengine"
	"github.com/joe/lndp/internal/tui"
	"github.com/joe/lndp/internal/tui/shared"
	"github.com/joe/lndp/pkg/filesystem"
)

// copy copies the selected entries of the source folder into the destination
// folder.
func (a *App) copy(ctx context.Context, cmd *config.CopyCmd, store *config.Store) error {
	opts := openOptions{
		timeout:     cmd.Timeout,
		httpTimeout: cmd.HTTPTimeout,
		insecure:    cmd.Insecure,
		token:       store.Settings().DeviceID,
	}

	source, err := a.open(ctx, cmd.Source, opts)
	if err != nil {
		return err
	}
	defer source.close()

	dest, err := a.open(ctx, cmd.Dest, opts)
	if err != nil {
		return err
	}
	defer dest.close()

	if !source.folder.IsDirectory || !dest.folder.IsDirectory {
		return fmt.Errorf("copy needs two folders: %w", filesystem.ErrUnsupported)
	}

	entries, err := source.tree.ListChildren(ctx, source.folder)
	if err != nil {
		return err //nolint:wrapcheck // Already names the folder
	}

	selection := selectEntries(entries, cmd.Select)
	if len(selection) == 0 {
		a.printf("Nothing to copy in %s\n", source.handle)
		return nil
	}

	engine := copyengine.NewEngine(source.tree, dest.tree, cmd.Mode)
	if len(cmd.Include) > 0 || len(cmd.Exclude) > 0 {
		engine.Filter = copyengine.NewGlobFilter(cmd.Include, cmd.Exclude)
	}

	run := func(ctx context.Context, emitter copyengine.EventEmitter) *copyengine.CopyResult {
		engine.SetEventEmitter(emitter)
		return engine.Copy(ctx, selection, source.folder, dest.folder)
	}

	var result *copyengine.CopyResult

	if a.Interactive && !cmd.NoTUI {
		title := fmt.Sprintf("%s → %s (%s)", source.handle, dest.handle, cmd.Mode)

		result, err = tui.Run(ctx, title, run)
		if err != nil {
			return err //nolint:wrapcheck // Already descriptive
		}
	} else {
		result = run(ctx, newProgressPrinter(a, a.logger))
		a.printResult(result)
	}

	if result.Err != nil {
		return fmt.Errorf("copy stopped: %w", result.Err)
	}

	if result.FilesFailed > 0 {
		return fmt.Errorf("%d files failed to copy: %w", result.FilesFailed, filesystem.ErrIO)
	}

	return nil
}

// selectEntries applies a --select value to the source folder entries.
func selectEntries(entries []filesystem.DocumentRef, which string) []filesystem.DocumentRef {
	selection := browser.NewSelection(entries)

	switch which {
	case config.SelectImages:
		selection.SelectImages()
	case config.SelectRaw:
		selection.SelectRaw()
	default:
		selection.SelectAll()
	}

	return selection.Selected()
}

func (a *App) printResult(result *copyengine.CopyResult) {
	a.printf("Copied %d files (%s), created %d folders, skipped %d, failed %d\n",
		result.FilesCopied, shared.FormatBytes(result.BytesCopied),
		result.DirsCreated, result.FilesSkipped, result.FilesFailed)

	if len(result.Failures) > 0 {
		a.printf("%s", shared.RenderFailures(result.Failures, shared.FailureLimitComplete, 0))
	}
}

// progressPrinter reports engine events as plain lines when no progress view
// is shown. Progress lines are limited to one per second.
type progressPrinter struct {
	app      *App
	logger   *zap.Logger
	progress rate.Sometimes
}

func newProgressPrinter(app *App, logger *zap.Logger) *progressPrinter {
	return &progressPrinter{app: app, logger: logger, progress: rate.Sometimes{Interval: time.Second}}
}

// Emit implements copyengine.EventEmitter.
func (p *progressPrinter) Emit(event copyengine.Event) {
	switch event := event.(type) {
	case copyengine.FileComplete:
		p.app.printf("%s %s\n", shared.SuccessSymbol(), event.Path)
	case copyengine.FileSkipped:
		p.app.printf("%s %s (%s)\n", shared.SkipSymbol(), event.Path, event.Reason)
	case copyengine.FileFailed:
		p.app.printf("%s %s: %v\n", shared.ErrorSymbol(), event.Path, event.Err)
	case copyengine.SpeedUpdate:
		p.progress.Do(func() {
			p.logger.Info("copying", zap.String("path", event.Path), zap.Int64("kbps", event.KBps))
		})
	case copyengine.FolderQueued:
		p.logger.Debug("folder queued", zap.String("path", event.Path))
	}
}
