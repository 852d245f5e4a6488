// Package copyengine replicates a selection of documents from one tree into
// another, breadth-first, with per-file progress, CopyMode policy and
// per-file failure isolation.
package copyengine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/joe/lndp/internal/logging"
	lndperrors "github.com/joe/lndp/pkg/errors"
	"github.com/joe/lndp/pkg/fileops"
	"github.com/joe/lndp/pkg/filesystem"
)

// Exported constants.
const (
	// BytesPerKilobyte is the divisor used for kb/s reporting.
	BytesPerKilobyte = 1024
	// SpeedInterval is the minimum time between two SpeedUpdate events.
	SpeedInterval = time.Second
)

// Exported variables.
var (
	ErrCopyPanicked = errors.New("copy operation panicked")
	ErrBusy         = errors.New("copy already running")
)

// CopyWorkItem is one folder waiting to be processed. A nil SourceItems means
// the children of SourceFolder are listed when the item is popped.
type CopyWorkItem struct {
	PathPrefix   string
	SourceItems  []filesystem.DocumentRef
	SourceFolder filesystem.DocumentRef
	DestFolder   filesystem.DocumentRef
}

// Engine drives one copy operation at a time. The queue and counters are
// owned by the goroutine running Copy; only Status is shared.
type Engine struct {
	Source       filesystem.TreeProvider
	Dest         filesystem.TreeProvider
	Mode         CopyMode
	Filter       FileFilter       // optional
	FileOps      *fileops.FileOps // single-file copy step
	TimeProvider TimeProvider
	Logger       *zap.Logger

	enricher lndperrors.Enricher
	emitter  EventEmitter
	mu       sync.RWMutex
	status   Status
	running  bool
}

// NewEngine creates an engine copying from source into dest.
func NewEngine(source, dest filesystem.TreeProvider, mode CopyMode) *Engine {
	return &Engine{
		Source:       source,
		Dest:         dest,
		Mode:         mode,
		FileOps:      fileops.New(source, dest),
		TimeProvider: RealTimeProvider{},
		Logger:       logging.Named("copy"),
		enricher:     lndperrors.NewEnricher(),
	}
}

// SetEventEmitter sets the event sink. The emitter is optional.
func (e *Engine) SetEventEmitter(emitter EventEmitter) {
	e.emitter = emitter
}

// GetStatus returns a snapshot of the current operation.
func (e *Engine) GetStatus() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.status
}

// Copy replicates selection, a list of entries of sourceFolder, into
// destFolder. Per-file failures are reported through FileFailed events and the
// result; they never stop the operation. Copy always reaches StateDone, also
// when ctx is cancelled or a step panics, in which case result.Err is set.
func (e *Engine) Copy(
	ctx context.Context,
	selection []filesystem.DocumentRef,
	sourceFolder, destFolder filesystem.DocumentRef,
) (result *CopyResult) {
	result = &CopyResult{}

	if !e.begin() {
		result.Err = ErrBusy
		return result
	}

	defer func() {
		if r := recover(); r != nil {
			e.Logger.Error("copy aborted by panic", zap.Any("panic", r), zap.Stack("stack"))
			result.Err = fmt.Errorf("%w: %v", ErrCopyPanicked, r)
		}

		e.finish(result)
	}()

	e.emit(CopyStarted{Mode: e.Mode, Items: len(selection)})
	e.Logger.Info("copy started",
		zap.Stringer("mode", e.Mode),
		zap.Int("items", len(selection)),
		zap.String("dest", destFolder.ID))

	run := &copyRun{
		engine: e,
		result: result,
		speed:  newSpeedMeter(e.timeProvider(), SpeedInterval),
		queue: []CopyWorkItem{{
			SourceItems:  selection,
			SourceFolder: sourceFolder,
			DestFolder:   destFolder,
		}},
	}

	e.setState(StateScanning)

	if err := run.drain(ctx); err != nil {
		result.Err = err
	}

	return result
}

// copyRun holds the state of one Copy call.
type copyRun struct {
	engine  *Engine
	result  *CopyResult
	speed   *speedMeter
	queue   []CopyWorkItem
	counter int
	total   int
}

// drain processes the FIFO queue until it is empty.
func (r *copyRun) drain(ctx context.Context) error {
	for len(r.queue) > 0 {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("copy stopped: %w", err)
		}

		item := r.queue[0]
		r.queue = r.queue[1:]

		r.processItem(ctx, item)
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("copy stopped: %w", err)
	}

	return nil
}

// processItem lists the item's sources and the destination folder once, then
// handles every source entry in listing order.
func (r *copyRun) processItem(ctx context.Context, item CopyWorkItem) {
	e := r.engine

	sources := item.SourceItems
	if sources == nil {
		listed, err := e.Source.ListChildren(ctx, item.SourceFolder)
		if err != nil {
			r.fail(item.PathPrefix, err)
			return
		}

		sources = listed
	}

	existing, err := e.Dest.ListChildren(ctx, item.DestFolder)
	if err != nil {
		r.fail(item.PathPrefix, err)
		return
	}

	// The first successful listing ends the scanning phase.
	e.setState(StateCopying)

	r.total += len(sources)

	for _, src := range sources {
		if ctx.Err() != nil {
			return
		}

		r.counter++
		e.updateStatus(func(s *Status) {
			s.Counter = r.counter
			s.Total = r.total
			s.QueueDepth = len(r.queue)
		})
		e.emit(QueueProgress{Counter: r.counter, Total: r.total, QueueDepth: len(r.queue)})

		match, found := filesystem.FindByName(existing, src.Name)

		if src.IsDirectory {
			if created, ok := r.copyDirectory(ctx, item, src, match, found); ok {
				existing = append(existing, created)
			}

			continue
		}

		if created, ok := r.copyFile(ctx, item, src, existing, match, found); ok {
			existing = append(existing, created)
		}
	}
}

// copyDirectory reuses or creates the destination directory and queues its
// contents. It returns the directory when it was newly created.
func (r *copyRun) copyDirectory(
	ctx context.Context,
	item CopyWorkItem,
	src, match filesystem.DocumentRef,
	found bool,
) (filesystem.DocumentRef, bool) {
	e := r.engine
	display := item.PathPrefix + src.Name + "/"

	var (
		destDir filesystem.DocumentRef
		created bool
	)

	switch {
	case found && !match.IsDirectory:
		r.skip(display, SkipBlockedByFile)
		return filesystem.DocumentRef{}, false
	case found:
		destDir = match
	default:
		dir, err := e.Dest.CreateDirectory(ctx, item.DestFolder, src.Name)
		if err != nil {
			r.fail(display, err)
			return filesystem.DocumentRef{}, false
		}

		destDir, created = dir, true
		r.result.DirsCreated++
	}

	r.queue = append(r.queue, CopyWorkItem{
		PathPrefix:   display,
		SourceFolder: src,
		DestFolder:   destDir,
	})
	e.emit(FolderQueued{Path: display})
	e.Logger.Debug("folder queued", zap.String("path", display))

	return destDir, created
}

// copyFile applies the mode policy and runs the single-file copy. It returns
// the destination file when a new entry was created.
func (r *copyRun) copyFile(
	ctx context.Context,
	item CopyWorkItem,
	src filesystem.DocumentRef,
	existing []filesystem.DocumentRef,
	match filesystem.DocumentRef,
	found bool,
) (filesystem.DocumentRef, bool) {
	e := r.engine
	display := item.PathPrefix + src.Name

	if e.Filter != nil && !e.Filter.ShouldInclude(display) {
		r.skip(display, SkipFiltered)
		return filesystem.DocumentRef{}, false
	}

	if found && match.IsDirectory {
		r.skip(display, SkipBlockedByDir)
		return filesystem.DocumentRef{}, false
	}

	if found && e.Mode == ModeUpdateIfNewer && DestinationIsCurrent(match, src) {
		r.skip(display, SkipUpToDate)
		return filesystem.DocumentRef{}, false
	}

	e.emit(FileStarted{Path: display, Size: src.Length})
	e.updateStatus(func(s *Status) {
		s.CurrentFile = display
		s.CurrentBytes = 0
		s.CurrentTotal = src.Length
		s.KBps = 0
	})
	r.speed.reset()

	res, err := e.FileOps.CopyDocument(ctx, fileops.CopyRequest{
		Source:   src,
		DestDir:  item.DestFolder,
		Existing: existing,
		Small:    e.Mode == ModeSmall,
		Prefix:   item.PathPrefix,
	}, r.progress)

	_, reused := filesystem.FindByName(existing, res.Name)
	created := res.Target.ID != "" && !reused

	switch {
	case fileops.IsSkip(err):
		r.skip(res.DisplayPath(item.PathPrefix), SkipBlockedByDir)
	case err != nil:
		r.fail(res.DisplayPath(item.PathPrefix), err)
	default:
		r.complete(res.DisplayPath(item.PathPrefix), res)
	}

	return res.Target, created
}

func (r *copyRun) progress(done, total int64, name string) {
	e := r.engine

	e.updateStatus(func(s *Status) {
		s.CurrentBytes = done
		s.CurrentTotal = total
	})
	e.emit(FileProgress{Path: name, Bytes: done, Total: total})

	if kbps, ok := r.speed.sample(done); ok {
		e.updateStatus(func(s *Status) { s.KBps = kbps })
		e.emit(SpeedUpdate{Path: name, KBps: kbps})
	}
}

func (r *copyRun) complete(display string, res *fileops.CopyResult) {
	e := r.engine

	r.result.FilesCopied++
	r.result.BytesCopied += res.Stats.BytesCopied

	e.updateStatus(func(s *Status) {
		s.FilesCopied++
		s.BytesCopied += res.Stats.BytesCopied
	})
	e.emit(FileComplete{Path: display, Bytes: res.Stats.BytesCopied, Downscaled: res.Downscaled})
	e.Logger.Debug("file copied",
		zap.String("path", display),
		zap.Int64("bytes", res.Stats.BytesCopied),
		zap.Bool("downscaled", res.Downscaled))
}

func (r *copyRun) fail(display string, err error) {
	e := r.engine
	enriched := e.enricher.Enrich(err, display)
	failure := FileFailed{Path: display, Err: enriched}

	r.result.FilesFailed++
	r.result.Failures = append(r.result.Failures, failure)

	e.updateStatus(func(s *Status) { s.FilesFailed++ })
	e.emit(failure)
	e.Logger.Warn("copy failed",
		zap.String("path", display),
		zap.String("category", string(lndperrors.CategoryOf(enriched))),
		zap.Error(err))
}

func (r *copyRun) skip(display string, reason SkipReason) {
	e := r.engine

	r.result.FilesSkipped++

	e.updateStatus(func(s *Status) { s.FilesSkipped++ })
	e.emit(FileSkipped{Path: display, Reason: reason})
	e.Logger.Debug("skipped", zap.String("path", display), zap.String("reason", string(reason)))
}

func (e *Engine) begin() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return false
	}

	e.running = true

	if e.Logger == nil {
		e.Logger = zap.NewNop()
	}

	if e.enricher == nil {
		e.enricher = lndperrors.NewEnricher()
	}

	if e.FileOps == nil {
		e.FileOps = fileops.New(e.Source, e.Dest)
	}

	e.status = Status{State: StateIdle, StartTime: e.timeProvider().Now()}

	return true
}

func (e *Engine) finish(result *CopyResult) {
	e.setState(StateDone)

	e.mu.Lock()
	e.status.EndTime = e.timeProvider().Now()
	e.status.CurrentFile = ""
	e.running = false
	e.mu.Unlock()

	e.Logger.Info("copy finished",
		zap.Int("copied", result.FilesCopied),
		zap.Int("skipped", result.FilesSkipped),
		zap.Int("failed", result.FilesFailed),
		zap.Int("dirs_created", result.DirsCreated),
		zap.Int64("bytes", result.BytesCopied),
		zap.Error(result.Err))
	e.emit(CopyComplete{Result: result})
}

func (e *Engine) setState(state State) {
	e.mu.Lock()
	from := e.status.State
	e.status.State = state
	e.mu.Unlock()

	if from != state {
		e.emit(StateChanged{From: from, To: state})
	}
}

func (e *Engine) updateStatus(fn func(*Status)) {
	e.mu.Lock()
	fn(&e.status)
	e.mu.Unlock()
}

// emit sends an event if an emitter is configured.
func (e *Engine) emit(event Event) {
	if e.emitter != nil {
		e.emitter.Emit(event)
	}
}

func (e *Engine) timeProvider() TimeProvider {
	if e.TimeProvider == nil {
		return RealTimeProvider{}
	}

	return e.TimeProvider
}
