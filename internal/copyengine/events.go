package copyengine

// Event is the interface implemented by all copy engine events.
type Event interface {
	isEvent()
}

// EventEmitter is the interface for emitting events.
type EventEmitter interface {
	Emit(event Event)
}

// EmitterFunc adapts a function to EventEmitter.
type EmitterFunc func(Event)

// Emit calls f(event).
func (f EmitterFunc) Emit(event Event) {
	f(event)
}

// CopyStarted is emitted once before the first listing.
type CopyStarted struct {
	Mode  CopyMode
	Items int
}

func (CopyStarted) isEvent() {}

// StateChanged is emitted on every state transition.
type StateChanged struct {
	From State
	To   State
}

func (StateChanged) isEvent() {}

// QueueProgress is emitted for every source entry visited. Counter grows by
// one per entry; Total grows as folders are listed.
type QueueProgress struct {
	Counter    int
	Total      int
	QueueDepth int
}

func (QueueProgress) isEvent() {}

// FolderQueued is emitted when a directory's contents are queued.
type FolderQueued struct {
	Path string // display path ending in "/"
}

func (FolderQueued) isEvent() {}

// File events

// FileStarted is emitted when a file copy begins.
type FileStarted struct {
	Path string
	Size int64
}

func (FileStarted) isEvent() {}

// FileProgress is emitted after every chunk written. Bytes is strictly
// increasing for a given file.
type FileProgress struct {
	Path  string
	Bytes int64
	Total int64
}

func (FileProgress) isEvent() {}

// SpeedUpdate carries the average transfer rate of the current file, at most
// once per second.
type SpeedUpdate struct {
	Path string
	KBps int64
}

func (SpeedUpdate) isEvent() {}

// FileSkipped is emitted for a file or directory that was deliberately not
// copied.
type FileSkipped struct {
	Path   string
	Reason SkipReason
}

func (FileSkipped) isEvent() {}

// FileFailed is emitted for a file that could not be copied. The overall copy
// continues.
type FileFailed struct {
	Path string
	Err  error
}

func (FileFailed) isEvent() {}

// FileComplete is emitted after a file was copied and verified.
type FileComplete struct {
	Path       string
	Bytes      int64
	Downscaled bool
}

func (FileComplete) isEvent() {}

// CopyComplete is emitted once when the engine reaches Done.
type CopyComplete struct {
	Result *CopyResult
}

func (CopyComplete) isEvent() {}

// SkipReason explains a FileSkipped event.
type SkipReason string

// Skip reasons.
const (
	SkipUpToDate      SkipReason = "destination is newer"
	SkipBlockedByDir  SkipReason = "destination name is a directory"
	SkipBlockedByFile SkipReason = "destination name is a file"
	SkipFiltered      SkipReason = "excluded by filter"
)

// CopyResult summarises a finished copy operation.
type CopyResult struct {
	FilesCopied  int
	FilesSkipped int
	FilesFailed  int
	DirsCreated  int
	BytesCopied  int64
	Failures     []FileFailed
	// Err is set when the operation ended early (cancellation or panic).
	Err error
}
