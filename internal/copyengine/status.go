package copyengine

import (
	"fmt"
	"time"
)

// State is the lifecycle state of one copy operation.
type State int

// States.
const (
	StateIdle State = iota
	StateScanning
	StateCopying
	StateDone
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateCopying:
		return "copying"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Status is a snapshot of a running copy, safe to read from another goroutine
// via Engine.GetStatus.
type Status struct {
	State        State
	Counter      int
	Total        int
	QueueDepth   int
	CurrentFile  string
	CurrentBytes int64
	CurrentTotal int64
	KBps         int64
	FilesCopied  int
	FilesSkipped int
	FilesFailed  int
	BytesCopied  int64
	StartTime    time.Time
	EndTime      time.Time
}

// speedMeter computes the average rate of the current file since it started
// and rate-limits reports to one per interval.
type speedMeter struct {
	clock    TimeProvider
	interval time.Duration
	start    time.Time
	last     time.Time // zero until the first report
}

func newSpeedMeter(clock TimeProvider, interval time.Duration) *speedMeter {
	return &speedMeter{clock: clock, interval: interval}
}

func (m *speedMeter) reset() {
	m.start = m.clock.Now()
	m.last = time.Time{}
}

// sample returns the average kb/s for bytes written so far and whether it
// should be reported now. Nothing is reported before one interval has elapsed
// or while the rate rounds down to zero.
func (m *speedMeter) sample(bytes int64) (int64, bool) {
	now := m.clock.Now()

	elapsed := now.Sub(m.start)
	if elapsed < m.interval {
		return 0, false
	}

	if !m.last.IsZero() && now.Sub(m.last) < m.interval {
		return 0, false
	}

	kbps := int64((float64(bytes) / BytesPerKilobyte) / elapsed.Seconds())
	if kbps <= 0 {
		return 0, false
	}

	m.last = now

	return kbps, true
}
