package copyengine_test

import (
	"context"
	"reflect"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	. "github.com/onsi/gomega" //nolint:revive // Dot import is idiomatic for Gomega matchers

	"github.com/joe/lndp/internal/copyengine"
	lndperrors "github.com/joe/lndp/pkg/errors"
	"github.com/joe/lndp/pkg/filesystem"
)

var (
	older = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer = older.Add(time.Hour)
)

func TestCopyIsBreadthFirst(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	src := filesystem.NewMockTree()
	src.AddFile("/sub/b.txt", []byte("bbb"), older)
	src.AddFile("/a.txt", []byte("aa"), older)
	dst := filesystem.NewMockTree()

	result, _ := runCopy(g, src, dst, copyengine.ModeFull, nil)

	g.Expect(result.Err).ShouldNot(HaveOccurred())
	g.Expect(result.FilesCopied).Should(Equal(2))
	g.Expect(result.DirsCreated).Should(Equal(1))
	g.Expect(result.BytesCopied).Should(Equal(int64(5)))

	calls := src.Calls()
	g.Expect(slices.Index(calls, "open /a.txt")).Should(BeNumerically("<", slices.Index(calls, "list /sub")))

	content, ok := dst.Content("/sub/b.txt")
	g.Expect(ok).Should(BeTrue())
	g.Expect(string(content)).Should(Equal("bbb"))
}

func TestCopyListsDestinationOncePerFolder(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	src := filesystem.NewMockTree()
	for _, name := range []string{"/1.txt", "/2.txt", "/3.txt", "/d/4.txt", "/d/5.txt"} {
		src.AddFile(name, []byte("x"), older)
	}

	dst := filesystem.NewMockTree()

	runCopy(g, src, dst, copyengine.ModeFull, nil)

	lists := 0

	for _, call := range dst.Calls() {
		if strings.HasPrefix(call, "list ") {
			lists++
		}
	}

	g.Expect(lists).Should(Equal(2))
}

func TestCopyReportsQueueProgressAndPrefixes(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	src := filesystem.NewMockTree()
	src.AddFile("/albums/2023/IMG_1.JPG", []byte("jpg"), older)
	dst := filesystem.NewMockTree()

	_, events := runCopy(g, src, dst, copyengine.ModeFull, nil)

	g.Expect(events.of(copyengine.FolderQueued{})).Should(Equal([]copyengine.Event{
		copyengine.FolderQueued{Path: "albums/"},
		copyengine.FolderQueued{Path: "albums/2023/"},
	}))
	g.Expect(events.of(copyengine.FileComplete{})).Should(ConsistOf(
		copyengine.FileComplete{Path: "albums/2023/IMG_1.JPG", Bytes: 3},
	))

	progress := events.of(copyengine.QueueProgress{})
	g.Expect(progress).Should(HaveLen(3))
	g.Expect(progress[2]).Should(Equal(copyengine.QueueProgress{Counter: 3, Total: 3}))
}

func TestCopySkipsFileBlockedByDirectory(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	src := filesystem.NewMockTree()
	src.AddFile("/notes", []byte("text"), older)
	dst := filesystem.NewMockTree()
	dst.AddDir("/notes", older)

	result, events := runCopy(g, src, dst, copyengine.ModeFull, nil)

	g.Expect(result.FilesSkipped).Should(Equal(1))
	g.Expect(result.FilesCopied).Should(BeZero())
	g.Expect(events.of(copyengine.FileSkipped{})).Should(ConsistOf(
		copyengine.FileSkipped{Path: "notes", Reason: copyengine.SkipBlockedByDir},
	))
	g.Expect(src.Calls()).ShouldNot(ContainElement("open /notes"))
}

func TestCopySkipsDirectoryBlockedByFile(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	src := filesystem.NewMockTree()
	src.AddFile("/notes/a.txt", []byte("text"), older)
	dst := filesystem.NewMockTree()
	dst.AddFile("/notes", []byte("file"), older)

	result, events := runCopy(g, src, dst, copyengine.ModeFull, nil)

	g.Expect(result.FilesSkipped).Should(Equal(1))
	g.Expect(events.of(copyengine.FileSkipped{})).Should(ConsistOf(
		copyengine.FileSkipped{Path: "notes/", Reason: copyengine.SkipBlockedByFile},
	))
	g.Expect(src.Calls()).ShouldNot(ContainElement("list /notes"))
}

func TestCopyReusesExistingDirectory(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	src := filesystem.NewMockTree()
	src.AddFile("/photos/a.jpg", []byte("a"), older)
	dst := filesystem.NewMockTree()
	dst.AddDir("/photos", older)

	result, _ := runCopy(g, src, dst, copyengine.ModeFull, nil)

	g.Expect(result.DirsCreated).Should(BeZero())
	g.Expect(dst.Calls()).ShouldNot(ContainElement("mkdir /photos"))

	_, ok := dst.Content("/photos/a.jpg")
	g.Expect(ok).Should(BeTrue())
}

func TestUpdateIfNewerSkipLaw(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		destTime time.Time
		destData string
		wantSkip bool
	}{
		{name: "newer and same length is skipped", destTime: newer, destData: "abc", wantSkip: true},
		{name: "newer with different length is copied", destTime: newer, destData: "abcd"},
		{name: "older with same length is copied", destTime: older.Add(-time.Hour), destData: "abc"},
		{name: "same timestamp is copied", destTime: older, destData: "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g := NewWithT(t)

			src := filesystem.NewMockTree()
			src.AddFile("/f.txt", []byte("xyz"), older)
			dst := filesystem.NewMockTree()
			dst.AddFile("/f.txt", []byte(tt.destData), tt.destTime)

			result, _ := runCopy(g, src, dst, copyengine.ModeUpdateIfNewer, nil)
			content, _ := dst.Content("/f.txt")

			if tt.wantSkip {
				g.Expect(result.FilesSkipped).Should(Equal(1))
				g.Expect(string(content)).Should(Equal(tt.destData))
			} else {
				g.Expect(result.FilesCopied).Should(Equal(1))
				g.Expect(string(content)).Should(Equal("xyz"))
			}
		})
	}
}

func TestFullModeOverwritesNewerDestination(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	src := filesystem.NewMockTree()
	src.AddFile("/f.txt", []byte("xyz"), older)
	dst := filesystem.NewMockTree()
	dst.AddFile("/f.txt", []byte("abc"), newer)

	result, _ := runCopy(g, src, dst, copyengine.ModeFull, nil)

	g.Expect(result.FilesCopied).Should(Equal(1))

	content, _ := dst.Content("/f.txt")
	g.Expect(string(content)).Should(Equal("xyz"))
}

func TestCopyIsolatesFileFailures(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	src := filesystem.NewMockTree()
	bad := src.AddFile("/bad.bin", []byte("0123456789"), older)
	src.AddFile("/good.bin", []byte("ok"), older)
	src.SetStall(bad.ID)
	dst := filesystem.NewMockTree()

	result, events := runCopy(g, src, dst, copyengine.ModeFull, nil)

	g.Expect(result.Err).ShouldNot(HaveOccurred())
	g.Expect(result.FilesFailed).Should(Equal(1))
	g.Expect(result.FilesCopied).Should(Equal(1))
	g.Expect(result.Failures).Should(HaveLen(1))
	g.Expect(result.Failures[0].Path).Should(Equal("bad.bin"))
	g.Expect(result.Failures[0].Err).Should(MatchError(filesystem.ErrTruncated))
	g.Expect(lndperrors.CategoryOf(result.Failures[0].Err)).Should(Equal(lndperrors.CategoryTruncated))
	g.Expect(events.of(copyengine.FileFailed{})).Should(HaveLen(1))

	content, _ := dst.Content("/good.bin")
	g.Expect(string(content)).Should(Equal("ok"))
}

func TestCopyDuplicateSourceNamesOverwrite(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	src := filesystem.NewMockTree()
	src.AddFile("/a.txt", []byte("first"), older)
	other := src.AddFile("/other/b.txt", []byte("second"), older)
	other.Name = "a.txt"

	root, _ := src.Root(context.Background())
	dst := filesystem.NewMockTree()
	destRoot, _ := dst.Root(context.Background())

	selection := []filesystem.DocumentRef{mustStat(g, src, "/a.txt"), other}
	engine := copyengine.NewEngine(src, dst, copyengine.ModeFull)
	result := engine.Copy(context.Background(), selection, root, destRoot)

	g.Expect(result.FilesCopied).Should(Equal(2))
	g.Expect(result.FilesFailed).Should(BeZero())

	content, _ := dst.Content("/a.txt")
	g.Expect(string(content)).Should(Equal("second"))
}

func TestCopyDuplicateDestinationNamesFirstMatchWins(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	src := filesystem.NewMockTree()
	src.AddFile("/notes", []byte("text"), older)
	dst := filesystem.NewMockTree()
	dst.AddDir("/notes", older)
	dst.AddListingEntry("/", filesystem.NewFileRef("/notes-file", "notes", "text/plain", 4, older, false))

	result, _ := runCopy(g, src, dst, copyengine.ModeFull, nil)

	g.Expect(result.FilesSkipped).Should(Equal(1))
}

func TestCopyAppliesFilter(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	src := filesystem.NewMockTree()
	src.AddFile("/a.jpg", []byte("a"), older)
	src.AddFile("/b.txt", []byte("b"), older)
	src.AddFile("/sub/c.JPG", []byte("c"), older)
	dst := filesystem.NewMockTree()

	result, _ := runCopy(g, src, dst, copyengine.ModeFull, copyengine.NewGlobFilter([]string{"*.jpg"}, nil))

	g.Expect(result.FilesCopied).Should(Equal(2))
	g.Expect(result.FilesSkipped).Should(Equal(1))

	_, ok := dst.Content("/b.txt")
	g.Expect(ok).Should(BeFalse())
}

func TestCopyCreatesZeroLengthFiles(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	src := filesystem.NewMockTree()
	src.AddFile("/empty", nil, older)
	dst := filesystem.NewMockTree()

	result, _ := runCopy(g, src, dst, copyengine.ModeFull, nil)

	g.Expect(result.FilesCopied).Should(Equal(1))
	g.Expect(dst.Calls()).Should(ContainElement("create /empty"))
}

func TestCopyStateTransitions(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	src := filesystem.NewMockTree()
	src.AddFile("/a.txt", []byte("a"), older)
	dst := filesystem.NewMockTree()

	_, events := runCopy(g, src, dst, copyengine.ModeFull, nil)

	g.Expect(events.of(copyengine.StateChanged{})).Should(Equal([]copyengine.Event{
		copyengine.StateChanged{From: copyengine.StateIdle, To: copyengine.StateScanning},
		copyengine.StateChanged{From: copyengine.StateScanning, To: copyengine.StateCopying},
		copyengine.StateChanged{From: copyengine.StateCopying, To: copyengine.StateDone},
	}))

	all := events.all()
	g.Expect(all[len(all)-1]).Should(BeAssignableToTypeOf(copyengine.CopyComplete{}))
}

func TestCopyRecoversFromPanic(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	src := &panickingTree{MockTree: filesystem.NewMockTree()}
	dst := filesystem.NewMockTree()

	engine := copyengine.NewEngine(src, dst, copyengine.ModeFull)
	root, _ := src.Root(context.Background())
	destRoot, _ := dst.Root(context.Background())

	result := engine.Copy(context.Background(), nil, root, destRoot)

	g.Expect(result.Err).Should(MatchError(copyengine.ErrCopyPanicked))
	g.Expect(engine.GetStatus().State).Should(Equal(copyengine.StateDone))

	// The engine can run again afterwards.
	result = engine.Copy(context.Background(), []filesystem.DocumentRef{}, root, destRoot)
	g.Expect(result.Err).ShouldNot(HaveOccurred())
}

func TestCopyStopsOnCancelledContext(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	src := filesystem.NewMockTree()
	src.AddFile("/a.txt", []byte("a"), older)
	dst := filesystem.NewMockTree()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine := copyengine.NewEngine(src, dst, copyengine.ModeFull)
	root, _ := src.Root(context.Background())
	destRoot, _ := dst.Root(context.Background())

	result := engine.Copy(ctx, nil, root, destRoot)

	g.Expect(result.Err).Should(MatchError(context.Canceled))
	g.Expect(engine.GetStatus().State).Should(Equal(copyengine.StateDone))
}

func TestCopyReportsSpeedOncePerSecond(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	src := filesystem.NewMockTree()
	src.AddFile("/big.bin", make([]byte, 5*1024), older)
	dst := filesystem.NewMockTree()

	engine := copyengine.NewEngine(src, dst, copyengine.ModeFull)
	engine.TimeProvider = &steppingClock{now: older, step: 600 * time.Millisecond}
	engine.FileOps.BufferSize = 1024

	events := &recorder{}
	engine.SetEventEmitter(events)

	root, _ := src.Root(context.Background())
	destRoot, _ := dst.Root(context.Background())
	engine.Copy(context.Background(), nil, root, destRoot)

	g.Expect(events.of(copyengine.FileProgress{})).Should(HaveLen(5))
	g.Expect(events.of(copyengine.SpeedUpdate{})).Should(Equal([]copyengine.Event{
		copyengine.SpeedUpdate{Path: "big.bin", KBps: 1},
		copyengine.SpeedUpdate{Path: "big.bin", KBps: 1},
	}))
}

func runCopy(
	g Gomega,
	src, dst filesystem.TreeProvider,
	mode copyengine.CopyMode,
	filter copyengine.FileFilter,
) (*copyengine.CopyResult, *recorder) {
	engine := copyengine.NewEngine(src, dst, mode)
	engine.Filter = filter

	events := &recorder{}
	engine.SetEventEmitter(events)

	root, err := src.Root(context.Background())
	g.Expect(err).ShouldNot(HaveOccurred())

	destRoot, err := dst.Root(context.Background())
	g.Expect(err).ShouldNot(HaveOccurred())

	return engine.Copy(context.Background(), nil, root, destRoot), events
}

func mustStat(g Gomega, tree filesystem.TreeProvider, id string) filesystem.DocumentRef {
	ref, err := tree.Stat(context.Background(), id)
	g.Expect(err).ShouldNot(HaveOccurred())

	return ref
}

type recorder struct {
	mu     sync.Mutex
	events []copyengine.Event
}

func (r *recorder) Emit(event copyengine.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, event)
}

func (r *recorder) all() []copyengine.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]copyengine.Event(nil), r.events...)
}

// of returns the recorded events with the same dynamic type as sample.
func (r *recorder) of(sample copyengine.Event) []copyengine.Event {
	var out []copyengine.Event

	for _, event := range r.all() {
		if sameType(event, sample) {
			out = append(out, event)
		}
	}

	return out
}

func sameType(a, b copyengine.Event) bool {
	return reflect.TypeOf(a) == reflect.TypeOf(b)
}

type steppingClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(c.step)

	return c.now
}

type panickingTree struct {
	*filesystem.MockTree
}

func (p *panickingTree) ListChildren(context.Context, filesystem.DocumentRef) ([]filesystem.DocumentRef, error) {
	panic("listing exploded")
}
