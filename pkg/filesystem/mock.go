package filesystem

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"sync"
	"time"
)

// MockTree is an in-memory TreeProvider for tests. Children are listed in
// insertion order, every call is recorded, and read failures can be injected
// per document.
type MockTree struct {
	mu       sync.Mutex
	nodes    map[string]*mockNode
	children map[string][]DocumentRef // extra listing entries, e.g. duplicates
	order    map[string][]string
	calls    []string
	now      time.Time
}

type mockNode struct {
	ref       DocumentRef
	data      []byte
	thumbnail []byte
	readErr   error
	readLimit int // stream ends early after this many bytes when > 0
	stall     bool
}

// NewMockTree creates a MockTree holding only an empty root.
func NewMockTree() *MockTree {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tree := &MockTree{
		nodes:    make(map[string]*mockNode),
		children: make(map[string][]DocumentRef),
		order:    make(map[string][]string),
		now:      now,
	}
	tree.nodes[RootID] = &mockNode{ref: NewDirectoryRef(RootID, "root", now)}

	return tree
}

// AddDir adds a directory (and any missing parents).
func (m *MockTree) AddDir(id string, modTime time.Time) DocumentRef {
	m.mu.Lock()
	defer m.mu.Unlock()

	id = cleanID(id)
	m.ensureParentLocked(id)
	ref := NewDirectoryRef(id, path.Base(id), modTime)
	m.putLocked(&mockNode{ref: ref})

	return ref
}

// AddFile adds a file with content (and any missing parents).
func (m *MockTree) AddFile(id string, content []byte, modTime time.Time) DocumentRef {
	m.mu.Lock()
	defer m.mu.Unlock()

	id = cleanID(id)
	m.ensureParentLocked(id)
	name := path.Base(id)
	mimeType := MimeTypeByName(name)
	ref := NewFileRef(id, name, mimeType, int64(len(content)), modTime, SupportsThumbnail(mimeType))
	m.putLocked(&mockNode{ref: ref, data: append([]byte(nil), content...)})

	return ref
}

// AddListingEntry makes ListChildren of parentID also return ref, after the
// real children. It lets tests model providers that list duplicate names.
func (m *MockTree) AddListingEntry(parentID string, ref DocumentRef) {
	m.mu.Lock()
	defer m.mu.Unlock()

	parentID = cleanID(parentID)
	m.children[parentID] = append(m.children[parentID], ref)
}

// SetReadError makes streams of id fail with err after the first chunk.
func (m *MockTree) SetReadError(id string, err error) {
	m.withNode(id, func(n *mockNode) { n.readErr = err })
}

// SetReadLimit makes streams of id end after limit bytes.
func (m *MockTree) SetReadLimit(id string, limit int) {
	m.withNode(id, func(n *mockNode) { n.readLimit = limit })
}

// SetStall makes streams of id return zero bytes forever.
func (m *MockTree) SetStall(id string) {
	m.withNode(id, func(n *mockNode) { n.stall = true })
}

// SetThumbnail sets the bytes Thumbnail returns for id.
func (m *MockTree) SetThumbnail(id string, thumb []byte) {
	m.withNode(id, func(n *mockNode) {
		n.thumbnail = thumb
		n.ref.SupportsThumbnail = true
	})
}

// Content returns the bytes stored for id.
func (m *MockTree) Content(id string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	node, ok := m.nodes[cleanID(id)]
	if !ok || node.ref.IsDirectory {
		return nil, false
	}

	return append([]byte(nil), node.data...), true
}

// Calls returns the recorded operations, e.g. "list /sub" or "create /a.txt".
func (m *MockTree) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]string(nil), m.calls...)
}

// AppendBytes appends data to file.
func (m *MockTree) AppendBytes(_ context.Context, file DocumentRef, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	node, err := m.fileLocked("append", file.ID)
	if err != nil {
		return err
	}

	m.record("append", node.ref.ID)
	node.data = append(node.data, data...)
	node.ref.Length = int64(len(node.data))

	return nil
}

// CreateDirectory creates a directory under parent.
func (m *MockTree) CreateDirectory(_ context.Context, parent DocumentRef, name string) (DocumentRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, err := m.newChildLocked("mkdir", parent, name)
	if err != nil {
		return DocumentRef{}, err
	}

	ref := NewDirectoryRef(id, name, m.now)
	m.putLocked(&mockNode{ref: ref})

	return ref, nil
}

// CreateFile creates an empty file under parent.
func (m *MockTree) CreateFile(_ context.Context, parent DocumentRef, mimeType, name string) (DocumentRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, err := m.newChildLocked("create", parent, name)
	if err != nil {
		return DocumentRef{}, err
	}

	ref := NewFileRef(id, name, mimeType, 0, m.now, false)
	m.putLocked(&mockNode{ref: ref})

	return ref, nil
}

// ListChildren lists dir in insertion order.
func (m *MockTree) ListChildren(_ context.Context, dir DocumentRef) ([]DocumentRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := cleanID(dir.ID)
	m.record("list", id)

	node, ok := m.nodes[id]
	if !ok || !node.ref.IsDirectory {
		return nil, fmt.Errorf("failed to list %s: %w", id, ErrNotFound)
	}

	refs := make([]DocumentRef, 0, len(m.order[id])+len(m.children[id]))
	for _, childID := range m.order[id] {
		refs = append(refs, m.nodes[childID].ref)
	}

	return append(refs, m.children[id]...), nil
}

// OpenReader streams file with any injected failure applied.
func (m *MockTree) OpenReader(_ context.Context, file DocumentRef) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	node, err := m.fileLocked("open", file.ID)
	if err != nil {
		return nil, err
	}

	m.record("open", node.ref.ID)

	data := node.data
	if node.readLimit > 0 && node.readLimit < len(data) {
		data = data[:node.readLimit]
	}

	return &mockReader{data: bytes.NewReader(data), err: node.readErr, stall: node.stall}, nil
}

// OpenWriter truncates file and returns a writer that stores on Close.
func (m *MockTree) OpenWriter(_ context.Context, file DocumentRef) (io.WriteCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	node, err := m.fileLocked("write", file.ID)
	if err != nil {
		return nil, err
	}

	m.record("write", node.ref.ID)
	node.data = nil
	node.ref.Length = 0

	return &mockWriter{tree: m, id: node.ref.ID}, nil
}

// ReadRange returns a slice of the stored content.
func (m *MockTree) ReadRange(_ context.Context, file DocumentRef, offset int64, maxSize int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	node, err := m.fileLocked("read", file.ID)
	if err != nil {
		return nil, err
	}

	if offset < 0 || maxSize <= 0 {
		return nil, fmt.Errorf("failed to read %s: invalid range: %w", file.ID, ErrIO)
	}

	if offset >= int64(len(node.data)) {
		return []byte{}, nil
	}

	end := min(offset+int64(maxSize), int64(len(node.data)))

	return append([]byte(nil), node.data[offset:end]...), nil
}

// Rename renames a leaf node.
func (m *MockTree) Rename(_ context.Context, ref DocumentRef, newName string) (DocumentRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := cleanID(ref.ID)

	node, ok := m.nodes[id]
	if !ok {
		return DocumentRef{}, fmt.Errorf("failed to rename %s: %w", id, ErrNotFound)
	}

	parent := path.Dir(id)

	newID, err := m.newChildLocked("rename", DocumentRef{ID: parent}, newName)
	if err != nil {
		return DocumentRef{}, err
	}

	delete(m.nodes, id)
	m.removeOrderLocked(parent, id)
	node.ref.ID = newID
	node.ref.Name = newName
	m.putLocked(node)

	return node.ref, nil
}

// Root returns the root directory.
func (m *MockTree) Root(ctx context.Context) (DocumentRef, error) {
	return m.Stat(ctx, RootID)
}

// Stat returns a node by id.
func (m *MockTree) Stat(_ context.Context, id string) (DocumentRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	node, ok := m.nodes[cleanID(id)]
	if !ok {
		return DocumentRef{}, fmt.Errorf("failed to stat %s: %w", id, ErrNotFound)
	}

	return node.ref, nil
}

// Thumbnail returns the bytes set with SetThumbnail, or nil.
func (m *MockTree) Thumbnail(_ context.Context, ref DocumentRef) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	node, ok := m.nodes[cleanID(ref.ID)]
	if !ok {
		return nil
	}

	return node.thumbnail
}

func (m *MockTree) ensureParentLocked(id string) {
	parent := path.Dir(id)
	if _, ok := m.nodes[parent]; ok {
		return
	}

	m.ensureParentLocked(parent)
	m.putLocked(&mockNode{ref: NewDirectoryRef(parent, path.Base(parent), m.now)})
}

func (m *MockTree) fileLocked(op, id string) (*mockNode, error) {
	node, ok := m.nodes[cleanID(id)]
	if !ok {
		return nil, fmt.Errorf("failed to %s %s: %w", op, id, ErrNotFound)
	}

	if node.ref.IsDirectory {
		return nil, fmt.Errorf("failed to %s %s: is a directory: %w", op, id, ErrIO)
	}

	return node, nil
}

func (m *MockTree) newChildLocked(op string, parent DocumentRef, name string) (string, error) {
	parentID := cleanID(parent.ID)

	p, ok := m.nodes[parentID]
	if !ok || !p.ref.IsDirectory {
		return "", fmt.Errorf("failed to %s %s: parent %s: %w", op, name, parentID, ErrNotFound)
	}

	if !ValidName(name) {
		return "", fmt.Errorf("failed to %s %q: invalid name: %w", op, name, ErrIO)
	}

	id := path.Join(parentID, name)
	if _, exists := m.nodes[id]; exists {
		return "", fmt.Errorf("failed to %s %s: %w", op, id, ErrAlreadyExists)
	}

	m.record(op, id)

	return id, nil
}

func (m *MockTree) putLocked(node *mockNode) {
	id := node.ref.ID
	if _, exists := m.nodes[id]; !exists && id != RootID {
		parent := path.Dir(id)
		m.order[parent] = append(m.order[parent], id)
	}

	m.nodes[id] = node
}

func (m *MockTree) record(op, id string) {
	m.calls = append(m.calls, op+" "+id)
}

func (m *MockTree) removeOrderLocked(parent, id string) {
	ids := m.order[parent]
	for i, existing := range ids {
		if existing == id {
			m.order[parent] = append(ids[:i:i], ids[i+1:]...)
			return
		}
	}
}

func (m *MockTree) withNode(id string, fn func(*mockNode)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if node, ok := m.nodes[cleanID(id)]; ok {
		fn(node)
	}
}

type mockReader struct {
	data  *bytes.Reader
	err   error
	stall bool
	reads int
}

func (r *mockReader) Read(p []byte) (int, error) {
	if r.stall {
		return 0, nil
	}

	if r.err != nil && r.reads > 0 {
		return 0, r.err
	}

	r.reads++

	return r.data.Read(p) //nolint:wrapcheck // io.Reader contract
}

func (r *mockReader) Close() error {
	return nil
}

type mockWriter struct {
	tree *MockTree
	id   string
	buf  bytes.Buffer
}

func (w *mockWriter) Write(p []byte) (int, error) {
	return w.buf.Write(p) //nolint:wrapcheck // io.Writer contract
}

func (w *mockWriter) Close() error {
	w.tree.mu.Lock()
	defer w.tree.mu.Unlock()

	if node, ok := w.tree.nodes[w.id]; ok {
		node.data = append(node.data, w.buf.Bytes()...)
		node.ref.Length = int64(len(node.data))
		node.ref.Timestamp = w.tree.now.UnixMilli()
	}

	return nil
}
