package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
)

// RootID is the document id of the root of every tree.
const RootID = "/"

// LocalTree implements TreeProvider over a directory of the local disk.
// Document ids are slash-separated paths relative to the root ("/a/b.jpg").
type LocalTree struct {
	root string
}

// NewLocalTree creates a LocalTree rooted at dir.
func NewLocalTree(dir string) (*LocalTree, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", dir, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, classify("open tree", abs, err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("failed to open tree %s: not a directory: %w", abs, ErrNotFound)
	}

	return &LocalTree{root: abs}, nil
}

// Dir returns the absolute directory the tree is rooted at.
func (t *LocalTree) Dir() string {
	return t.root
}

// AppendBytes appends data to the end of file.
func (t *LocalTree) AppendBytes(_ context.Context, file DocumentRef, data []byte) error {
	f, err := os.OpenFile(t.localPath(file.ID), os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return classify("append to", file.ID, err)
	}

	_, err = f.Write(data)
	closeErr := f.Close()

	if err != nil {
		return classify("append to", file.ID, err)
	}

	return classify("append to", file.ID, closeErr)
}

// CreateDirectory creates a directory named name under parent.
func (t *LocalTree) CreateDirectory(_ context.Context, parent DocumentRef, name string) (DocumentRef, error) {
	if !ValidName(name) {
		return DocumentRef{}, fmt.Errorf("failed to create directory %q: invalid name: %w", name, ErrIO)
	}

	id := path.Join(cleanID(parent.ID), name)

	//nolint:mnd // Standard directory permissions
	if err := os.Mkdir(t.localPath(id), 0o755); err != nil {
		return DocumentRef{}, classify("create directory", id, err)
	}

	return t.stat(id)
}

// CreateFile creates an empty file named name under parent.
func (t *LocalTree) CreateFile(_ context.Context, parent DocumentRef, _, name string) (DocumentRef, error) {
	if !ValidName(name) {
		return DocumentRef{}, fmt.Errorf("failed to create file %q: invalid name: %w", name, ErrIO)
	}

	id := path.Join(cleanID(parent.ID), name)

	//nolint:mnd // Standard file permissions
	f, err := os.OpenFile(t.localPath(id), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return DocumentRef{}, classify("create file", id, err)
	}

	if err := f.Close(); err != nil {
		return DocumentRef{}, classify("create file", id, err)
	}

	return t.stat(id)
}

// ListChildren returns the direct children of dir.
func (t *LocalTree) ListChildren(_ context.Context, dir DocumentRef) ([]DocumentRef, error) {
	id := cleanID(dir.ID)

	entries, err := os.ReadDir(t.localPath(id))
	if err != nil {
		return nil, classify("list", id, err)
	}

	children := make([]DocumentRef, 0, len(entries))

	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			// Entry vanished between ReadDir and Info.
			continue
		}

		children = append(children, t.refFromInfo(path.Join(id, entry.Name()), info))
	}

	return children, nil
}

// OpenReader opens file for streaming.
func (t *LocalTree) OpenReader(_ context.Context, file DocumentRef) (io.ReadCloser, error) {
	f, err := os.Open(t.localPath(file.ID))
	if err != nil {
		return nil, classify("open", file.ID, err)
	}

	return f, nil
}

// OpenWriter truncates file and returns a writer positioned at its start.
func (t *LocalTree) OpenWriter(_ context.Context, file DocumentRef) (io.WriteCloser, error) {
	f, err := os.OpenFile(t.localPath(file.ID), os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return nil, classify("open for writing", file.ID, err)
	}

	return f, nil
}

// ReadRange reads up to maxSize bytes of file starting at offset.
func (t *LocalTree) ReadRange(_ context.Context, file DocumentRef, offset int64, maxSize int) ([]byte, error) {
	if offset < 0 || maxSize <= 0 {
		return nil, fmt.Errorf("failed to read %s: invalid range offset=%d size=%d: %w",
			file.ID, offset, maxSize, ErrIO)
	}

	f, err := os.Open(t.localPath(file.ID))
	if err != nil {
		return nil, classify("read", file.ID, err)
	}
	defer f.Close()

	buf := make([]byte, maxSize)

	n, err := f.ReadAt(buf, offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, classify("read", file.ID, err)
	}

	return buf[:n], nil
}

// Rename renames ref in place.
func (t *LocalTree) Rename(_ context.Context, ref DocumentRef, newName string) (DocumentRef, error) {
	id := cleanID(ref.ID)
	if id == RootID || !ValidName(newName) {
		return DocumentRef{}, fmt.Errorf("failed to rename %s to %q: %w", id, newName, ErrUnsupported)
	}

	newID := path.Join(path.Dir(id), newName)

	if _, err := os.Lstat(t.localPath(newID)); err == nil {
		return DocumentRef{}, fmt.Errorf("failed to rename %s: %w", id, ErrAlreadyExists)
	}

	if err := os.Rename(t.localPath(id), t.localPath(newID)); err != nil {
		return DocumentRef{}, classify("rename", id, err)
	}

	return t.stat(newID)
}

// Root returns the root directory.
func (t *LocalTree) Root(_ context.Context) (DocumentRef, error) {
	return t.stat(RootID)
}

// Stat returns the node with the given id.
func (t *LocalTree) Stat(_ context.Context, id string) (DocumentRef, error) {
	return t.stat(id)
}

// Thumbnail returns a JPEG thumbnail of an image, or nil.
func (t *LocalTree) Thumbnail(_ context.Context, ref DocumentRef) []byte {
	if !ref.SupportsThumbnail {
		return nil
	}

	f, err := os.Open(t.localPath(ref.ID))
	if err != nil {
		return nil
	}
	defer f.Close()

	thumb, err := MakeThumbnail(f, ThumbnailSize, ThumbnailQuality)
	if err != nil {
		return nil
	}

	return thumb
}

func (t *LocalTree) localPath(id string) string {
	return filepath.Join(t.root, filepath.FromSlash(cleanID(id)))
}

func (t *LocalTree) refFromInfo(id string, info fs.FileInfo) DocumentRef {
	name := info.Name()
	if id == RootID {
		name = filepath.Base(t.root)
	}

	if info.IsDir() {
		return NewDirectoryRef(id, name, info.ModTime())
	}

	mimeType := DetectMimeType(name, t.localPath(id))

	return NewFileRef(id, name, mimeType, info.Size(), info.ModTime(), SupportsThumbnail(mimeType))
}

func (t *LocalTree) stat(id string) (DocumentRef, error) {
	id = cleanID(id)

	info, err := os.Stat(t.localPath(id))
	if err != nil {
		return DocumentRef{}, classify("stat", id, err)
	}

	return t.refFromInfo(id, info), nil
}

// cleanID normalises an id to an absolute slash path that cannot escape the root.
func cleanID(id string) string {
	return path.Clean("/" + id)
}
