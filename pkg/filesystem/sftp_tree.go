package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/pkg/sftp"
)

// SFTPTree implements TreeProvider over a directory of an SFTP server.
// Operations borrow a session from a pool so concurrent server requests do
// not serialise on one channel.
type SFTPTree struct {
	pool *SFTPClientPool
	base string
}

// NewSFTPTree creates an SFTPTree rooted at base on conn.
func NewSFTPTree(conn *SFTPConnection, base string, config PoolConfig) (*SFTPTree, error) {
	pool, err := NewSFTPClientPool(conn.SSHClient(), config.Size)
	if err != nil {
		return nil, fmt.Errorf("failed to create SFTP client pool: %w", err)
	}

	return NewSFTPTreeFromPool(pool, base)
}

// NewSFTPTreeFromPool creates an SFTPTree rooted at base using pool's
// sessions. The tree owns the pool and closes it on failure.
func NewSFTPTreeFromPool(pool *SFTPClientPool, base string) (*SFTPTree, error) {
	tree := &SFTPTree{pool: pool, base: base}

	root, err := tree.Root(context.Background())
	if err != nil {
		_ = pool.Close()
		return nil, err
	}

	if !root.IsDirectory {
		_ = pool.Close()
		return nil, fmt.Errorf("failed to open tree %s: not a directory: %w", base, ErrNotFound)
	}

	return tree, nil
}

// AppendBytes appends data to the end of file. Writes go to the current
// size explicitly since servers differ in how they honour append mode.
func (t *SFTPTree) AppendBytes(_ context.Context, file DocumentRef, data []byte) error {
	return t.pool.withClient(func(client *sftp.Client) error {
		info, err := client.Stat(t.remotePath(file.ID))
		if err != nil {
			return classify("append to", file.ID, err)
		}

		if info.IsDir() {
			return fmt.Errorf("failed to append to %s: is a directory: %w", file.ID, ErrIO)
		}

		f, err := client.OpenFile(t.remotePath(file.ID), os.O_WRONLY)
		if err != nil {
			return classify("append to", file.ID, err)
		}

		_, err = f.WriteAt(data, info.Size())
		closeErr := f.Close()

		if err != nil {
			return classify("append to", file.ID, err)
		}

		return classify("append to", file.ID, closeErr)
	})
}

// Close closes the session pool.
func (t *SFTPTree) Close() error {
	return t.pool.Close()
}

// CreateDirectory creates a directory named name under parent.
func (t *SFTPTree) CreateDirectory(_ context.Context, parent DocumentRef, name string) (DocumentRef, error) {
	if !ValidName(name) {
		return DocumentRef{}, fmt.Errorf("failed to create directory %q: invalid name: %w", name, ErrIO)
	}

	id := path.Join(cleanID(parent.ID), name)

	var ref DocumentRef

	err := t.pool.withClient(func(client *sftp.Client) error {
		if _, err := client.Lstat(t.remotePath(id)); err == nil {
			return fmt.Errorf("failed to create directory %s: %w", id, ErrAlreadyExists)
		}

		if err := client.Mkdir(t.remotePath(id)); err != nil {
			return classify("create directory", id, err)
		}

		var err error
		ref, err = t.statWith(client, id)

		return err
	})

	return ref, err
}

// CreateFile creates an empty file named name under parent.
func (t *SFTPTree) CreateFile(_ context.Context, parent DocumentRef, _, name string) (DocumentRef, error) {
	if !ValidName(name) {
		return DocumentRef{}, fmt.Errorf("failed to create file %q: invalid name: %w", name, ErrIO)
	}

	id := path.Join(cleanID(parent.ID), name)

	var ref DocumentRef

	err := t.pool.withClient(func(client *sftp.Client) error {
		if _, err := client.Lstat(t.remotePath(id)); err == nil {
			return fmt.Errorf("failed to create file %s: %w", id, ErrAlreadyExists)
		}

		f, err := client.OpenFile(t.remotePath(id), os.O_WRONLY|os.O_CREATE|os.O_EXCL)
		if err != nil {
			return classify("create file", id, err)
		}

		if err := f.Close(); err != nil {
			return classify("create file", id, err)
		}

		ref, err = t.statWith(client, id)

		return err
	})

	return ref, err
}

// ListChildren returns the direct children of dir.
func (t *SFTPTree) ListChildren(_ context.Context, dir DocumentRef) ([]DocumentRef, error) {
	id := cleanID(dir.ID)

	var children []DocumentRef

	err := t.pool.withClient(func(client *sftp.Client) error {
		infos, err := client.ReadDir(t.remotePath(id))
		if err != nil {
			return classify("list", id, err)
		}

		children = make([]DocumentRef, 0, len(infos))
		for _, info := range infos {
			children = append(children, t.refFromInfo(path.Join(id, info.Name()), info))
		}

		return nil
	})

	return children, err
}

// OpenReader opens file for streaming. The session stays checked out until
// the reader is closed.
func (t *SFTPTree) OpenReader(_ context.Context, file DocumentRef) (io.ReadCloser, error) {
	f, err := t.openPooled(file.ID, os.O_RDONLY, "open")
	if err != nil {
		return nil, err
	}

	return f, nil
}

// OpenWriter truncates file and returns a writer positioned at its start.
func (t *SFTPTree) OpenWriter(_ context.Context, file DocumentRef) (io.WriteCloser, error) {
	f, err := t.openPooled(file.ID, os.O_WRONLY|os.O_TRUNC, "open for writing")
	if err != nil {
		return nil, err
	}

	return f, nil
}

// ReadRange reads up to maxSize bytes of file starting at offset.
func (t *SFTPTree) ReadRange(_ context.Context, file DocumentRef, offset int64, maxSize int) ([]byte, error) {
	if offset < 0 || maxSize <= 0 {
		return nil, fmt.Errorf("failed to read %s: invalid range offset=%d size=%d: %w",
			file.ID, offset, maxSize, ErrIO)
	}

	var data []byte

	err := t.pool.withClient(func(client *sftp.Client) error {
		f, err := client.Open(t.remotePath(file.ID))
		if err != nil {
			return classify("read", file.ID, err)
		}
		defer f.Close()

		buf := make([]byte, maxSize)

		n, err := f.ReadAt(buf, offset)
		if err != nil && !errors.Is(err, io.EOF) {
			return classify("read", file.ID, err)
		}

		data = buf[:n]

		return nil
	})

	return data, err
}

// Rename renames ref in place.
func (t *SFTPTree) Rename(_ context.Context, ref DocumentRef, newName string) (DocumentRef, error) {
	id := cleanID(ref.ID)
	if id == RootID || !ValidName(newName) {
		return DocumentRef{}, fmt.Errorf("failed to rename %s to %q: %w", id, newName, ErrUnsupported)
	}

	newID := path.Join(path.Dir(id), newName)

	var renamed DocumentRef

	err := t.pool.withClient(func(client *sftp.Client) error {
		if _, err := client.Lstat(t.remotePath(newID)); err == nil {
			return fmt.Errorf("failed to rename %s: %w", id, ErrAlreadyExists)
		}

		if err := client.Rename(t.remotePath(id), t.remotePath(newID)); err != nil {
			return classify("rename", id, err)
		}

		var err error
		renamed, err = t.statWith(client, newID)

		return err
	})

	return renamed, err
}

// Root returns the root directory.
func (t *SFTPTree) Root(ctx context.Context) (DocumentRef, error) {
	return t.Stat(ctx, RootID)
}

// Stat returns the node with the given id.
func (t *SFTPTree) Stat(_ context.Context, id string) (DocumentRef, error) {
	var ref DocumentRef

	err := t.pool.withClient(func(client *sftp.Client) error {
		var err error
		ref, err = t.statWith(client, cleanID(id))

		return err
	})

	return ref, err
}

// Thumbnail returns a JPEG thumbnail of an image, or nil.
func (t *SFTPTree) Thumbnail(ctx context.Context, ref DocumentRef) []byte {
	if !ref.SupportsThumbnail {
		return nil
	}

	r, err := t.OpenReader(ctx, ref)
	if err != nil {
		return nil
	}
	defer r.Close()

	thumb, err := MakeThumbnail(r, ThumbnailSize, ThumbnailQuality)
	if err != nil {
		return nil
	}

	return thumb
}

// Summary walks the whole tree and totals its contents.
func (t *SFTPTree) Summary() (Summary, error) {
	var summary Summary

	err := t.pool.withClient(func(client *sftp.Client) error {
		var err error
		summary, err = SummarizeWalker(client.Walk(t.base))

		return err
	})

	return summary, err
}

func (t *SFTPTree) openPooled(id string, flags int, op string) (*PooledSFTPFile, error) {
	client, err := t.pool.Acquire()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire SFTP client: %w: %w", ErrIO, err)
	}

	f, err := client.OpenFile(t.remotePath(id), flags)
	if err != nil {
		t.pool.Release(client)
		return nil, classify(op, id, err)
	}

	pooled, err := NewPooledSFTPFile(f, client, t.pool)
	if err != nil {
		_ = f.Close()
		t.pool.Release(client)

		return nil, fmt.Errorf("failed to %s %s: %w", op, id, err)
	}

	return pooled, nil
}

func (t *SFTPTree) refFromInfo(id string, info os.FileInfo) DocumentRef {
	name := info.Name()
	if id == RootID {
		name = path.Base(t.base)
	}

	if info.IsDir() {
		return NewDirectoryRef(id, name, info.ModTime())
	}

	mimeType := MimeTypeByName(name)

	return NewFileRef(id, name, mimeType, info.Size(), info.ModTime(), SupportsThumbnail(mimeType))
}

func (t *SFTPTree) remotePath(id string) string {
	return path.Join(t.base, cleanID(id))
}

func (t *SFTPTree) statWith(client *sftp.Client, id string) (DocumentRef, error) {
	info, err := client.Stat(t.remotePath(id))
	if err != nil {
		return DocumentRef{}, classify("stat", id, err)
	}

	return t.refFromInfo(id, info), nil
}
