package filesystem

import (
	"errors"
	"io"
	"io/fs"
	"sync"

	"github.com/pkg/sftp"
)

// clientPool abstracts SFTPClientPool for testing.
type clientPool interface {
	Acquire() (*sftp.Client, error)
	Release(client *sftp.Client)
}

// PooledSFTPFile wraps an open SFTP file and returns its session to the pool
// when closed, so a reader or writer handed to the copy engine cannot leak
// pool capacity.
type PooledSFTPFile struct {
	file   io.ReadWriteCloser
	client *sftp.Client
	pool   clientPool
	mu     sync.Mutex
	closed bool
}

// NewPooledSFTPFile wraps file. client may be nil in tests.
func NewPooledSFTPFile(file io.ReadWriteCloser, client *sftp.Client, pool clientPool) (*PooledSFTPFile, error) {
	if file == nil {
		return nil, errors.New("file cannot be nil")
	}

	if pool == nil {
		return nil, errors.New("pool cannot be nil")
	}

	return &PooledSFTPFile{file: file, client: client, pool: pool}, nil
}

// Read reads from the underlying file.
func (f *PooledSFTPFile) Read(p []byte) (int, error) {
	if f.isClosed() {
		return 0, fs.ErrClosed
	}

	return f.file.Read(p) //nolint:wrapcheck // io.Reader contract
}

// Write writes to the underlying file.
func (f *PooledSFTPFile) Write(p []byte) (int, error) {
	if f.isClosed() {
		return 0, fs.ErrClosed
	}

	return f.file.Write(p) //nolint:wrapcheck // io.Writer contract
}

// Close closes the file and always releases the session, even when closing
// the file fails. Close is idempotent.
func (f *PooledSFTPFile) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}

	f.closed = true
	err := f.file.Close()
	f.pool.Release(f.client)

	return err //nolint:wrapcheck // io.Closer contract
}

func (f *PooledSFTPFile) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.closed
}
