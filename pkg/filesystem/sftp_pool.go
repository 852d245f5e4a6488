package filesystem

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// errPoolClosed is returned by Acquire after Close.
var errPoolClosed = errors.New("sftp pool is closed")

// PoolConfig configures the number of SFTP sessions opened on one SSH connection.
type PoolConfig struct {
	Size int
}

// DefaultPoolConfig returns the default pool configuration.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{Size: 4} //nolint:mnd // Matches typical concurrent server requests
}

// SFTPClientPool hands out SFTP sessions opened on a single SSH connection.
// The buffered channel acts as a semaphore: Acquire blocks while every
// session is in use.
type SFTPClientPool struct {
	clients chan *sftp.Client
	size    int
	mu      sync.Mutex
	closed  bool
}

// SessionOpener opens one SFTP session.
type SessionOpener func() (*sftp.Client, error)

// NewSFTPClientPool opens size SFTP sessions on sshClient.
func NewSFTPClientPool(sshClient *ssh.Client, size int) (*SFTPClientPool, error) {
	return NewSFTPClientPoolFrom(size, func() (*sftp.Client, error) {
		return sftp.NewClient(sshClient) //nolint:wrapcheck // Wrapped by NewSFTPClientPoolFrom
	})
}

// NewSFTPClientPoolFrom fills a pool with size sessions from open.
func NewSFTPClientPoolFrom(size int, open SessionOpener) (*SFTPClientPool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("pool size must be greater than 0, got %d", size) //nolint:err113 // Validation error with actual value
	}

	pool := &SFTPClientPool{
		clients: make(chan *sftp.Client, size),
		size:    size,
	}

	for i := range size {
		client, err := open()
		if err != nil {
			_ = pool.Close()

			return nil, fmt.Errorf("failed to open SFTP session %d/%d: %w", i+1, size, err)
		}
		pool.clients <- client
	}

	return pool, nil
}

// Acquire takes a session from the pool, blocking until one is free.
func (p *SFTPClientPool) Acquire() (*sftp.Client, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()

	if closed {
		return nil, errPoolClosed
	}

	client, ok := <-p.clients
	if !ok {
		return nil, errPoolClosed
	}

	return client, nil
}

// Release returns a session to the pool, or closes it if the pool is closed.
func (p *SFTPClientPool) Release(client *sftp.Client) {
	if client == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		_ = client.Close()
		return
	}

	p.clients <- client
}

// Close closes every idle session. Sessions still checked out are closed on
// Release. Close is idempotent and leaves the SSH connection open.
func (p *SFTPClientPool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.clients)
	p.mu.Unlock()

	var firstErr error

	for client := range p.clients {
		if err := client.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// Size returns the number of sessions the pool was created with.
func (p *SFTPClientPool) Size() int {
	return p.size
}

// withClient runs fn with a pooled session.
func (p *SFTPClientPool) withClient(fn func(*sftp.Client) error) error {
	client, err := p.Acquire()
	if err != nil {
		return fmt.Errorf("failed to acquire SFTP client: %w: %w", ErrIO, err)
	}
	defer p.Release(client)

	return fn(client)
}
