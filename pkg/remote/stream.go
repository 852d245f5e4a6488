package remote

import (
	"context"
	"errors"
	"io"
	"sync"
)

// readAhead is the number of chunks buffered between the fetch loop and the
// reader.
const readAhead = 2

var errWriterClosed = errors.New("writer is closed")

type chunk struct {
	data []byte
	err  error
}

// chunkReader bridges a pull-style range fetch to io.Reader. A background
// goroutine fetches consecutive chunks into a bounded channel; Read blocks on
// the channel until data, an error or the end of the file arrives.
type chunkReader struct {
	chunks <-chan chunk
	cancel context.CancelFunc
	done   <-chan struct{}

	current []byte
	err     error
	once    sync.Once
}

func newChunkReader(ctx context.Context, fetch func(ctx context.Context, offset int64) ([]byte, error)) *chunkReader {
	ctx, cancel := context.WithCancel(ctx)
	chunks := make(chan chunk, readAhead)
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer close(chunks)

		var offset int64

		for {
			data, err := fetch(ctx, offset)
			if err == nil && len(data) == 0 {
				return
			}

			select {
			case chunks <- chunk{data: data, err: err}:
			case <-ctx.Done():
				return
			}

			if err != nil {
				return
			}

			offset += int64(len(data))
		}
	}()

	return &chunkReader{chunks: chunks, cancel: cancel, done: done}
}

// Read implements io.Reader.
func (r *chunkReader) Read(p []byte) (int, error) {
	for len(r.current) == 0 {
		if r.err != nil {
			return 0, r.err
		}

		next, ok := <-r.chunks
		if !ok {
			r.err = io.EOF
			continue
		}

		if next.err != nil {
			r.err = next.err
			continue
		}

		r.current = next.data
	}

	n := copy(p, r.current)
	r.current = r.current[n:]

	return n, nil
}

// Close stops the fetch loop and waits for it to exit.
func (r *chunkReader) Close() error {
	r.once.Do(func() {
		r.cancel()
		<-r.done
	})

	return nil
}

// chunkWriter buffers writes and hands them to send one full chunk at a time.
// Close sends the remainder. After a failed send every call returns that error.
type chunkWriter struct {
	size   int
	buf    []byte
	send   func([]byte) error
	err    error
	closed bool
}

func newChunkWriter(size int, send func([]byte) error) *chunkWriter {
	return &chunkWriter{size: size, buf: make([]byte, 0, size), send: send}
}

// Write implements io.Writer.
func (w *chunkWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, errWriterClosed
	}

	if w.err != nil {
		return 0, w.err
	}

	written := 0

	for len(p) > 0 {
		n := min(w.size-len(w.buf), len(p))
		w.buf = append(w.buf, p[:n]...)
		p = p[n:]
		written += n

		if len(w.buf) == w.size {
			if err := w.flush(); err != nil {
				return written, err
			}
		}
	}

	return written, nil
}

// Close flushes buffered bytes.
func (w *chunkWriter) Close() error {
	if w.closed {
		return w.err
	}

	w.closed = true

	if w.err == nil && len(w.buf) > 0 {
		_ = w.flush()
	}

	return w.err
}

func (w *chunkWriter) flush() error {
	if err := w.send(w.buf); err != nil {
		w.err = err
		return err
	}

	w.buf = w.buf[:0]

	return nil
}
