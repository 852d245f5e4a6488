// Package fileops implements the single-file copy step between two document
// trees: streaming through a fixed buffer with progress reporting, tolerating
// a few empty reads, optional image downscaling, and verifying the byte count.
package fileops

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/joe/lndp/pkg/filesystem"
)

// Exported constants.
const (
	// MaxEmptyReads is how many consecutive reads may return no data before
	// the file is abandoned.
	MaxEmptyReads = 3
)

// Exported variables.
var (
	ErrCopyCancelled = errors.New("copy cancelled")
	// ErrBlockedByDirectory reports that the destination name is taken by a
	// directory; the file is skipped rather than merged.
	ErrBlockedByDirectory = errors.New("destination name is a directory")
)

// CopyStats contains timing information about a copy.
type CopyStats struct {
	BytesCopied int64
	EmptyReads  int
	ReadTime    time.Duration
	WriteTime   time.Duration
}

// ProgressCallback is called after every chunk written. bytesTransferred is
// strictly increasing for a given file.
type ProgressCallback func(bytesTransferred int64, totalBytes int64, currentFile string)

// CopyStream copies expected bytes from src to dst through buf. A read that
// returns no data counts as empty; maxEmpty consecutive empty reads end the
// copy early. The returned stats always hold the bytes actually written, and
// a short copy is reported as filesystem.ErrTruncated.
//
//nolint:cyclop,funlen // Read, write, empty-read budget and cancellation in one loop
func CopyStream(
	ctx context.Context,
	src io.Reader,
	dst io.Writer,
	expected int64,
	buf []byte,
	maxEmpty int,
	name string,
	progress ProgressCallback,
) (*CopyStats, error) {
	stats := &CopyStats{}

	if expected < 0 {
		return stats, fmt.Errorf("failed to copy %s: unknown source length: %w", name, filesystem.ErrTruncated)
	}

	emptyReads := 0

	for remaining := expected; remaining > 0; {
		if ctx.Err() != nil {
			return stats, fmt.Errorf("failed to copy %s: %w", name, ErrCopyCancelled)
		}

		chunk := buf
		if int64(len(chunk)) > remaining {
			chunk = chunk[:remaining]
		}

		readStart := time.Now()
		nr, err := src.Read(chunk) //nolint:varnamelen // nr is idiomatic for bytes read
		stats.ReadTime += time.Since(readStart)

		if nr > 0 {
			emptyReads = 0

			writeStart := time.Now()
			nw, werr := dst.Write(chunk[:nr]) //nolint:varnamelen // nw is idiomatic for bytes written
			stats.WriteTime += time.Since(writeStart)
			stats.BytesCopied += int64(nw)

			if werr != nil {
				return stats, fmt.Errorf("failed to write %s: %w: %w", name, filesystem.ErrIO, werr)
			}

			if nw != nr {
				return stats, fmt.Errorf("failed to write %s: %w: %w", name, filesystem.ErrIO, io.ErrShortWrite)
			}

			remaining -= int64(nw)

			if progress != nil {
				progress(stats.BytesCopied, expected, name)
			}
		}

		if err != nil && !errors.Is(err, io.EOF) {
			return stats, fmt.Errorf("failed to read %s: %w: %w", name, filesystem.ErrIO, err)
		}

		if nr == 0 {
			emptyReads++
			stats.EmptyReads++

			if emptyReads >= maxEmpty {
				break
			}
		}
	}

	if stats.BytesCopied != expected {
		return stats, fmt.Errorf("failed to copy %s: wrote %d of %d bytes: %w",
			name, stats.BytesCopied, expected, filesystem.ErrTruncated)
	}

	return stats, nil
}
