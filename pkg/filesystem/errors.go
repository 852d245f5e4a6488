package filesystem

import (
	"errors"
	"fmt"
	"io/fs"
)

// Error taxonomy shared by every tree implementation. Providers wrap these
// so callers can classify failures with errors.Is.
var (
	ErrNotFound      = errors.New("document not found")
	ErrIO            = errors.New("i/o failure")
	ErrAlreadyExists = errors.New("document already exists")
	ErrTruncated     = errors.New("byte count mismatch")
	ErrUnsupported   = errors.New("operation not supported")
)

// classify wraps an OS or SFTP error with the matching taxonomy sentinel.
func classify(op, id string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrIO),
		errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrUnsupported):
		return fmt.Errorf("failed to %s %s: %w", op, id, err)
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("failed to %s %s: %w: %w", op, id, ErrNotFound, err)
	case errors.Is(err, fs.ErrExist):
		return fmt.Errorf("failed to %s %s: %w: %w", op, id, ErrAlreadyExists, err)
	default:
		return fmt.Errorf("failed to %s %s: %w: %w", op, id, ErrIO, err)
	}
}
