package protocol

import (
	"errors"

	"github.com/joe/lndp/pkg/filesystem"
)

// ErrorCode returns the ErrorHeader value for a provider error.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, filesystem.ErrNotFound):
		return ErrorNotFound
	case errors.Is(err, filesystem.ErrAlreadyExists):
		return ErrorAlreadyExists
	case errors.Is(err, filesystem.ErrUnsupported):
		return ErrorUnsupported
	default:
		return ErrorIO
	}
}

// ErrorForCode maps an ErrorHeader value back to its sentinel. Unknown or
// missing codes map to filesystem.ErrIO.
func ErrorForCode(code string) error {
	switch code {
	case ErrorNotFound:
		return filesystem.ErrNotFound
	case ErrorAlreadyExists:
		return filesystem.ErrAlreadyExists
	case ErrorUnsupported:
		return filesystem.ErrUnsupported
	default:
		return filesystem.ErrIO
	}
}
