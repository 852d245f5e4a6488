// Package filesystem provides the document tree abstraction shared by local,
// SFTP and remote (HTTP) trees, so the copy engine and the server can work
// against any of them without knowing where the bytes live.
package filesystem

import (
	"context"
	"io"
	"path"
	"strings"
	"time"
)

// DirMimeType is the MIME type sentinel carried by every directory DocumentRef.
const DirMimeType = "inode/directory"

// Shared sizing constants.
const (
	BufferSize       = 500 * 1024
	ThumbnailSize    = 300
	ThumbnailQuality = 70
)

// DocumentRef is an immutable snapshot of one node of a document tree.
// Listings always return fresh values; a DocumentRef is never a live view.
type DocumentRef struct {
	ID                string
	Name              string
	IsDirectory       bool
	MimeType          string
	Length            int64
	Timestamp         int64 // modification time, epoch milliseconds
	SupportsThumbnail bool
}

// NewDirectoryRef builds a directory DocumentRef.
func NewDirectoryRef(id, name string, modTime time.Time) DocumentRef {
	return DocumentRef{
		ID:          id,
		Name:        name,
		IsDirectory: true,
		MimeType:    DirMimeType,
		Timestamp:   modTime.UnixMilli(),
	}
}

// NewFileRef builds a file DocumentRef. A mimeType equal to DirMimeType is
// replaced with a generic binary type so the directory invariant holds.
func NewFileRef(id, name, mimeType string, length int64, modTime time.Time, thumb bool) DocumentRef {
	if mimeType == "" || mimeType == DirMimeType {
		mimeType = DefaultMimeType
	}

	return DocumentRef{
		ID:                id,
		Name:              name,
		MimeType:          mimeType,
		Length:            length,
		Timestamp:         modTime.UnixMilli(),
		SupportsThumbnail: thumb,
	}
}

// ModTime returns the timestamp as a time.Time.
func (d DocumentRef) ModTime() time.Time {
	return time.UnixMilli(d.Timestamp)
}

// IsImage reports whether the document carries an image MIME type.
func (d DocumentRef) IsImage() bool {
	return strings.HasPrefix(d.MimeType, "image/")
}

// Ext returns the upper-cased extension of the document name, without the dot.
func (d DocumentRef) Ext() string {
	return strings.ToUpper(strings.TrimPrefix(path.Ext(d.Name), "."))
}

// TreeProvider is the capability set every document tree offers.
//
// Implementations must be safe for concurrent use: the server calls them from
// one goroutine per request.
type TreeProvider interface {
	// Root returns the root directory of the tree.
	Root(ctx context.Context) (DocumentRef, error)
	// Stat returns one node by id. Fails with ErrNotFound if it does not exist.
	Stat(ctx context.Context, id string) (DocumentRef, error)
	// ListChildren returns the direct children of dir in no particular order.
	ListChildren(ctx context.Context, dir DocumentRef) ([]DocumentRef, error)
	// ReadRange returns up to maxSize bytes starting at offset. It returns
	// fewer bytes near the end of the file and zero bytes only at EOF.
	ReadRange(ctx context.Context, file DocumentRef, offset int64, maxSize int) ([]byte, error)
	// OpenReader streams the whole file from the start.
	OpenReader(ctx context.Context, file DocumentRef) (io.ReadCloser, error)
	// CreateFile creates an empty file. Fails with ErrAlreadyExists on collision.
	CreateFile(ctx context.Context, parent DocumentRef, mimeType, name string) (DocumentRef, error)
	// CreateDirectory creates a directory. Fails with ErrAlreadyExists on collision.
	CreateDirectory(ctx context.Context, parent DocumentRef, name string) (DocumentRef, error)
	// OpenWriter truncates file and returns a writer that appends from offset 0.
	OpenWriter(ctx context.Context, file DocumentRef) (io.WriteCloser, error)
	// AppendBytes appends data to the end of file.
	AppendBytes(ctx context.Context, file DocumentRef, data []byte) error
	// Rename changes the display name of a node and returns its new snapshot.
	Rename(ctx context.Context, ref DocumentRef, newName string) (DocumentRef, error)
	// Thumbnail returns JPEG thumbnail bytes, or nil when none is available.
	Thumbnail(ctx context.Context, ref DocumentRef) []byte
}

// FindByName returns the first entry whose name matches exactly.
func FindByName(entries []DocumentRef, name string) (DocumentRef, bool) {
	for _, entry := range entries {
		if entry.Name == name {
			return entry, true
		}
	}

	return DocumentRef{}, false
}

// ValidName reports whether name can be used for a new child node.
func ValidName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, "/\x00")
}
