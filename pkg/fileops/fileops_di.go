package fileops

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/joe/lndp/pkg/filesystem"
)

// FileOps copies single documents from a source tree into a destination tree.
type FileOps struct {
	Source        filesystem.TreeProvider
	Dest          filesystem.TreeProvider
	BufferSize    int
	MaxEmptyReads int
	Threshold     int
	Quality       int

	buf []byte
}

// New creates a FileOps with the default buffer, retry budget and downscale
// settings.
func New(source, dest filesystem.TreeProvider) *FileOps {
	return &FileOps{
		Source:        source,
		Dest:          dest,
		BufferSize:    filesystem.BufferSize,
		MaxEmptyReads: MaxEmptyReads,
		Threshold:     SmallThreshold,
		Quality:       SmallQuality,
	}
}

// CopyRequest describes one file to copy.
type CopyRequest struct {
	Source filesystem.DocumentRef
	// DestDir is the destination folder.
	DestDir filesystem.DocumentRef
	// Existing is the listing of DestDir taken before the copy.
	Existing []filesystem.DocumentRef
	// Small enables image downscaling.
	Small bool
	// Prefix is the display prefix of the folder, e.g. "albums/2023/".
	Prefix string
}

// CopyResult describes a finished copy attempt.
type CopyResult struct {
	// Name is the destination file name, which differs from the source name
	// when the image was downscaled.
	Name       string
	Target     filesystem.DocumentRef
	Expected   int64
	Downscaled bool
	Stats      CopyStats
}

// DisplayPath returns the prefixed destination name used in progress reports.
func (r *CopyResult) DisplayPath(prefix string) string {
	return prefix + r.Name
}

// SourceStream is an opened source, possibly replaced by a downscaled copy.
type SourceStream struct {
	Reader     io.ReadCloser
	Name       string
	MimeType   string
	Length     int64
	Downscaled bool
}

// OpenSource opens the source document. With small set and an image source,
// the image is decoded and, if large enough, replaced by a downscaled JPEG.
func (fo *FileOps) OpenSource(ctx context.Context, src filesystem.DocumentRef, small bool) (*SourceStream, error) {
	r, err := fo.Source.OpenReader(ctx, src)
	if err != nil {
		return nil, err //nolint:wrapcheck // Providers already add context
	}

	stream := &SourceStream{Reader: r, Name: src.Name, MimeType: src.MimeType, Length: src.Length}

	if !small || !src.IsImage() {
		return stream, nil
	}

	data, err := io.ReadAll(r)
	_ = r.Close()

	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w: %w", src.Name, filesystem.ErrIO, err)
	}

	if encoded, ok := Downscale(data, fo.Threshold, fo.Quality); ok {
		return &SourceStream{
			Reader:     io.NopCloser(bytes.NewReader(encoded)),
			Name:       SmallName(src.Name),
			MimeType:   SmallMimeType,
			Length:     int64(len(encoded)),
			Downscaled: true,
		}, nil
	}

	stream.Reader = io.NopCloser(bytes.NewReader(data))

	return stream, nil
}

// CopyDocument runs the single-file copy: open (and maybe downscale) the
// source, create or reuse the destination entry, stream through the buffer,
// and check that exactly the source length was written. Streams are closed
// on every path. The result is returned even on failure so callers can report
// partial progress.
//
//nolint:funlen // Sequential steps sharing cleanup
func (fo *FileOps) CopyDocument(ctx context.Context, req CopyRequest, progress ProgressCallback) (*CopyResult, error) {
	result := &CopyResult{Name: req.Source.Name, Expected: req.Source.Length}

	stream, err := fo.OpenSource(ctx, req.Source, req.Small)
	if err != nil {
		return result, err
	}

	defer func() {
		_ = stream.Reader.Close()
	}()

	result.Name = stream.Name
	result.Expected = stream.Length
	result.Downscaled = stream.Downscaled
	display := req.Prefix + stream.Name

	if stream.Length < 0 {
		return result, fmt.Errorf("failed to copy %s: unknown source length: %w", display, filesystem.ErrTruncated)
	}

	target, err := fo.prepareTarget(ctx, req, stream)
	if err != nil {
		return result, err
	}

	result.Target = target

	w, err := fo.Dest.OpenWriter(ctx, target)
	if err != nil {
		return result, err //nolint:wrapcheck // Providers already add context
	}

	stats, copyErr := CopyStream(ctx, stream.Reader, w, stream.Length, fo.buffer(), fo.MaxEmptyReads, display, progress)
	result.Stats = *stats

	if closeErr := w.Close(); closeErr != nil && copyErr == nil {
		copyErr = fmt.Errorf("failed to finish %s: %w: %w", display, filesystem.ErrIO, closeErr)
	}

	return result, copyErr
}

// prepareTarget finds the destination entry to overwrite, or creates one.
func (fo *FileOps) prepareTarget(
	ctx context.Context,
	req CopyRequest,
	stream *SourceStream,
) (filesystem.DocumentRef, error) {
	if existing, ok := filesystem.FindByName(req.Existing, stream.Name); ok {
		if existing.IsDirectory {
			return filesystem.DocumentRef{}, fmt.Errorf("failed to copy %s%s: %w",
				req.Prefix, stream.Name, ErrBlockedByDirectory)
		}

		return existing, nil
	}

	target, err := fo.Dest.CreateFile(ctx, req.DestDir, stream.MimeType, stream.Name)
	if err != nil {
		return filesystem.DocumentRef{}, err //nolint:wrapcheck // Providers already add context
	}

	return target, nil
}

func (fo *FileOps) buffer() []byte {
	size := fo.BufferSize
	if size <= 0 {
		size = filesystem.BufferSize
	}

	if len(fo.buf) != size {
		fo.buf = make([]byte, size)
	}

	return fo.buf
}

// IsSkip reports whether err means the file was deliberately not copied.
func IsSkip(err error) bool {
	return errors.Is(err, ErrBlockedByDirectory)
}
