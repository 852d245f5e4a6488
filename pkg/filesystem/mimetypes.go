package filesystem

import (
	"mime"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DefaultMimeType is used when nothing better can be determined.
const DefaultMimeType = "application/octet-stream"

// rawExtensions lists camera RAW formats, which are never thumbnailed and are
// selected separately from regular images.
//
//nolint:gochecknoglobals // Read-only lookup table
var rawExtensions = map[string]string{
	"RW2": "image/x-panasonic-rw2",
	"DNG": "image/x-adobe-dng",
}

// thumbnailTypes lists the MIME types the image decoder understands.
//
//nolint:gochecknoglobals // Read-only lookup table
var thumbnailTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/bmp":  true,
	"image/tiff": true,
}

// MimeTypeByName guesses the MIME type from the file extension alone.
func MimeTypeByName(name string) string {
	ext := path.Ext(name)
	if ext == "" {
		return ""
	}

	if raw, ok := rawExtensions[strings.ToUpper(ext[1:])]; ok {
		return raw
	}

	t := mime.TypeByExtension(strings.ToLower(ext))
	if t == "" {
		return ""
	}

	mediaType, _, err := mime.ParseMediaType(t)
	if err != nil {
		return t
	}

	return mediaType
}

// DetectMimeType returns the MIME type of a local file: by extension first,
// then by sniffing the content.
func DetectMimeType(name, localPath string) string {
	if t := MimeTypeByName(name); t != "" {
		return t
	}

	detected, err := mimetype.DetectFile(localPath)
	if err != nil {
		return DefaultMimeType
	}

	return detected.String()
}

// SupportsThumbnail reports whether a thumbnail can be generated for mimeType.
func SupportsThumbnail(mimeType string) bool {
	return thumbnailTypes[mimeType]
}

// IsRawName reports whether name carries a camera RAW extension.
func IsRawName(name string) bool {
	ext := path.Ext(name)
	if ext == "" {
		return false
	}
	_, ok := rawExtensions[strings.ToUpper(ext[1:])]

	return ok
}
