package fileops

import (
	"path"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/joe/lndp/pkg/filesystem"
)

// Downscale settings for small copies.
const (
	SmallThreshold = 1920
	SmallQuality   = 75
	SmallMimeType  = "image/jpeg"
)

// SmallName inserts the ".small" marker before the extension. A ".jpeg"
// extension becomes ".jpg"; a name without extension gets ".jpg".
//
//	IMG_1.JPEG -> IMG_1.small.jpg
//	IMG_2.JPG  -> IMG_2.small.JPG
//	scan       -> scan.small.jpg
func SmallName(name string) string {
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)

	switch {
	case ext == "":
		ext = ".jpg"
	case strings.EqualFold(ext, ".jpeg"):
		ext = ".jpg"
	}

	return base + ".small" + ext
}

// Downscale decodes an image and, when its longer side reaches threshold,
// resizes it so the longer side equals threshold and re-encodes it as JPEG.
// It returns ok=false when the image is already small or cannot be decoded,
// in which case the original bytes should be copied unchanged.
func Downscale(data []byte, threshold, quality int) ([]byte, bool) {
	img, err := filesystem.DecodeOriented(data)
	if err != nil {
		return nil, false
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	if width < threshold && height < threshold {
		return nil, false
	}

	newWidth, newHeight := threshold, threshold*height/width
	if width < height {
		newWidth, newHeight = threshold*width/height, threshold
	}

	encoded, err := filesystem.EncodeJPEG(imaging.Resize(img, newWidth, newHeight, imaging.Lanczos), quality)
	if err != nil {
		return nil, false
	}

	return encoded, true
}
