package filesystem

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"io"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
)

// DecodeOriented decodes an image and rotates it upright according to its
// EXIF orientation tag, if any.
func DecodeOriented(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w: %w", ErrUnsupported, err)
	}

	return applyOrientation(img, exifOrientation(data)), nil
}

// EncodeJPEG encodes img as a JPEG at the given quality.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}

	return buf.Bytes(), nil
}

// MakeThumbnail reads an image and returns a JPEG that fits in size x size.
func MakeThumbnail(r io.Reader, size, quality int) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	img, err := DecodeOriented(data)
	if err != nil {
		return nil, err
	}

	return EncodeJPEG(imaging.Fit(img, size, size, imaging.Lanczos), quality)
}

// exifOrientation returns the EXIF orientation (1-8), or 0 when absent.
func exifOrientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 0
	}

	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 0
	}

	v, err := tag.Int(0)
	if err != nil || v < 1 || v > 8 {
		return 0
	}

	return v
}

func applyOrientation(img image.Image, orientation int) image.Image {
	//nolint:mnd // EXIF orientation values
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}
