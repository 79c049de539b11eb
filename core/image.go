package core

import (
	"bytes"
	"fmt"
	"io"

	"github.com/disintegration/imaging"
)

const (
	maxImageDimension = 1024
	jpegQuality       = 70
)

// CompressImage re-encodes an uploaded image as JPEG, scaled down to
// fit 1024x1024. Images already smaller keep their dimensions; only the
// encoding changes. Camera uploads routinely arrive at 5-10 MB, and
// the storefront never renders larger than this.
func CompressImage(r io.Reader) ([]byte, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	if img.Bounds().Dx() > maxImageDimension || img.Bounds().Dy() > maxImageDimension {
		img = imaging.Fit(img, maxImageDimension, maxImageDimension, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
