// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package imaging renders preview thumbnails of files staged for upload, so
// editors can check what they picked before the files reach the CMS.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // GIF decoder
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/webp" // WebP decoder
)

// ErrUnsupported is returned for data that is not a previewable image.
var ErrUnsupported = errors.New("imaging: unsupported image format")

// DefaultMaxSide is the bounding box edge of previews.
const DefaultMaxSide = 320

// Thumbnail is an encoded preview image.
type Thumbnail struct {
	Data        []byte
	ContentType string
	Width       int
	Height      int
}

// Previewer renders thumbnails.
type Previewer struct {
	maxSide int
	quality int
}

// NewPreviewer returns a Previewer fitting images into a maxSide square.
func NewPreviewer(maxSide int) *Previewer {
	if maxSide <= 0 {
		maxSide = DefaultMaxSide
	}
	return &Previewer{maxSide: maxSide, quality: 80}
}

// Thumbnail decodes data, applies its EXIF orientation and scales it down to
// fit the bounding box. Images already smaller are not enlarged. PNG and GIF
// input produce PNG to keep transparency, everything else JPEG.
func (p *Previewer) Thumbnail(data []byte) (*Thumbnail, error) {
	format := detectFormat(data)
	if format == "" {
		return nil, ErrUnsupported
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	if format == "jpeg" {
		img = applyOrientation(img, readExifOrientation(bytes.NewReader(data)))
	}

	b := img.Bounds()
	if b.Dx() > p.maxSide || b.Dy() > p.maxSide {
		img = imaging.Fit(img, p.maxSide, p.maxSide, imaging.Lanczos)
	}

	var buf bytes.Buffer
	contentType := "image/jpeg"
	switch format {
	case "png", "gif":
		contentType = "image/png"
		err = png.Encode(&buf, img)
	default:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: p.quality})
	}
	if err != nil {
		return nil, fmt.Errorf("encoding preview: %w", err)
	}

	out := img.Bounds()
	return &Thumbnail{
		Data:        buf.Bytes(),
		ContentType: contentType,
		Width:       out.Dx(),
		Height:      out.Dy(),
	}, nil
}

// Dimensions returns the size of an encoded image without decoding pixels.
func Dimensions(data []byte) (width, height int, err error) {
	if detectFormat(data) == "" {
		return 0, 0, ErrUnsupported
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("reading image config: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}

// DetectMimeType sniffs the MIME type of data without parameters.
func DetectMimeType(data []byte) string {
	contentType := http.DetectContentType(data)
	if idx := strings.Index(contentType, ";"); idx != -1 {
		return strings.TrimSpace(contentType[:idx])
	}
	return contentType
}

// readExifOrientation returns the EXIF orientation tag, or 1 when missing.
func readExifOrientation(r io.Reader) int {
	x, err := exif.Decode(r)
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	orientation, err := tag.Int(0)
	if err != nil {
		return 1
	}
	return orientation
}

// applyOrientation undoes the camera rotation named by an EXIF
// orientation value (1 normal, 3 180°, 6 90° CW, 8 90° CCW, even values
// 2/4 and 5/7 add a mirror).
func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.FlipH(imaging.Rotate270(img))
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.FlipH(imaging.Rotate90(img))
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

// detectFormat sniffs the image format. TIFF is rejected (CVE-2023-36308 in
// disintegration/imaging).
func detectFormat(data []byte) string {
	contentType := http.DetectContentType(data)
	switch {
	case strings.Contains(contentType, "tiff"):
		return ""
	case strings.Contains(contentType, "jpeg"):
		return "jpeg"
	case strings.Contains(contentType, "png"):
		return "png"
	case strings.Contains(contentType, "gif"):
		return "gif"
	case strings.Contains(contentType, "webp"):
		return "webp"
	default:
		return ""
	}
}
