// Package render encodes, decodes and rescales rasters produced or fetched by
// the preview pipeline.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	"image/png"
	"io"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Output formats.
const (
	FormatWebP = "webp"
	FormatPNG  = "png"
)

// ErrEmptyTile is returned for images servers send in place of missing tiles.
var ErrEmptyTile = errors.New("empty tile")

// FormatFromPath picks the output format from a file extension, defaulting to webp.
func FormatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return FormatPNG
	case ".svg":
		return FormatSVG
	default:
		return FormatWebP
	}
}

// Encode writes img in the given format. WebP output is lossless so the
// block texture survives unchanged.
func Encode(w io.Writer, img image.Image, format string) error {
	switch format {
	case FormatWebP, "":
		if err := webp.Encode(w, img, &webp.Options{Lossless: true}); err != nil {
			return fmt.Errorf("encode webp: %w", err)
		}
	case FormatPNG:
		if err := png.Encode(w, img); err != nil {
			return fmt.Errorf("encode png: %w", err)
		}
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
	return nil
}

// Decode reads any registered image format. Images one pixel wide or less are
// reported as ErrEmptyTile.
func Decode(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode failed: %w", err)
	}

	// map servers answer out-of-range tiles with 1px placeholders
	if img.Bounds().Dx() <= 1 {
		return nil, format, ErrEmptyTile
	}

	return img, format, nil
}

// Scale resizes img to width x height with nearest-neighbour sampling.
func Scale(img image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	if b := img.Bounds(); b.Dx() == width && b.Dy() == height {
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
		return dst
	}
	xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	return dst
}
