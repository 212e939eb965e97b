package video

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// SwatchColumns is the number of cells per row in a swatch image.
const SwatchColumns = 16

// SwatchImage lays out palette colors as a 16 column grid of square cells.
func SwatchImage(colors []color.RGBA, cell int) *image.RGBA {
	rows := (len(colors) + SwatchColumns - 1) / SwatchColumns
	img := image.NewRGBA(image.Rect(0, 0, SwatchColumns*cell, rows*cell))
	for i, c := range colors {
		x, y := (i%SwatchColumns)*cell, (i/SwatchColumns)*cell
		draw.Draw(img, image.Rect(x, y, x+cell, y+cell), image.NewUniform(c), image.Point{}, draw.Src)
	}
	return img
}

// Scale upscales an image by an integer factor with nearest-neighbour
// sampling, keeping texel edges sharp.
func Scale(src image.Image, factor int) image.Image {
	if factor <= 1 {
		return src
	}
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx()*factor, b.Dy()*factor))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}

// Encode writes img as PNG or BMP.
func Encode(w io.Writer, img image.Image, format string) error {
	switch strings.ToLower(format) {
	case "png":
		return png.Encode(w, img)
	case "bmp":
		return bmp.Encode(w, img)
	default:
		return fmt.Errorf("unsupported image format %q", format)
	}
}

// Export scales img and writes it to path, picking the format from the
// file extension.
func Export(path string, img image.Image, factor int) error {
	format := strings.TrimPrefix(filepath.Ext(path), ".")
	if format == "" {
		format = "png"
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create image file: %w", err)
	}

	if err := Encode(f, Scale(img, factor), format); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}

	return f.Close()
}
