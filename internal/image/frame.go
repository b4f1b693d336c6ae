// Package image loads thermal inspection frames for display and capture.
package image

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"thermal-tracer/pkg/geometry"

	_ "golang.org/x/image/tiff"
)

// Frame is a single decoded thermal image.
type Frame struct {
	Path  string      // Original file path
	Image image.Image // Decoded pixel data
}

// Load decodes the image at path. PNG, JPEG, and TIFF are supported; thermal
// cameras commonly export radiometric captures as TIFF.
func Load(path string) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", filepath.Base(path), err)
	}

	return &Frame{Path: path, Image: img}, nil
}

// Decode reads a frame from an in-memory or streamed source.
func Decode(r io.Reader) (*Frame, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return &Frame{Image: img}, nil
}

// Width returns the image width in pixels.
func (f *Frame) Width() int {
	if f.Image == nil {
		return 0
	}
	return f.Image.Bounds().Dx()
}

// Height returns the image height in pixels.
func (f *Frame) Height() int {
	if f.Image == nil {
		return 0
	}
	return f.Image.Bounds().Dy()
}

// Size returns the image dimensions.
func (f *Frame) Size() geometry.Size {
	return geometry.Size{
		Width:  float64(f.Width()),
		Height: float64(f.Height()),
	}
}

// PixelAt returns the color at the specified pixel coordinates.
func (f *Frame) PixelAt(x, y int) color.Color {
	if f.Image == nil {
		return color.Black
	}
	bounds := f.Image.Bounds()
	if x < bounds.Min.X || x >= bounds.Max.X || y < bounds.Min.Y || y >= bounds.Max.Y {
		return color.Black
	}
	return f.Image.At(x, y)
}

// Name returns the base filename without extension, used as the default
// inspection label.
func (f *Frame) Name() string {
	base := filepath.Base(f.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
