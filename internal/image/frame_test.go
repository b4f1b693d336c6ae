package image

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestPNG(t *testing.T, dir string, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x % 256), uint8(y % 256), 0, 255})
		}
	}
	path := filepath.Join(dir, "capture_0042.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

func TestLoadFrame(t *testing.T) {
	path := writeTestPNG(t, t.TempDir(), 64, 48)

	frame, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 64, frame.Width())
	assert.Equal(t, 48, frame.Height())
	assert.Equal(t, 64.0, frame.Size().Width)
	assert.Equal(t, "capture_0042", frame.Name())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.png"))
	assert.Error(t, err)
}

func TestDecodeReader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8))))

	frame, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 8, frame.Width())
}

func TestPixelAtOutOfBounds(t *testing.T) {
	frame := &Frame{Image: image.NewRGBA(image.Rect(0, 0, 4, 4))}
	assert.Equal(t, color.Black, frame.PixelAt(-1, 0))
	assert.Equal(t, color.Black, frame.PixelAt(4, 4))
}

func TestPixelAtNilImage(t *testing.T) {
	frame := &Frame{}
	assert.Equal(t, color.Black, frame.PixelAt(0, 0))
	assert.Equal(t, 0, frame.Width())
}
