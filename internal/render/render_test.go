package render

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thermal-tracer/internal/annotation"
	thermimage "thermal-tracer/internal/image"
	"thermal-tracer/pkg/geometry"
)

func grayFrame(w, h int) *thermimage.Frame {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{30, 30, 30, 255})
		}
	}
	return &thermimage.Frame{Image: img}
}

func hotspot(id string, boxNumber, classID int, x1, y1, x2, y2 float64) *annotation.Annotation {
	return &annotation.Annotation{
		ID:        id,
		BBox:      annotation.BoundingBox{X1: x1, Y1: y1, X2: x2, Y2: y2},
		ClassID:   classID,
		BoxNumber: boxNumber,
		Source:    annotation.SourceAI,
		Status:    annotation.StatusPending,
	}
}

func TestColorForClass(t *testing.T) {
	assert.Equal(t, ColorFaulty, ColorForClass(0))
	assert.Equal(t, ColorLooseJoint, ColorForClass(1))
	assert.Equal(t, ColorPointOverload, ColorForClass(2))
	assert.Equal(t, ColorPotentialFaulty, ColorForClass(3))
	assert.Equal(t, ColorFallback, ColorForClass(99))
}

func TestDrawAnnotationsOutline(t *testing.T) {
	out := image.NewRGBA(image.Rect(0, 0, 200, 200))
	anns := []*annotation.Annotation{hotspot("a1", 1, 0, 50, 50, 150, 120)}

	DrawAnnotations(out, anns, geometry.NewViewport(), "")

	// Top edge carries the class color, interior away from the badge does not.
	assert.Equal(t, ColorFaulty, out.RGBAAt(100, 50))
	assert.Equal(t, ColorFaulty, out.RGBAAt(50, 100))
	assert.Equal(t, color.RGBA{}, out.RGBAAt(100, 100))
}

func TestDrawAnnotationsViewportTransform(t *testing.T) {
	out := image.NewRGBA(image.Rect(0, 0, 400, 400))
	anns := []*annotation.Annotation{hotspot("a1", 1, 2, 50, 50, 100, 100)}

	vp := geometry.NewViewport()
	vp.Scale = 2.0

	DrawAnnotations(out, anns, vp, "")

	// At 2x the box spans (100,100)-(200,200).
	assert.Equal(t, ColorPointOverload, out.RGBAAt(150, 100))
	assert.Equal(t, color.RGBA{}, out.RGBAAt(150, 90))
}

func TestDrawAnnotationsSelectedFill(t *testing.T) {
	out := image.NewRGBA(image.Rect(0, 0, 200, 200))
	anns := []*annotation.Annotation{hotspot("a1", 1, 0, 50, 50, 150, 150)}

	DrawAnnotations(out, anns, geometry.NewViewport(), "a1")

	// Interior far from outline and badge is filled when selected.
	assert.NotEqual(t, color.RGBA{}, out.RGBAAt(100, 120))
}

func TestDrawBadgeNumber(t *testing.T) {
	out := image.NewRGBA(image.Rect(0, 0, 200, 200))
	anns := []*annotation.Annotation{hotspot("a1", 7, 1, 50, 50, 150, 150)}

	DrawAnnotations(out, anns, geometry.NewViewport(), "")

	// Badge center sits at box corner + offset; some pixel within the badge
	// radius must be white text or the white ring.
	found := false
	for dy := -BadgeRadius; dy <= BadgeRadius && !found; dy++ {
		for dx := -BadgeRadius; dx <= BadgeRadius; dx++ {
			if out.RGBAAt(50+BadgeOffset+dx, 50+BadgeOffset+dy) == ColorBadgeText {
				found = true
				break
			}
		}
	}
	assert.True(t, found)
}

func TestDrawPreviewIsDashed(t *testing.T) {
	out := image.NewRGBA(image.Rect(0, 0, 200, 200))
	DrawPreview(out, geometry.NewRect(20, 20, 100, 60))

	// First dash is on, the following run is off.
	assert.Equal(t, ColorPreview, out.RGBAAt(20, 20))
	assert.Equal(t, color.RGBA{}, out.RGBAAt(20+DashLength, 20))
}

func TestFlattenDeterministic(t *testing.T) {
	frame := grayFrame(320, 240)
	anns := []*annotation.Annotation{
		hotspot("a1", 1, 0, 20, 20, 100, 80),
		hotspot("a2", 2, 3, 150, 100, 250, 200),
	}

	first, err := Flatten(frame, anns)
	require.NoError(t, err)
	second, err := Flatten(frame, anns)
	require.NoError(t, err)

	assert.Equal(t, first.Pix, second.Pix)
}

func TestFlattenUsesNativeScale(t *testing.T) {
	frame := grayFrame(320, 240)
	anns := []*annotation.Annotation{hotspot("a1", 1, 0, 20, 20, 100, 80)}

	out, err := Flatten(frame, anns)
	require.NoError(t, err)

	assert.Equal(t, 320, out.Bounds().Dx())
	assert.Equal(t, 240, out.Bounds().Dy())
	// Outline drawn at image coordinates regardless of any on-screen zoom.
	assert.Equal(t, ColorFaulty, out.RGBAAt(60, 20))
	assert.Equal(t, color.RGBA{30, 30, 30, 255}, out.RGBAAt(300, 230))
}

func TestFlattenWithoutImage(t *testing.T) {
	_, err := Flatten(nil, nil)
	assert.ErrorIs(t, err, annotation.ErrCaptureFailure)

	_, err = Flatten(&thermimage.Frame{}, nil)
	assert.ErrorIs(t, err, annotation.ErrCaptureFailure)
}

func TestEncodePNG(t *testing.T) {
	frame := grayFrame(32, 32)
	out, err := Flatten(frame, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, EncodePNG(&buf, out))
	assert.Equal(t, "\x89PNG", buf.String()[:4])
}
