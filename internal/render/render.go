package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"

	"thermal-tracer/internal/annotation"
	thermimage "thermal-tracer/internal/image"
	"thermal-tracer/pkg/geometry"
)

const (
	// StrokeWidth is the box outline thickness in viewport pixels.
	StrokeWidth = 3
	// BadgeRadius is the radius of the numbered badge circle.
	BadgeRadius = 12
	// BadgeOffset places the badge center relative to the box top-left corner.
	BadgeOffset = 15
	// DashLength is the on/off run length of the draw preview outline.
	DashLength = 5

	selectedFillAlpha = 50
	badgeTextScale    = 2
)

// DrawAnnotations draws the visible annotation set onto output. Box
// coordinates are transformed from image space to viewport space through vp.
// The annotation whose ID equals selectedID gets a translucent fill.
func DrawAnnotations(output *image.RGBA, anns []*annotation.Annotation, vp geometry.Viewport, selectedID string) {
	for _, a := range anns {
		col := ColorForClass(a.ClassID)
		r := vp.RectToViewport(a.BBox.Rect())

		x1 := int(r.X)
		y1 := int(r.Y)
		x2 := int(r.X + r.Width)
		y2 := int(r.Y + r.Height)

		if a.ID == selectedID {
			fillRect(output, x1, y1, x2, y2, withAlpha(col, selectedFillAlpha))
		}
		drawRectOutline(output, x1, y1, x2, y2, StrokeWidth, col)
		drawBadge(output, x1, y1, a.BoxNumber, col)
	}
}

// DrawPreview draws the dashed outline of an in-progress box. The rectangle
// is given in viewport coordinates.
func DrawPreview(output *image.RGBA, r geometry.Rect) {
	x1 := int(r.X)
	y1 := int(r.Y)
	x2 := int(r.X + r.Width)
	y2 := int(r.Y + r.Height)
	drawDashedRectOutline(output, x1, y1, x2, y2, 1, DashLength, ColorPreview)
}

// drawBadge draws the numbered badge just inside the box top-left corner.
func drawBadge(output *image.RGBA, x1, y1, boxNumber int, col color.RGBA) {
	cx := x1 + BadgeOffset
	cy := y1 + BadgeOffset
	fillCircle(output, cx, cy, BadgeRadius, col, ColorBadgeText)
	drawNumber(output, fmt.Sprintf("%d", boxNumber), cx, cy, badgeTextScale, ColorBadgeText)
}

// Flatten composes the base image and all visible annotations into a single
// raster at native image scale. The output depends only on the frame and the
// annotation set, so flattening the same state twice yields identical pixels.
func Flatten(frame *thermimage.Frame, anns []*annotation.Annotation) (*image.RGBA, error) {
	if frame == nil || frame.Image == nil {
		return nil, fmt.Errorf("%w: no image loaded", annotation.ErrCaptureFailure)
	}

	bounds := frame.Image.Bounds()
	output := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(output, output.Bounds(), frame.Image, bounds.Min, draw.Src)

	DrawAnnotations(output, anns, geometry.NewViewport(), "")
	return output, nil
}

// EncodePNG writes img as PNG, the format the persistence layer stores
// flattened captures in.
func EncodePNG(w io.Writer, img *image.RGBA) error {
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("%w: %v", annotation.ErrCaptureFailure, err)
	}
	return nil
}
