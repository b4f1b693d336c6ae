package geometry

// Zoom limits for the viewport. The lower bound keeps the inverse transform
// well-conditioned; the upper bound keeps pixel art from degrading.
const (
	MinZoom = 0.5
	MaxZoom = 3.0
)

// Viewport describes the affine map from image space to viewport space:
//
//	viewport = image*Scale + Offset
//
// Scale is uniform in X and Y; Offset is in viewport pixels.
type Viewport struct {
	Scale  float64 `json:"scale"`
	Offset Point2D `json:"offset"`
}

// NewViewport returns an identity viewport.
func NewViewport() Viewport {
	return Viewport{Scale: 1.0}
}

// Transform returns the image-to-viewport affine transform.
func (v Viewport) Transform() AffineTransform {
	return Translation(v.Offset.X, v.Offset.Y).Compose(Scale(v.Scale, v.Scale))
}

// ToViewport maps an image-space point to viewport space.
func (v Viewport) ToViewport(p Point2D) Point2D {
	return Point2D{X: p.X*v.Scale + v.Offset.X, Y: p.Y*v.Scale + v.Offset.Y}
}

// ToImage maps a viewport-space point (a pointer position) back to image space.
func (v Viewport) ToImage(p Point2D) Point2D {
	return Point2D{X: (p.X - v.Offset.X) / v.Scale, Y: (p.Y - v.Offset.Y) / v.Scale}
}

// RectToViewport maps an image-space rectangle to viewport space.
func (v Viewport) RectToViewport(r Rect) Rect {
	tl := v.ToViewport(r.TopLeft())
	return Rect{X: tl.X, Y: tl.Y, Width: r.Width * v.Scale, Height: r.Height * v.Scale}
}

// ZoomAt rescales the viewport by factor, clamped to [MinZoom, MaxZoom],
// keeping the image point under anchor fixed on screen.
func (v Viewport) ZoomAt(anchor Point2D, factor float64) Viewport {
	newScale := clampScale(v.Scale * factor)
	if newScale == v.Scale {
		return v
	}

	// anchor must map to the same image point before and after:
	// newOffset = anchor - (anchor - oldOffset) * (newScale/oldScale)
	ratio := newScale / v.Scale
	return Viewport{
		Scale: newScale,
		Offset: Point2D{
			X: anchor.X - (anchor.X-v.Offset.X)*ratio,
			Y: anchor.Y - (anchor.Y-v.Offset.Y)*ratio,
		},
	}
}

// Pan translates the viewport offset by delta. Panning past the image bounds
// is allowed.
func (v Viewport) Pan(delta Point2D) Viewport {
	return Viewport{Scale: v.Scale, Offset: v.Offset.Add(delta)}
}

// FitTo computes a viewport that fits the image inside the given viewport
// dimensions, centered, never upscaling. Zero image dimensions leave the
// viewport unchanged.
func (v Viewport) FitTo(imageW, imageH, viewportW, viewportH float64) Viewport {
	if imageW <= 0 || imageH <= 0 {
		return v
	}

	scale := viewportW / imageW
	if s := viewportH / imageH; s < scale {
		scale = s
	}
	if scale > 1.0 {
		scale = 1.0
	}

	return Viewport{
		Scale: scale,
		Offset: Point2D{
			X: (viewportW - imageW*scale) / 2,
			Y: (viewportH - imageH*scale) / 2,
		},
	}
}

func clampScale(s float64) float64 {
	if s < MinZoom {
		return MinZoom
	}
	if s > MaxZoom {
		return MaxZoom
	}
	return s
}
