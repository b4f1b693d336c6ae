// Package render draws annotation overlays and flattens the composed view to
// a static raster.
package render

import (
	"image/color"

	"thermal-tracer/internal/annotation"
)

// Fault class palette. These match the colors inspectors are trained on, so
// they are fixed rather than configurable.
var (
	ColorFaulty          = color.RGBA{0xef, 0x44, 0x44, 0xff} // red
	ColorLooseJoint      = color.RGBA{0x22, 0xc5, 0x5e, 0xff} // green
	ColorPointOverload   = color.RGBA{0x3b, 0x82, 0xf6, 0xff} // blue
	ColorPotentialFaulty = color.RGBA{0xea, 0xb3, 0x08, 0xff} // yellow

	ColorFallback  = color.RGBA{0x9c, 0xa3, 0xaf, 0xff} // gray, unknown class
	ColorBadgeText = color.RGBA{0xff, 0xff, 0xff, 0xff}
	ColorPreview   = color.RGBA{0xff, 0xff, 0xff, 0xff}
)

// ColorForClass returns the display color for a fault class.
func ColorForClass(classID int) color.RGBA {
	switch classID {
	case annotation.ClassFaulty.ID:
		return ColorFaulty
	case annotation.ClassLooseJoint.ID:
		return ColorLooseJoint
	case annotation.ClassPointOverload.ID:
		return ColorPointOverload
	case annotation.ClassPotentialFaulty.ID:
		return ColorPotentialFaulty
	default:
		return ColorFallback
	}
}

// withAlpha returns c with its alpha channel replaced, premultiplying the
// color channels to stay a valid color.RGBA.
func withAlpha(c color.RGBA, alpha uint8) color.RGBA {
	return color.RGBA{
		R: uint8(uint16(c.R) * uint16(alpha) / 255),
		G: uint8(uint16(c.G) * uint16(alpha) / 255),
		B: uint8(uint16(c.B) * uint16(alpha) / 255),
		A: alpha,
	}
}
