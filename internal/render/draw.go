package render

import (
	"image"
	"image/color"
)

// digitPatterns contains 3x5 pixel patterns for digits 0-9.
// Each digit is represented as 5 rows of 3 bits.
var digitPatterns = [10][5]uint8{
	{0b111, 0b101, 0b101, 0b101, 0b111}, // 0
	{0b010, 0b110, 0b010, 0b010, 0b111}, // 1
	{0b111, 0b001, 0b111, 0b100, 0b111}, // 2
	{0b111, 0b001, 0b111, 0b001, 0b111}, // 3
	{0b101, 0b101, 0b111, 0b001, 0b001}, // 4
	{0b111, 0b100, 0b111, 0b001, 0b111}, // 5
	{0b111, 0b100, 0b111, 0b101, 0b111}, // 6
	{0b111, 0b001, 0b001, 0b001, 0b001}, // 7
	{0b111, 0b101, 0b111, 0b101, 0b111}, // 8
	{0b111, 0b101, 0b111, 0b001, 0b111}, // 9
}

func setPixel(output *image.RGBA, x, y int, col color.RGBA) {
	bounds := output.Bounds()
	if x >= bounds.Min.X && x < bounds.Max.X && y >= bounds.Min.Y && y < bounds.Max.Y {
		output.Set(x, y, col)
	}
}

// drawRectOutline draws a rectangle outline with the given stroke thickness.
// The thickness grows inward so the outline stays within the box.
func drawRectOutline(output *image.RGBA, x1, y1, x2, y2, thickness int, col color.RGBA) {
	for t := 0; t < thickness; t++ {
		for x := x1; x <= x2; x++ {
			setPixel(output, x, y1+t, col)
			setPixel(output, x, y2-t, col)
		}
		for y := y1; y <= y2; y++ {
			setPixel(output, x1+t, y, col)
			setPixel(output, x2-t, y, col)
		}
	}
}

// drawDashedRectOutline draws a rectangle outline with a dash pattern of
// dashLen pixels on, dashLen pixels off.
func drawDashedRectOutline(output *image.RGBA, x1, y1, x2, y2, thickness, dashLen int, col color.RGBA) {
	if dashLen < 1 {
		dashLen = 1
	}
	on := func(i int) bool { return (i/dashLen)%2 == 0 }

	for t := 0; t < thickness; t++ {
		for x := x1; x <= x2; x++ {
			if on(x - x1) {
				setPixel(output, x, y1+t, col)
				setPixel(output, x, y2-t, col)
			}
		}
		for y := y1; y <= y2; y++ {
			if on(y - y1) {
				setPixel(output, x1+t, y, col)
				setPixel(output, x2-t, y, col)
			}
		}
	}
}

// fillRect fills a rectangle, clipped to the output bounds.
func fillRect(output *image.RGBA, x1, y1, x2, y2 int, col color.RGBA) {
	for y := y1; y <= y2; y++ {
		for x := x1; x <= x2; x++ {
			setPixel(output, x, y, col)
		}
	}
}

// fillCircle draws a filled circle with an optional one pixel ring in
// ringCol around it.
func fillCircle(output *image.RGBA, cx, cy, radius int, col, ringCol color.RGBA) {
	rr := radius * radius
	outer := (radius + 1) * (radius + 1)
	for dy := -radius - 1; dy <= radius+1; dy++ {
		for dx := -radius - 1; dx <= radius+1; dx++ {
			d := dx*dx + dy*dy
			if d <= rr {
				setPixel(output, cx+dx, cy+dy, col)
			} else if d <= outer {
				setPixel(output, cx+dx, cy+dy, ringCol)
			}
		}
	}
}

// drawNumber draws a number centered at (cx, cy) using the 3x5 digit
// patterns, scaled by scale pixels per font pixel.
func drawNumber(output *image.RGBA, label string, cx, cy, scale int, col color.RGBA) {
	if scale < 1 {
		scale = 1
	}
	if scale > 6 {
		scale = 6
	}

	charWidth := 3 * scale
	charHeight := 5 * scale
	spacing := scale
	labelWidth := len(label)*charWidth + (len(label)-1)*spacing

	startX := cx - labelWidth/2
	startY := cy - charHeight/2

	for i, ch := range label {
		if ch < '0' || ch > '9' {
			continue
		}
		pattern := digitPatterns[ch-'0']
		charX := startX + i*(charWidth+spacing)

		for row := 0; row < 5; row++ {
			for c := 0; c < 3; c++ {
				if (pattern[row] & (1 << (2 - c))) == 0 {
					continue
				}
				for dy := 0; dy < scale; dy++ {
					for dx := 0; dx < scale; dx++ {
						setPixel(output, charX+c*scale+dx, startY+row*scale+dy, col)
					}
				}
			}
		}
	}
}
