// Package canvas provides the annotation canvas widget with pan, zoom, and
// box editing.
package canvas

import (
	"image"
	"image/color"
	"image/draw"
	"log"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"
	xdraw "golang.org/x/image/draw"

	"thermal-tracer/internal/app"
	"thermal-tracer/internal/interaction"
	"thermal-tracer/internal/render"
	"thermal-tracer/pkg/geometry"
)

var backgroundColor = color.RGBA{40, 40, 40, 255}

// AnnotationCanvas displays the thermal frame with its annotation overlays
// and feeds pointer events into the interaction machine.
type AnnotationCanvas struct {
	widget.BaseWidget

	session *app.Session
	machine *interaction.Machine

	raster *fynecanvas.Raster

	dragging bool
	lastDrag fyne.Position

	fitted bool

	// Callbacks
	onError           func(err error)
	onSelectionChange func(id string)
}

// NewAnnotationCanvas builds the canvas over an open session.
func NewAnnotationCanvas(session *app.Session, machine *interaction.Machine) *AnnotationCanvas {
	ac := &AnnotationCanvas{
		session: session,
		machine: machine,
	}
	ac.raster = fynecanvas.NewRaster(ac.draw)
	ac.ExtendBaseWidget(ac)

	session.On(app.EventImageLoaded, func(data interface{}) {
		ac.fitted = false
		ac.Refresh()
	})
	session.On(app.EventAnnotationsChanged, func(data interface{}) {
		ac.Refresh()
	})
	return ac
}

func (ac *AnnotationCanvas) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(ac.raster)
}

// OnError registers a callback for transition errors raised by gestures.
func (ac *AnnotationCanvas) OnError(callback func(err error)) {
	ac.onError = callback
}

// OnSelectionChange registers a callback fired when the selection changes.
func (ac *AnnotationCanvas) OnSelectionChange(callback func(id string)) {
	ac.onSelectionChange = callback
}

// draw renders the frame and overlays for the current transform. It is the
// raster generator, invoked by fyne on every refresh.
func (ac *AnnotationCanvas) draw(w, h int) image.Image {
	output := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(output, output.Bounds(), &image.Uniform{backgroundColor}, image.Point{}, draw.Src)

	frame := ac.session.Frame
	if frame == nil || frame.Image == nil {
		return output
	}

	if !ac.fitted && w > 0 && h > 0 {
		ac.machine.FitToImage(frame.Size().Width, frame.Size().Height, float64(w), float64(h))
		ac.fitted = true
	}

	vp := ac.machine.Viewport()

	// Scale the frame into its viewport rectangle.
	frameRect := vp.RectToViewport(geometry.NewRect(0, 0, frame.Size().Width, frame.Size().Height))
	target := image.Rect(
		int(frameRect.X), int(frameRect.Y),
		int(frameRect.X+frameRect.Width), int(frameRect.Y+frameRect.Height),
	)
	xdraw.NearestNeighbor.Scale(output, target, frame.Image, frame.Image.Bounds(), xdraw.Over, nil)

	// While a move or resize is in progress the selected box follows the
	// pointer, not its stored geometry.
	visible := ac.session.Store.Visible()
	if dragBox, active := ac.machine.DragBox(); active {
		for i, a := range visible {
			if a.ID == ac.machine.SelectedID() {
				moved := *a
				moved.BBox = dragBox
				visible[i] = &moved
			}
		}
	}
	render.DrawAnnotations(output, visible, vp, ac.machine.SelectedID())

	if preview, active := ac.machine.Preview(); active {
		render.DrawPreview(output, vp.RectToViewport(preview))
	}
	return output
}

func (ac *AnnotationCanvas) point(pos fyne.Position) geometry.Point2D {
	return geometry.Point2D{X: float64(pos.X), Y: float64(pos.Y)}
}

func (ac *AnnotationCanvas) report(err error) {
	if err == nil {
		return
	}
	log.Printf("gesture failed: %v", err)
	if ac.onError != nil {
		ac.onError(err)
	}
}

func (ac *AnnotationCanvas) selectionChanged() {
	if ac.onSelectionChange != nil {
		ac.onSelectionChange(ac.machine.SelectedID())
	}
}

// Tapped handles a plain click.
func (ac *AnnotationCanvas) Tapped(ev *fyne.PointEvent) {
	p := ac.point(ev.Position)
	ac.machine.PointerDown(p)
	ac.report(ac.machine.PointerUp(p))
	ac.selectionChanged()
	ac.Refresh()
}

// Dragged handles pan, move, resize, and draw gestures.
func (ac *AnnotationCanvas) Dragged(ev *fyne.DragEvent) {
	if !ac.dragging {
		ac.dragging = true
		start := fyne.Position{
			X: ev.Position.X - ev.Dragged.DX,
			Y: ev.Position.Y - ev.Dragged.DY,
		}
		ac.machine.PointerDown(ac.point(start))
	}
	ac.lastDrag = ev.Position
	ac.machine.PointerMove(ac.point(ev.Position))
	ac.Refresh()
}

// DragEnd commits the gesture.
func (ac *AnnotationCanvas) DragEnd() {
	if !ac.dragging {
		return
	}
	ac.dragging = false
	ac.report(ac.machine.PointerUp(ac.point(ac.lastDrag)))
	ac.selectionChanged()
	ac.Refresh()
}

// Scrolled zooms toward the pointer.
func (ac *AnnotationCanvas) Scrolled(ev *fyne.ScrollEvent) {
	steps := 1
	if ev.Scrolled.DY < 0 {
		steps = -1
	}
	ac.machine.Wheel(ac.point(ev.Position), steps)
	ac.Refresh()
}

// ZoomIn zooms toward the canvas center.
func (ac *AnnotationCanvas) ZoomIn() {
	ac.machine.ZoomIn(ac.center())
	ac.Refresh()
}

// ZoomOut zooms away from the canvas center.
func (ac *AnnotationCanvas) ZoomOut() {
	ac.machine.ZoomOut(ac.center())
	ac.Refresh()
}

// FitToWindow refits the image on the next draw.
func (ac *AnnotationCanvas) FitToWindow() {
	ac.fitted = false
	ac.Refresh()
}

// DeleteSelected handles the Delete key.
func (ac *AnnotationCanvas) DeleteSelected() {
	ac.report(ac.machine.DeleteSelected())
	ac.selectionChanged()
	ac.Refresh()
}

func (ac *AnnotationCanvas) center() geometry.Point2D {
	size := ac.Size()
	return geometry.Point2D{X: float64(size.Width) / 2, Y: float64(size.Height) / 2}
}
