// Package interaction interprets pointer and keyboard events over the image
// surface and turns completed gestures into annotation transitions.
package interaction

import (
	"errors"
	"log"

	"thermal-tracer/internal/annotation"
	"thermal-tracer/pkg/geometry"
)

// Mode is the user-selected interaction mode. Modes are mutually exclusive
// and only change when the user picks one.
type Mode int

const (
	ModeView Mode = iota // pan and zoom only
	ModeEdit             // select, move, resize, delete
	ModeDraw             // create new boxes
)

func (m Mode) String() string {
	switch m {
	case ModeView:
		return "View"
	case ModeEdit:
		return "Edit"
	case ModeDraw:
		return "Draw"
	default:
		return "Unknown"
	}
}

// Handle identifies which corner of a selected box a drag grabs.
type Handle int

const (
	HandleNone Handle = iota
	HandleNW
	HandleNE
	HandleSW
	HandleSE
)

const (
	// WheelZoomFactor is applied per wheel step, matching the on-screen zoom
	// buttons' finer-grained sibling.
	WheelZoomFactor = 1.1
	// ButtonZoomFactor is applied by the explicit zoom in/out controls.
	ButtonZoomFactor = 1.2
	// HandleHitRadius is the pick tolerance around a resize handle, in
	// viewport pixels.
	HandleHitRadius = 8.0
)

type dragKind int

const (
	dragNone dragKind = iota
	dragPan
	dragMove
	dragResize
	dragDraw
)

// Lifecycle is the transition surface the machine commits gestures through.
// *annotation.Engine satisfies it directly; app.Session satisfies it too,
// adding in-flight gating and change events on top.
type Lifecycle interface {
	Create(actor string, c annotation.Candidate) (*annotation.Annotation, error)
	Edit(id, actor string, bbox annotation.BoundingBox, class annotation.Class) (*annotation.Annotation, error)
	Approve(id, actor string) (*annotation.Annotation, error)
	Reject(id, actor, reason string) (*annotation.Annotation, error)
	Delete(id, actor string) error
}

// Machine is the interaction state machine. It is single-threaded: callers
// feed it discrete pointer and keyboard events from the UI event loop.
type Machine struct {
	engine Lifecycle
	store  *annotation.Store
	vp     geometry.Viewport

	mode  Mode
	class annotation.Class
	actor string

	selectedID string

	drag      dragKind
	lastPoint geometry.Point2D // viewport coords of the previous event
	anchor    geometry.Point2D // image coords, fixed corner during resize
	handle    Handle
	workBox   annotation.BoundingBox // live geometry during move/resize
	origBox   annotation.BoundingBox
	preview   geometry.Rect // image coords, draw mode only
	drawStart geometry.Point2D
}

// NewMachine starts in view mode with the default fault class selected.
func NewMachine(engine Lifecycle, store *annotation.Store, actor string) *Machine {
	return &Machine{
		engine: engine,
		store:  store,
		vp:     geometry.NewViewport(),
		mode:   ModeView,
		class:  annotation.ClassFaulty,
		actor:  actor,
	}
}

// Viewport returns the current image-to-viewport transform.
func (m *Machine) Viewport() geometry.Viewport { return m.vp }

// Mode returns the active interaction mode.
func (m *Machine) Mode() Mode { return m.mode }

// SelectedID returns the id of the selected annotation, or "" if none.
func (m *Machine) SelectedID() string { return m.selectedID }

// Class returns the fault class applied to newly drawn boxes.
func (m *Machine) Class() annotation.Class { return m.class }

// SetClass picks the fault class for subsequent draw gestures.
func (m *Machine) SetClass(c annotation.Class) { m.class = c }

// SetActor changes the identity stamped on subsequent transitions.
func (m *Machine) SetActor(actor string) { m.actor = actor }

// SetMode switches the interaction mode. Selection is scoped to edit mode,
// so leaving it clears the selection. Any in-progress gesture is abandoned.
func (m *Machine) SetMode(mode Mode) {
	if mode == m.mode {
		return
	}
	m.mode = mode
	m.drag = dragNone
	m.preview = geometry.Rect{}
	if mode != ModeEdit {
		m.selectedID = ""
	}
}

// FitToImage resets the transform so the whole image is visible, centered,
// never upscaled.
func (m *Machine) FitToImage(imageW, imageH, viewportW, viewportH float64) {
	m.vp = m.vp.FitTo(imageW, imageH, viewportW, viewportH)
}

// Wheel zooms toward the pointer. Positive steps zoom in.
func (m *Machine) Wheel(p geometry.Point2D, steps int) {
	factor := WheelZoomFactor
	if steps < 0 {
		factor = 1 / WheelZoomFactor
		steps = -steps
	}
	for i := 0; i < steps; i++ {
		m.vp = m.vp.ZoomAt(p, factor)
	}
}

// ZoomIn zooms by the button factor toward the given viewport point,
// typically the viewport center.
func (m *Machine) ZoomIn(center geometry.Point2D)  { m.vp = m.vp.ZoomAt(center, ButtonZoomFactor) }
func (m *Machine) ZoomOut(center geometry.Point2D) { m.vp = m.vp.ZoomAt(center, 1/ButtonZoomFactor) }

// PointerDown begins a gesture at the given viewport point.
func (m *Machine) PointerDown(p geometry.Point2D) {
	m.lastPoint = p

	switch m.mode {
	case ModeView:
		m.drag = dragPan

	case ModeEdit:
		m.pointerDownEdit(p)

	case ModeDraw:
		img := m.vp.ToImage(p)
		m.drawStart = img
		m.preview = geometry.NewRect(img.X, img.Y, 0, 0)
		m.drag = dragDraw
	}
}

func (m *Machine) pointerDownEdit(p geometry.Point2D) {
	if m.selectedID != "" {
		if sel, ok := m.selectedAnnotation(); ok {
			if h := m.hitHandle(sel.BBox, p); h != HandleNone {
				m.handle = h
				m.anchor = oppositeCorner(sel.BBox, h)
				m.origBox = sel.BBox
				m.workBox = sel.BBox
				m.drag = dragResize
				return
			}
			if m.hitBody(sel.BBox, p) {
				m.origBox = sel.BBox
				m.workBox = sel.BBox
				m.drag = dragMove
				return
			}
		}
	}

	// No grab on the selection: (de)select whatever is under the pointer.
	img := m.vp.ToImage(p)
	hit := m.annotationAt(img)
	switch {
	case hit == nil:
		m.selectedID = ""
	case hit.ID == m.selectedID:
		m.selectedID = ""
	default:
		m.selectedID = hit.ID
	}
}

// PointerMove advances the active gesture.
func (m *Machine) PointerMove(p geometry.Point2D) {
	switch m.drag {
	case dragPan:
		m.vp = m.vp.Pan(p.Sub(m.lastPoint))

	case dragMove:
		delta := p.Sub(m.lastPoint).Scale(1 / m.vp.Scale)
		m.workBox = annotation.BoundingBox{
			X1: m.workBox.X1 + delta.X,
			Y1: m.workBox.Y1 + delta.Y,
			X2: m.workBox.X2 + delta.X,
			Y2: m.workBox.Y2 + delta.Y,
		}

	case dragResize:
		img := m.vp.ToImage(p)
		m.workBox = annotation.BoxFromCorners(m.anchor, img)

	case dragDraw:
		img := m.vp.ToImage(p)
		m.preview = geometry.RectFromCorners(m.drawStart, img)
	}
	m.lastPoint = p
}

// PointerUp ends the active gesture. Completed edit and draw gestures commit
// through the lifecycle engine; sub-threshold draws are discarded silently.
func (m *Machine) PointerUp(p geometry.Point2D) error {
	m.PointerMove(p)
	drag := m.drag
	m.drag = dragNone

	switch drag {
	case dragMove:
		// A body grab that never moved is a plain click, which toggles the
		// selection off.
		if m.workBox == m.origBox {
			m.selectedID = ""
			return nil
		}
		return m.commitGeometry()

	case dragResize:
		return m.commitGeometry()

	case dragDraw:
		preview := m.preview
		m.preview = geometry.Rect{}
		if preview.Width < annotation.MinBoxSize || preview.Height < annotation.MinBoxSize {
			return nil
		}
		created, err := m.engine.Create(m.actor, annotation.Candidate{
			BBox:       annotation.BoxFromRect(preview),
			Class:      m.class,
			Confidence: 1.0,
			Source:     annotation.SourceHuman,
		})
		if err != nil {
			if errors.Is(err, annotation.ErrInvalidGeometry) {
				return nil
			}
			return err
		}
		log.Printf("drew box #%d (%s)", created.BoxNumber, created.ClassName)
		return nil
	}
	return nil
}

func (m *Machine) commitGeometry() error {
	if m.selectedID == "" || m.workBox == m.origBox {
		return nil
	}
	sel, ok := m.selectedAnnotation()
	if !ok {
		return nil
	}
	next, err := m.engine.Edit(sel.ID, m.actor, m.workBox, annotation.Class{ID: sel.ClassID, Name: sel.ClassName})
	if err != nil {
		if errors.Is(err, annotation.ErrInvalidGeometry) {
			return nil
		}
		return err
	}
	m.selectedID = next.ID
	return nil
}

// DeleteSelected handles the Delete key: removes the selected logical box
// and clears the selection.
func (m *Machine) DeleteSelected() error {
	if m.mode != ModeEdit || m.selectedID == "" {
		return nil
	}
	id := m.selectedID
	if err := m.engine.Delete(id, m.actor); err != nil {
		return err
	}
	m.selectedID = ""
	return nil
}

// Approve moves the selected pending box to approved.
func (m *Machine) Approve() error {
	if m.selectedID == "" {
		return nil
	}
	next, err := m.engine.Approve(m.selectedID, m.actor)
	if err != nil {
		return err
	}
	m.selectedID = next.ID
	return nil
}

// Reject moves the selected pending box to rejected.
func (m *Machine) Reject(reason string) error {
	if m.selectedID == "" {
		return nil
	}
	next, err := m.engine.Reject(m.selectedID, m.actor, reason)
	if err != nil {
		return err
	}
	m.selectedID = next.ID
	return nil
}

// Preview returns the in-progress draw rectangle in image coordinates.
func (m *Machine) Preview() (geometry.Rect, bool) {
	return m.preview, m.drag == dragDraw
}

// DragBox returns the live geometry of the selected box while it is being
// moved or resized, letting the renderer track the gesture before commit.
func (m *Machine) DragBox() (annotation.BoundingBox, bool) {
	return m.workBox, m.drag == dragMove || m.drag == dragResize
}

func (m *Machine) selectedAnnotation() (*annotation.Annotation, bool) {
	return m.store.ByID(m.selectedID)
}

// annotationAt returns the topmost visible annotation containing the image
// point, preferring later boxes since they draw on top.
func (m *Machine) annotationAt(img geometry.Point2D) *annotation.Annotation {
	visible := m.store.Visible()
	for i := len(visible) - 1; i >= 0; i-- {
		if visible[i].BBox.Rect().Contains(img) {
			return visible[i]
		}
	}
	return nil
}

// hitHandle tests the viewport point against the four corner handles.
func (m *Machine) hitHandle(b annotation.BoundingBox, p geometry.Point2D) Handle {
	corners := []struct {
		h Handle
		c geometry.Point2D
	}{
		{HandleNW, geometry.Point2D{X: b.X1, Y: b.Y1}},
		{HandleNE, geometry.Point2D{X: b.X2, Y: b.Y1}},
		{HandleSW, geometry.Point2D{X: b.X1, Y: b.Y2}},
		{HandleSE, geometry.Point2D{X: b.X2, Y: b.Y2}},
	}
	for _, corner := range corners {
		if m.vp.ToViewport(corner.c).Distance(p) <= HandleHitRadius {
			return corner.h
		}
	}
	return HandleNone
}

func (m *Machine) hitBody(b annotation.BoundingBox, p geometry.Point2D) bool {
	return b.Rect().Contains(m.vp.ToImage(p))
}

// oppositeCorner returns the image-space corner diagonally across from the
// grabbed handle; it stays fixed during the resize.
func oppositeCorner(b annotation.BoundingBox, h Handle) geometry.Point2D {
	switch h {
	case HandleNW:
		return geometry.Point2D{X: b.X2, Y: b.Y2}
	case HandleNE:
		return geometry.Point2D{X: b.X1, Y: b.Y2}
	case HandleSW:
		return geometry.Point2D{X: b.X2, Y: b.Y1}
	default:
		return geometry.Point2D{X: b.X1, Y: b.Y1}
	}
}
