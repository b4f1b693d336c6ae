package interaction

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thermal-tracer/internal/annotation"
	"thermal-tracer/internal/app"
	"thermal-tracer/pkg/geometry"
)

type seqSource struct{ n int }

func (s *seqSource) Next() int {
	s.n++
	return s.n
}

func newTestMachine(t *testing.T) (*Machine, *annotation.Store) {
	t.Helper()
	store := annotation.NewStore()
	engine := annotation.NewEngine("insp-1", store, &seqSource{}, nil)
	return NewMachine(engine, store, "inspector-1"), store
}

func pt(x, y float64) geometry.Point2D { return geometry.Point2D{X: x, Y: y} }

func drawBox(t *testing.T, m *Machine, from, to geometry.Point2D) {
	t.Helper()
	m.SetMode(ModeDraw)
	m.PointerDown(from)
	m.PointerMove(to)
	require.NoError(t, m.PointerUp(to))
}

func TestViewModeDragPans(t *testing.T) {
	m, _ := newTestMachine(t)

	m.PointerDown(pt(100, 100))
	m.PointerMove(pt(130, 80))
	require.NoError(t, m.PointerUp(pt(130, 80)))

	assert.Equal(t, 30.0, m.Viewport().Offset.X)
	assert.Equal(t, -20.0, m.Viewport().Offset.Y)
}

func TestWheelZoomKeepsCursorPointFixed(t *testing.T) {
	m, _ := newTestMachine(t)
	anchor := pt(400, 300)
	before := m.Viewport().ToImage(anchor)

	m.Wheel(anchor, 3)
	after := m.Viewport().ToImage(anchor)

	assert.InDelta(t, before.X, after.X, 1e-9)
	assert.InDelta(t, before.Y, after.Y, 1e-9)
	assert.Greater(t, m.Viewport().Scale, 1.0)
}

func TestWheelZoomOut(t *testing.T) {
	m, _ := newTestMachine(t)
	m.Wheel(pt(0, 0), -2)
	assert.Less(t, m.Viewport().Scale, 1.0)
}

func TestViewModeNeverMutatesAnnotations(t *testing.T) {
	m, store := newTestMachine(t)
	drawBox(t, m, pt(100, 100), pt(200, 150))
	m.SetMode(ModeView)

	m.PointerDown(pt(120, 120))
	m.PointerMove(pt(180, 180))
	require.NoError(t, m.PointerUp(pt(180, 180)))

	require.Len(t, store.Visible(), 1)
	assert.Equal(t, 1, store.Visible()[0].Version)
}

func TestDrawCreatesPendingAnnotation(t *testing.T) {
	m, store := newTestMachine(t)
	m.SetClass(annotation.ClassFaulty)
	drawBox(t, m, pt(100, 100), pt(200, 150))

	visible := store.Visible()
	require.Len(t, visible, 1)
	a := visible[0]
	assert.Equal(t, annotation.BoundingBox{X1: 100, Y1: 100, X2: 200, Y2: 150}, a.BBox)
	assert.Equal(t, 1, a.Version)
	assert.Equal(t, annotation.StatusPending, a.Status)
	assert.Equal(t, annotation.ActionCreated, a.ActionType)
	assert.Equal(t, annotation.SourceHuman, a.Source)
	assert.Equal(t, "Faulty", a.ClassName)
}

func TestDrawNormalizesDragUpLeft(t *testing.T) {
	m, store := newTestMachine(t)
	drawBox(t, m, pt(200, 150), pt(100, 100))

	a := store.Visible()[0]
	assert.Equal(t, annotation.BoundingBox{X1: 100, Y1: 100, X2: 200, Y2: 150}, a.BBox)
}

func TestDrawUnderZoomUsesImageCoords(t *testing.T) {
	m, store := newTestMachine(t)
	m.ZoomIn(pt(0, 0)) // scale 1.2 anchored at origin
	drawBox(t, m, pt(120, 120), pt(240, 240))

	a := store.Visible()[0]
	assert.InDelta(t, 100, a.BBox.X1, 1e-9)
	assert.InDelta(t, 200, a.BBox.X2, 1e-9)
}

func TestTinyDrawIsDiscarded(t *testing.T) {
	m, store := newTestMachine(t)
	drawBox(t, m, pt(100, 100), pt(105, 200)) // 5px wide
	drawBox(t, m, pt(100, 100), pt(200, 104)) // 4px tall
	drawBox(t, m, pt(100, 100), pt(100, 100)) // click

	assert.Equal(t, 0, store.Len())
}

func TestEditClickSelectsAndTogglesOff(t *testing.T) {
	m, store := newTestMachine(t)
	drawBox(t, m, pt(100, 100), pt(200, 150))
	id := store.Visible()[0].ID

	m.SetMode(ModeEdit)
	m.PointerDown(pt(150, 120))
	require.NoError(t, m.PointerUp(pt(150, 120)))
	assert.Equal(t, id, m.SelectedID())

	// Clicking the selected box again deselects it.
	m.PointerDown(pt(150, 120))
	require.NoError(t, m.PointerUp(pt(150, 120)))
	assert.Equal(t, "", m.SelectedID())

	// Reselect, then a click on empty canvas also deselects.
	m.PointerDown(pt(150, 120))
	require.NoError(t, m.PointerUp(pt(150, 120)))
	require.Equal(t, id, m.SelectedID())
	m.PointerDown(pt(50, 50))
	require.NoError(t, m.PointerUp(pt(50, 50)))
	assert.Equal(t, "", m.SelectedID())
}

func TestLeavingEditClearsSelection(t *testing.T) {
	m, _ := newTestMachine(t)
	drawBox(t, m, pt(100, 100), pt(200, 150))

	m.SetMode(ModeEdit)
	m.PointerDown(pt(150, 120))
	require.NoError(t, m.PointerUp(pt(150, 120)))
	require.NotEmpty(t, m.SelectedID())

	m.SetMode(ModeView)
	assert.Equal(t, "", m.SelectedID())
}

func TestBodyDragMovesBoxAsNewVersion(t *testing.T) {
	m, store := newTestMachine(t)
	drawBox(t, m, pt(100, 100), pt(200, 150))
	first := store.Visible()[0]

	m.SetMode(ModeEdit)
	m.PointerDown(pt(150, 120))
	require.NoError(t, m.PointerUp(pt(150, 120)))

	m.PointerDown(pt(150, 120))
	m.PointerMove(pt(160, 120))
	require.NoError(t, m.PointerUp(pt(160, 120)))

	moved := store.Visible()[0]
	assert.Equal(t, annotation.BoundingBox{X1: 110, Y1: 100, X2: 210, Y2: 150}, moved.BBox)
	assert.Equal(t, 2, moved.Version)
	assert.Equal(t, annotation.ActionEdited, moved.ActionType)
	assert.Equal(t, annotation.StatusPending, moved.Status)
	assert.Equal(t, first.BoxNumber, moved.BoxNumber)
	assert.Equal(t, moved.ID, m.SelectedID())

	// Predecessor untouched.
	prev, ok := store.ByID(first.ID)
	require.True(t, ok)
	assert.Equal(t, annotation.BoundingBox{X1: 100, Y1: 100, X2: 200, Y2: 150}, prev.BBox)
}

func TestCornerResizeAnchorsOppositeCorner(t *testing.T) {
	m, store := newTestMachine(t)
	drawBox(t, m, pt(100, 100), pt(200, 150))

	m.SetMode(ModeEdit)
	m.PointerDown(pt(150, 120))
	require.NoError(t, m.PointerUp(pt(150, 120)))

	// Grab the south-east handle and drag it out.
	m.PointerDown(pt(200, 150))
	m.PointerMove(pt(260, 190))
	require.NoError(t, m.PointerUp(pt(260, 190)))

	resized := store.Visible()[0]
	assert.Equal(t, annotation.BoundingBox{X1: 100, Y1: 100, X2: 260, Y2: 190}, resized.BBox)
	assert.Equal(t, 2, resized.Version)
}

func TestResizeAcrossAnchorNormalizes(t *testing.T) {
	m, store := newTestMachine(t)
	drawBox(t, m, pt(100, 100), pt(200, 150))

	m.SetMode(ModeEdit)
	m.PointerDown(pt(150, 120))
	require.NoError(t, m.PointerUp(pt(150, 120)))

	// Drag the NW handle past the SE anchor.
	m.PointerDown(pt(100, 100))
	m.PointerMove(pt(260, 190))
	require.NoError(t, m.PointerUp(pt(260, 190)))

	resized := store.Visible()[0]
	assert.Equal(t, annotation.BoundingBox{X1: 200, Y1: 150, X2: 260, Y2: 190}, resized.BBox)
}

func TestResizeBelowThresholdIsDiscarded(t *testing.T) {
	m, store := newTestMachine(t)
	drawBox(t, m, pt(100, 100), pt(200, 150))

	m.SetMode(ModeEdit)
	m.PointerDown(pt(150, 120))
	require.NoError(t, m.PointerUp(pt(150, 120)))

	m.PointerDown(pt(200, 150))
	m.PointerMove(pt(104, 104))
	require.NoError(t, m.PointerUp(pt(104, 104)))

	a := store.Visible()[0]
	assert.Equal(t, 1, a.Version)
	assert.Equal(t, annotation.BoundingBox{X1: 100, Y1: 100, X2: 200, Y2: 150}, a.BBox)
}

func TestDeleteKeyRemovesHumanBox(t *testing.T) {
	m, store := newTestMachine(t)
	drawBox(t, m, pt(100, 100), pt(200, 150))

	m.SetMode(ModeEdit)
	m.PointerDown(pt(150, 120))
	require.NoError(t, m.PointerUp(pt(150, 120)))

	require.NoError(t, m.DeleteSelected())
	assert.Empty(t, store.Visible())
	assert.Equal(t, "", m.SelectedID())
}

func TestDeleteKeyRefusesAIBox(t *testing.T) {
	m, store := newTestMachine(t)
	engine := annotation.NewEngine("insp-1", store, &seqSource{n: 10}, nil)
	_, err := engine.Create("detector", annotation.Candidate{
		BBox:       annotation.BoundingBox{X1: 100, Y1: 100, X2: 200, Y2: 150},
		Class:      annotation.ClassFaulty,
		Confidence: 0.8,
		Source:     annotation.SourceAI,
	})
	require.NoError(t, err)

	m.SetMode(ModeEdit)
	m.PointerDown(pt(150, 120))
	require.NoError(t, m.PointerUp(pt(150, 120)))
	require.NotEmpty(t, m.SelectedID())

	err = m.DeleteSelected()
	assert.ErrorIs(t, err, annotation.ErrInvalidTransition)
	assert.Len(t, store.Visible(), 1)
}

func TestApproveRejectThroughMachine(t *testing.T) {
	m, store := newTestMachine(t)
	drawBox(t, m, pt(100, 100), pt(200, 150))
	drawBox(t, m, pt(300, 100), pt(400, 150))

	m.SetMode(ModeEdit)
	m.PointerDown(pt(150, 120))
	require.NoError(t, m.PointerUp(pt(150, 120)))
	require.NoError(t, m.Approve())

	a, ok := store.ByID(m.SelectedID())
	require.True(t, ok)
	assert.Equal(t, annotation.StatusApproved, a.Status)

	// Approving again is an invalid transition surfaced to the caller.
	assert.ErrorIs(t, m.Approve(), annotation.ErrInvalidTransition)

	m.PointerDown(pt(350, 120))
	require.NoError(t, m.PointerUp(pt(350, 120)))
	require.NoError(t, m.Reject("reflection, not a hotspot"))

	b, ok := store.ByID(m.SelectedID())
	require.True(t, ok)
	assert.Equal(t, annotation.StatusRejected, b.Status)
	assert.Equal(t, "reflection, not a hotspot", b.Comments)
}

func TestDrawPreviewVisibleDuringGesture(t *testing.T) {
	m, _ := newTestMachine(t)
	m.SetMode(ModeDraw)

	_, active := m.Preview()
	assert.False(t, active)

	m.PointerDown(pt(100, 100))
	m.PointerMove(pt(180, 160))
	r, active := m.Preview()
	assert.True(t, active)
	assert.Equal(t, geometry.NewRect(100, 100, 80, 60), r)

	require.NoError(t, m.PointerUp(pt(180, 160)))
	_, active = m.Preview()
	assert.False(t, active)
}

func TestDragBoxTracksGesture(t *testing.T) {
	m, _ := newTestMachine(t)
	drawBox(t, m, pt(100, 100), pt(200, 150))

	m.SetMode(ModeEdit)
	m.PointerDown(pt(150, 120))
	require.NoError(t, m.PointerUp(pt(150, 120)))

	m.PointerDown(pt(150, 120))
	m.PointerMove(pt(170, 130))
	box, active := m.DragBox()
	require.True(t, active)
	assert.Equal(t, annotation.BoundingBox{X1: 120, Y1: 110, X2: 220, Y2: 160}, box)
	require.NoError(t, m.PointerUp(pt(170, 130)))

	_, active = m.DragBox()
	assert.False(t, active)
}

func TestModeStrings(t *testing.T) {
	for mode, want := range map[Mode]string{ModeView: "View", ModeEdit: "Edit", ModeDraw: "Draw"} {
		assert.Equal(t, want, fmt.Sprint(mode))
	}
}

func TestMachineCommitsThroughSession(t *testing.T) {
	session := app.NewSession("insp-1")
	m := NewMachine(session, session.Store, "inspector-1")

	changes := 0
	session.On(app.EventAnnotationsChanged, func(interface{}) { changes++ })

	drawBox(t, m, pt(100, 100), pt(200, 150))
	assert.Equal(t, 1, changes)

	m.SetMode(ModeEdit)
	m.PointerDown(pt(150, 120))
	require.NoError(t, m.PointerUp(pt(150, 120)))

	require.NoError(t, m.Approve())
	assert.Equal(t, 2, changes)
	assert.Equal(t, annotation.StatusApproved, session.Store.Visible()[0].Status)
}
