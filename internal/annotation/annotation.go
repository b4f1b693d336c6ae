// Package annotation provides the bounding-box annotation data model, the
// per-inspection working set, and the review lifecycle state machine.
package annotation

import (
	"fmt"
	"time"

	"thermal-tracer/pkg/geometry"
)

// MinBoxSize is the minimum width and height, in image pixels, for a valid
// bounding box. Smaller draw gestures are treated as accidental clicks.
const MinBoxSize = 10.0

// Source identifies the provenance of an annotation.
type Source string

const (
	SourceAI    Source = "ai"
	SourceHuman Source = "human"
)

// Status is the review state of an annotation version.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// ActionType records which lifecycle transition produced a version.
type ActionType string

const (
	ActionCreated  ActionType = "created"
	ActionEdited   ActionType = "edited"
	ActionApproved ActionType = "approved"
	ActionRejected ActionType = "rejected"
	ActionDeleted  ActionType = "deleted"
)

// BoundingBox is a rectangle in image-pixel space with X1 < X2 and Y1 < Y2.
type BoundingBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// BoxFromCorners builds a normalized BoundingBox from two opposite corners,
// regardless of drag direction.
func BoxFromCorners(a, b geometry.Point2D) BoundingBox {
	r := geometry.RectFromCorners(a, b)
	return BoundingBox{X1: r.X, Y1: r.Y, X2: r.X + r.Width, Y2: r.Y + r.Height}
}

// BoxFromRect converts a geometry.Rect to a BoundingBox.
func BoxFromRect(r geometry.Rect) BoundingBox {
	return BoundingBox{X1: r.X, Y1: r.Y, X2: r.X + r.Width, Y2: r.Y + r.Height}
}

// Width returns the box width.
func (b BoundingBox) Width() float64 { return b.X2 - b.X1 }

// Height returns the box height.
func (b BoundingBox) Height() float64 { return b.Y2 - b.Y1 }

// Rect converts the box to a geometry.Rect.
func (b BoundingBox) Rect() geometry.Rect {
	return geometry.Rect{X: b.X1, Y: b.Y1, Width: b.Width(), Height: b.Height()}
}

// Validate checks the normalization and minimum-size invariants.
func (b BoundingBox) Validate() error {
	if b.X1 >= b.X2 || b.Y1 >= b.Y2 {
		return fmt.Errorf("%w: box (%.1f,%.1f)-(%.1f,%.1f) is not normalized",
			ErrInvalidGeometry, b.X1, b.Y1, b.X2, b.Y2)
	}
	if b.Width() < MinBoxSize || b.Height() < MinBoxSize {
		return fmt.Errorf("%w: box %.1fx%.1f is below the %.0fpx minimum",
			ErrInvalidGeometry, b.Width(), b.Height(), MinBoxSize)
	}
	return nil
}

// Annotation is one immutable version of a bounding-box fault marking.
// Editing never mutates a record; it produces a successor version with the
// same BoxNumber and a PredecessorID reference.
type Annotation struct {
	ID           string      `json:"id"`
	InspectionID string      `json:"inspectionId"`
	BBox         BoundingBox `json:"bbox"`
	ClassID      int         `json:"classId"`
	ClassName    string      `json:"className"`
	Confidence   float64     `json:"confidence"`
	Source       Source      `json:"source"`
	Status       Status      `json:"status"`
	ActionType   ActionType  `json:"actionType"`

	// Version is 1 for the first record of a logical box and increments on
	// every edit. BoxNumber is the stable per-inspection display ordinal of
	// the logical box; it is assigned once and never reused.
	Version       int    `json:"version"`
	BoxNumber     int    `json:"boxNumber"`
	PredecessorID string `json:"predecessorId,omitempty"`

	CreatedBy  string    `json:"createdBy"`
	CreatedAt  time.Time `json:"createdAt"`
	ModifiedBy string    `json:"modifiedBy,omitempty"`
	ModifiedAt time.Time `json:"modifiedAt,omitempty"`
	Comments   string    `json:"comments,omitempty"`
}

// Candidate is the input to a create transition: a validated-on-entry box
// plus classification, before any identity has been assigned.
type Candidate struct {
	BBox       BoundingBox
	Class      Class
	Confidence float64
	Source     Source
	Comments   string
}
