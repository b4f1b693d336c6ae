package annotation

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

// BoxNumberSource allocates stable per-inspection box numbers. Numbers are
// assigned once at first creation of a logical box and never reused.
type BoxNumberSource interface {
	Next() int
}

// AuditSink receives one immutable entry per lifecycle transition. The sink
// is append-only from the engine's perspective.
type AuditSink interface {
	RecordTransition(a *Annotation, summary string)
}

// Engine is the lifecycle state machine for one inspection's annotations.
//
// Status moves pending -> approved or pending -> rejected; edit restarts the
// chain at pending on a new version. All mutations flow through the engine;
// the UI layer never touches stored records directly.
type Engine struct {
	inspectionID string
	store        *Store
	numbers      BoxNumberSource
	audit        AuditSink // optional

	now   func() time.Time
	newID func() string
}

// NewEngine creates a lifecycle engine over the given store.
func NewEngine(inspectionID string, store *Store, numbers BoxNumberSource, audit AuditSink) *Engine {
	return &Engine{
		inspectionID: inspectionID,
		store:        store,
		numbers:      numbers,
		audit:        audit,
		now:          time.Now,
		newID:        func() string { return uuid.NewString() },
	}
}

// InspectionID returns the inspection this engine operates on.
func (e *Engine) InspectionID() string { return e.inspectionID }

// Store returns the engine's working set.
func (e *Engine) Store() *Store { return e.store }

// Create produces version 1 of a new logical box with status pending.
func (e *Engine) Create(actor string, c Candidate) (*Annotation, error) {
	if err := c.BBox.Validate(); err != nil {
		return nil, err
	}

	a := &Annotation{
		ID:           e.newID(),
		InspectionID: e.inspectionID,
		BBox:         c.BBox,
		ClassID:      c.Class.ID,
		ClassName:    c.Class.Name,
		Confidence:   c.Confidence,
		Source:       c.Source,
		Status:       StatusPending,
		ActionType:   ActionCreated,
		Version:      1,
		BoxNumber:    e.numbers.Next(),
		CreatedBy:    actor,
		CreatedAt:    e.now(),
		Comments:     c.Comments,
	}
	e.store.Upsert(a)
	e.record(a, fmt.Sprintf("Box #%d created (%s, %s)", a.BoxNumber, a.ClassName, a.Source))
	return a, nil
}

// CreateBatch ingests a detection run: one annotation per candidate, each
// independently versioned from the start. Validation happens up front so a
// bad candidate leaves the store untouched.
func (e *Engine) CreateBatch(actor string, cs []Candidate) ([]*Annotation, error) {
	for i, c := range cs {
		if err := c.BBox.Validate(); err != nil {
			return nil, fmt.Errorf("candidate %d: %w", i, err)
		}
	}

	out := make([]*Annotation, 0, len(cs))
	for _, c := range cs {
		a, err := e.Create(actor, c)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	log.Printf("Ingested %d detections for inspection %s", len(out), e.inspectionID)
	return out, nil
}

// Edit creates a successor version with the given geometry and class,
// resetting status to pending. Valid from any status: editing an approved or
// rejected box reopens it for review. The id must be the latest version of
// its logical box.
func (e *Engine) Edit(id, actor string, bbox BoundingBox, class Class) (*Annotation, error) {
	prev, err := e.latestByID(id)
	if err != nil {
		return nil, err
	}
	if err := bbox.Validate(); err != nil {
		return nil, err
	}

	next := &Annotation{
		ID:            e.newID(),
		InspectionID:  prev.InspectionID,
		BBox:          bbox,
		ClassID:       class.ID,
		ClassName:     class.Name,
		Confidence:    prev.Confidence,
		Source:        prev.Source,
		Status:        StatusPending,
		ActionType:    ActionEdited,
		Version:       prev.Version + 1,
		BoxNumber:     prev.BoxNumber,
		PredecessorID: prev.ID,
		CreatedBy:     prev.CreatedBy,
		CreatedAt:     prev.CreatedAt,
		ModifiedBy:    actor,
		ModifiedAt:    e.now(),
		Comments:      prev.Comments,
	}
	e.store.Upsert(next)
	e.record(next, fmt.Sprintf("Box #%d edited (v%d)", next.BoxNumber, next.Version))
	return next, nil
}

// Approve marks a pending version approved. Geometry is untouched.
func (e *Engine) Approve(id, actor string) (*Annotation, error) {
	return e.review(id, actor, StatusApproved, ActionApproved, "")
}

// Reject marks a pending version rejected, keeping the record for audit.
// The reason is stored in the comments field.
func (e *Engine) Reject(id, actor, reason string) (*Annotation, error) {
	if reason == "" {
		reason = "User rejected"
	}
	return e.review(id, actor, StatusRejected, ActionRejected, reason)
}

func (e *Engine) review(id, actor string, status Status, action ActionType, reason string) (*Annotation, error) {
	prev, err := e.latestByID(id)
	if err != nil {
		return nil, err
	}
	if prev.Status != StatusPending {
		return nil, fmt.Errorf("%w: cannot %s a %s annotation", ErrInvalidTransition, action, prev.Status)
	}

	// Review transitions keep the version number: they change status, not
	// geometry. The record still appends to the chain so the audit trail
	// shows the pending and reviewed states side by side.
	next := *prev
	next.ID = e.newID()
	next.PredecessorID = prev.ID
	next.Status = status
	next.ActionType = action
	next.ModifiedBy = actor
	next.ModifiedAt = e.now()
	if reason != "" {
		next.Comments = reason
	}
	e.store.Upsert(&next)
	e.record(&next, fmt.Sprintf("Box #%d %s", next.BoxNumber, status))
	return &next, nil
}

// Delete removes the logical box from the visible set permanently. Unlike
// reject this is irreversible, and it is restricted to human-sourced boxes:
// AI-sourced boxes must be rejected instead so the model feedback signal
// survives.
func (e *Engine) Delete(id, actor string) error {
	prev, err := e.latestByID(id)
	if err != nil {
		return err
	}
	if prev.Source == SourceAI {
		return fmt.Errorf("%w: AI-sourced box #%d must be rejected, not deleted", ErrInvalidTransition, prev.BoxNumber)
	}

	e.store.MarkDeleted(prev.BoxNumber)

	tombstone := *prev
	tombstone.ActionType = ActionDeleted
	tombstone.ModifiedBy = actor
	tombstone.ModifiedAt = e.now()
	e.record(&tombstone, fmt.Sprintf("Box #%d deleted", prev.BoxNumber))
	return nil
}

// latestByID resolves an id and checks it is the latest version of its
// logical box; a stale id is a version conflict, not a state error.
func (e *Engine) latestByID(id string) (*Annotation, error) {
	a, ok := e.store.ByID(id)
	if !ok {
		return nil, fmt.Errorf("%w: id %s", ErrNotFound, id)
	}
	if e.store.IsDeleted(a.BoxNumber) {
		return nil, fmt.Errorf("%w: box #%d is deleted", ErrNotFound, a.BoxNumber)
	}
	latest, ok := e.store.Latest(a.BoxNumber)
	if !ok || latest.ID != a.ID {
		return nil, fmt.Errorf("%w: id %s is not the latest version of box #%d",
			ErrConcurrentModification, id, a.BoxNumber)
	}
	return a, nil
}

func (e *Engine) record(a *Annotation, summary string) {
	if e.audit != nil {
		e.audit.RecordTransition(a, summary)
	}
}
