// Package app holds the state of one open inspection and coordinates the
// engine, the detection oracle, and the capture pipeline.
package app

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"sync"

	"thermal-tracer/internal/annotation"
	"thermal-tracer/internal/detect"
	thermimage "thermal-tracer/internal/image"
	"thermal-tracer/internal/inspection"
	"thermal-tracer/internal/render"
)

// EventType identifies session events the UI subscribes to.
type EventType int

const (
	EventImageLoaded EventType = iota
	EventAnnotationsChanged
	EventDetectionComplete
	EventCaptureSaved
)

// EventListener receives event payloads.
type EventListener func(data interface{})

// Session is the working state for one inspection. All mutations run
// synchronously on the UI event loop; the mutex only guards listener
// registration and reads from completion callbacks.
type Session struct {
	mu sync.RWMutex

	InspectionID string
	Frame        *thermimage.Frame

	Store   *annotation.Store
	Numbers *inspection.Sequence
	History *inspection.HistoryLog
	Engine  *annotation.Engine

	// generation invalidates in-flight remote calls: results that complete
	// under an older generation are discarded, not applied.
	generation uint64

	// inflight tracks annotation ids with an outstanding remote mutation.
	// A second mutation for the same id is rejected rather than interleaved.
	inflight map[string]struct{}

	listeners map[EventType][]EventListener
}

// NewSession opens a session for the given inspection.
func NewSession(inspectionID string) *Session {
	store := annotation.NewStore()
	numbers := inspection.NewSequence()
	history := inspection.NewHistoryLog(inspectionID)

	s := &Session{
		InspectionID: inspectionID,
		Store:        store,
		Numbers:      numbers,
		History:      history,
		Engine:       annotation.NewEngine(inspectionID, store, numbers, history),
		inflight:     make(map[string]struct{}),
		listeners:    make(map[EventType][]EventListener),
	}
	history.RecordEvent(inspection.EventInspectionOpened, fmt.Sprintf("Inspection %s opened", inspectionID), "")
	return s
}

// On registers a listener for the specified event type.
func (s *Session) On(event EventType, listener EventListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[event] = append(s.listeners[event], listener)
}

// Emit triggers all listeners for the specified event type.
func (s *Session) Emit(event EventType, data interface{}) {
	s.mu.RLock()
	listeners := s.listeners[event]
	s.mu.RUnlock()

	for _, listener := range listeners {
		listener(data)
	}
}

// LoadImage loads the thermal frame under review.
func (s *Session) LoadImage(path string) error {
	frame, err := thermimage.Load(path)
	if err != nil {
		return err
	}
	s.Frame = frame
	s.Emit(EventImageLoaded, frame)
	return nil
}

// Invalidate discards the results of every in-flight remote call, used when
// the inspection view is navigated away from or reloaded.
func (s *Session) Invalidate() {
	s.mu.Lock()
	s.generation++
	s.inflight = make(map[string]struct{})
	s.mu.Unlock()
}

func (s *Session) currentGeneration() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// beginMutation claims the annotation id for a single outstanding mutation.
func (s *Session) beginMutation(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[id]; busy {
		return fmt.Errorf("%w: a request for %s is already in flight", annotation.ErrConcurrentModification, id)
	}
	s.inflight[id] = struct{}{}
	return nil
}

func (s *Session) endMutation(id string) {
	s.mu.Lock()
	delete(s.inflight, id)
	s.mu.Unlock()
}

// Approve transitions the annotation and notifies listeners.
func (s *Session) Approve(id, actor string) (*annotation.Annotation, error) {
	if err := s.beginMutation(id); err != nil {
		return nil, err
	}
	defer s.endMutation(id)

	next, err := s.Engine.Approve(id, actor)
	if err != nil {
		return nil, err
	}
	s.Emit(EventAnnotationsChanged, next)
	return next, nil
}

// Reject transitions the annotation and notifies listeners.
func (s *Session) Reject(id, actor, reason string) (*annotation.Annotation, error) {
	if err := s.beginMutation(id); err != nil {
		return nil, err
	}
	defer s.endMutation(id)

	next, err := s.Engine.Reject(id, actor, reason)
	if err != nil {
		return nil, err
	}
	s.Emit(EventAnnotationsChanged, next)
	return next, nil
}

// Edit produces a successor version with new geometry or class.
func (s *Session) Edit(id, actor string, bbox annotation.BoundingBox, class annotation.Class) (*annotation.Annotation, error) {
	if err := s.beginMutation(id); err != nil {
		return nil, err
	}
	defer s.endMutation(id)

	next, err := s.Engine.Edit(id, actor, bbox, class)
	if err != nil {
		return nil, err
	}
	s.Emit(EventAnnotationsChanged, next)
	return next, nil
}

// Delete removes the logical box and notifies listeners.
func (s *Session) Delete(id, actor string) error {
	if err := s.beginMutation(id); err != nil {
		return err
	}
	defer s.endMutation(id)

	if err := s.Engine.Delete(id, actor); err != nil {
		return err
	}
	s.Emit(EventAnnotationsChanged, nil)
	return nil
}

// Create adds a human-drawn annotation and notifies listeners.
func (s *Session) Create(actor string, c annotation.Candidate) (*annotation.Annotation, error) {
	created, err := s.Engine.Create(actor, c)
	if err != nil {
		return nil, err
	}
	s.Emit(EventAnnotationsChanged, created)
	return created, nil
}

// RunDetection asks the oracle for candidate boxes and ingests them as a
// batch. A failed call leaves local state untouched. A result arriving
// after Invalidate is discarded.
func (s *Session) RunDetection(ctx context.Context, oracle detect.Oracle, confidenceThreshold float64, actor string) ([]*annotation.Annotation, error) {
	if s.Frame == nil {
		return nil, fmt.Errorf("%w: no image loaded", annotation.ErrRemoteFailure)
	}
	gen := s.currentGeneration()

	result, err := oracle.Detect(ctx, s.Frame.Path, confidenceThreshold)
	if err != nil {
		return nil, err
	}

	if s.currentGeneration() != gen {
		log.Printf("discarding detection result for %s: session invalidated", s.InspectionID)
		return nil, nil
	}

	created, err := s.Engine.CreateBatch(actor, result.Candidates())
	if err != nil {
		return nil, err
	}

	s.History.RecordEvent(inspection.EventDetectionRun,
		fmt.Sprintf("Detection run: %d boxes in %.1f ms", len(created), result.InferenceTimeMS), actor)
	s.Emit(EventDetectionComplete, created)
	s.Emit(EventAnnotationsChanged, nil)
	return created, nil
}

// FlattenCapture composes the frame and all visible annotations into an
// encoded PNG for persistence as a stored image resource.
func (s *Session) FlattenCapture(actor string) ([]byte, error) {
	flat, err := render.Flatten(s.Frame, s.Store.Visible())
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := render.EncodePNG(&buf, flat); err != nil {
		return nil, err
	}

	s.History.RecordEvent(inspection.EventCaptureSaved,
		fmt.Sprintf("Annotated capture saved (%d bytes)", buf.Len()), actor)
	s.Emit(EventCaptureSaved, buf.Len())
	return buf.Bytes(), nil
}
