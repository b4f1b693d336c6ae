package inspection

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"thermal-tracer/internal/annotation"
)

// Entry is one immutable record in the inspection history log. Entries are
// appended by the lifecycle engine on every transition and by inspection-
// level events (detection runs, captures); they are never modified.
type Entry struct {
	ID           string    `json:"id"`
	InspectionID string    `json:"inspectionId"`
	BoxNumber    int       `json:"boxNumber,omitempty"` // 0 for inspection-level events
	Action       string    `json:"action"`
	Summary      string    `json:"summary"`
	Actor        string    `json:"actor"`
	Timestamp    time.Time `json:"timestamp"`

	// Snapshot of the annotation version the transition produced, when the
	// entry belongs to one.
	Annotation *annotation.Annotation `json:"annotation,omitempty"`
}

// Inspection-level actions recorded alongside lifecycle transitions.
const (
	EventInspectionOpened = "INSPECTION_OPENED"
	EventDetectionRun     = "AI_DETECTION_RUN"
	EventCaptureSaved     = "CAPTURE_SAVED"
)

// HistoryLog is the append-only audit record for one inspection. It
// implements annotation.AuditSink.
type HistoryLog struct {
	mu           sync.RWMutex
	inspectionID string
	entries      []Entry

	now func() time.Time
}

// NewHistoryLog creates an empty log for the given inspection.
func NewHistoryLog(inspectionID string) *HistoryLog {
	return &HistoryLog{inspectionID: inspectionID, now: time.Now}
}

// RecordTransition appends an entry for a lifecycle transition.
func (l *HistoryLog) RecordTransition(a *annotation.Annotation, summary string) {
	snapshot := *a
	actor := a.ModifiedBy
	if actor == "" {
		actor = a.CreatedBy
	}
	l.append(Entry{
		ID:           uuid.NewString(),
		InspectionID: l.inspectionID,
		BoxNumber:    a.BoxNumber,
		Action:       string(a.ActionType),
		Summary:      summary,
		Actor:        actor,
		Annotation:   &snapshot,
	})
}

// RecordEvent appends an inspection-level entry with no annotation attached.
func (l *HistoryLog) RecordEvent(action, summary, actor string) {
	l.append(Entry{
		ID:           uuid.NewString(),
		InspectionID: l.inspectionID,
		Action:       action,
		Summary:      summary,
		Actor:        actor,
	})
}

func (l *HistoryLog) append(e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.Timestamp = l.now()
	l.entries = append(l.entries, e)
}

// Entries returns all entries in append order.
func (l *HistoryLog) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// ForBox returns the entries for one logical box in append order.
func (l *HistoryLog) ForBox(boxNumber int) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Entry
	for _, e := range l.entries {
		if e.BoxNumber == boxNumber {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of entries.
func (l *HistoryLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
