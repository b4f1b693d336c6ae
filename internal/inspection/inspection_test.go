package inspection

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thermal-tracer/internal/annotation"
)

func TestSequenceIsMonotone(t *testing.T) {
	s := NewSequence()
	assert.Equal(t, 1, s.Next())
	assert.Equal(t, 2, s.Next())
	assert.Equal(t, 3, s.Peek())
}

func TestResumeSequenceContinues(t *testing.T) {
	s := ResumeSequence(7)
	assert.Equal(t, 8, s.Next())
}

func TestHistoryLogRecordsTransitions(t *testing.T) {
	l := NewHistoryLog("insp-1")

	a := &annotation.Annotation{
		ID:         "a1",
		BoxNumber:  3,
		ActionType: annotation.ActionCreated,
		CreatedBy:  "inspector-1",
	}
	l.RecordTransition(a, "Box #3 created")
	l.RecordEvent(EventDetectionRun, "Detection run: 1 box", "inspector-1")

	entries := l.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "created", entries[0].Action)
	assert.Equal(t, "inspector-1", entries[0].Actor)
	assert.Equal(t, 3, entries[0].BoxNumber)
	require.NotNil(t, entries[0].Annotation)
	assert.False(t, entries[0].Timestamp.IsZero())

	assert.Equal(t, EventDetectionRun, entries[1].Action)
	assert.Nil(t, entries[1].Annotation)
}

func TestHistoryLogSnapshotsAnnotation(t *testing.T) {
	l := NewHistoryLog("insp-1")
	a := &annotation.Annotation{ID: "a1", BoxNumber: 1, Status: annotation.StatusPending}
	l.RecordTransition(a, "created")

	// Later caller-side mutation must not leak into the recorded entry.
	a.Status = annotation.StatusApproved
	assert.Equal(t, annotation.StatusPending, l.Entries()[0].Annotation.Status)
}

func TestHistoryLogForBox(t *testing.T) {
	l := NewHistoryLog("insp-1")
	l.RecordTransition(&annotation.Annotation{ID: "a", BoxNumber: 1, ActionType: annotation.ActionCreated}, "one")
	l.RecordTransition(&annotation.Annotation{ID: "b", BoxNumber: 2, ActionType: annotation.ActionCreated}, "two")
	l.RecordTransition(&annotation.Annotation{ID: "c", BoxNumber: 1, ActionType: annotation.ActionApproved}, "three")

	forOne := l.ForBox(1)
	require.Len(t, forOne, 2)
	assert.Equal(t, "one", forOne[0].Summary)
	assert.Equal(t, "three", forOne[1].Summary)
}

// reviewedStore builds a store with one approved AI box, one rejected AI box,
// one edited AI box, and one human-added box.
func reviewedStore(t *testing.T) *annotation.Store {
	t.Helper()
	store := annotation.NewStore()
	e := annotation.NewEngine("insp-1", store, NewSequence(), nil)

	aiBox := func(x float64, conf float64) annotation.Candidate {
		return annotation.Candidate{
			BBox:       annotation.BoundingBox{X1: x, Y1: 0, X2: x + 50, Y2: 50},
			Class:      annotation.ClassFaulty,
			Confidence: conf,
			Source:     annotation.SourceAI,
		}
	}

	approved, err := e.Create("det", aiBox(0, 0.9))
	require.NoError(t, err)
	_, err = e.Approve(approved.ID, "rev")
	require.NoError(t, err)

	rejected, err := e.Create("det", aiBox(100, 0.3))
	require.NoError(t, err)
	_, err = e.Reject(rejected.ID, "rev", "shadow")
	require.NoError(t, err)

	edited, err := e.Create("det", aiBox(200, 0.6))
	require.NoError(t, err)
	_, err = e.Edit(edited.ID, "rev", annotation.BoundingBox{X1: 210, Y1: 0, X2: 260, Y2: 50}, annotation.ClassLooseJoint)
	require.NoError(t, err)

	_, err = e.Create("rev", annotation.Candidate{
		BBox:       annotation.BoundingBox{X1: 300, Y1: 0, X2: 350, Y2: 50},
		Class:      annotation.ClassPotentialFaulty,
		Confidence: 1.0,
		Source:     annotation.SourceHuman,
	})
	require.NoError(t, err)

	return store
}

func TestBuildFeedbackExport(t *testing.T) {
	store := reviewedStore(t)
	export := BuildFeedbackExport("insp-1", store)

	assert.Equal(t, 3, export.Summary.TotalAI)
	assert.Equal(t, 1, export.Summary.TotalHuman)
	assert.Equal(t, 1, export.Summary.Approved)
	assert.Equal(t, 1, export.Summary.Rejected)
	assert.Equal(t, 1, export.Summary.Edited)
	assert.Equal(t, 1, export.Summary.Added)

	assert.InDelta(t, 0.6, export.Summary.ConfidenceMean, 1e-9)
	assert.InDelta(t, 0.3, export.Summary.ConfidenceMin, 1e-9)
	assert.InDelta(t, 0.9, export.Summary.ConfidenceMax, 1e-9)

	require.Len(t, export.Comparisons, 4)
	for _, c := range export.Comparisons {
		if c.Action == "added" {
			assert.Nil(t, c.AI)
		} else {
			assert.NotNil(t, c.AI)
		}
		assert.NotNil(t, c.Final)
	}
}

func TestFeedbackExportCSV(t *testing.T) {
	store := reviewedStore(t)
	export := BuildFeedbackExport("insp-1", store)

	var buf bytes.Buffer
	require.NoError(t, export.WriteCSV(&buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 5) // header + 4 boxes
	assert.True(t, strings.HasPrefix(lines[0], "box_number,action,class_name"))
	assert.Contains(t, buf.String(), "added")
}
