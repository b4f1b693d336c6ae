package inspection

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"thermal-tracer/internal/annotation"
)

// FeedbackExport packages the reviewed annotation set for model improvement:
// which AI detections were approved, rejected, or corrected, and which boxes
// humans added that the model missed.
type FeedbackExport struct {
	InspectionID string    `json:"inspectionId"`
	GeneratedAt  time.Time `json:"generatedAt"`

	AIAnnotations       []*annotation.Annotation `json:"aiAnnotations"`
	HumanAnnotations    []*annotation.Annotation `json:"humanAnnotations"`
	ApprovedAnnotations []*annotation.Annotation `json:"approvedAnnotations"`
	RejectedAnnotations []*annotation.Annotation `json:"rejectedAnnotations"`

	Comparisons []Comparison    `json:"comparisons"`
	Summary     FeedbackSummary `json:"summary"`
}

// Comparison pairs an AI detection with its final human-reviewed version
// (nil when the box was added by a human with no AI origin).
type Comparison struct {
	BoxNumber int                    `json:"boxNumber"`
	AI        *annotation.Annotation `json:"ai,omitempty"`
	Final     *annotation.Annotation `json:"final,omitempty"`
	Action    string                 `json:"action"`
}

// FeedbackSummary gives per-action counts and confidence statistics over the
// AI detections.
type FeedbackSummary struct {
	TotalAI    int `json:"totalAi"`
	TotalHuman int `json:"totalHuman"`
	Approved   int `json:"approved"`
	Rejected   int `json:"rejected"`
	Edited     int `json:"edited"`
	Added      int `json:"added"`

	ConfidenceMean   float64 `json:"confidenceMean"`
	ConfidenceStdDev float64 `json:"confidenceStdDev"`
	ConfidenceMin    float64 `json:"confidenceMin"`
	ConfidenceMax    float64 `json:"confidenceMax"`
}

// BuildFeedbackExport derives the export from the current working set. The
// working set is read only; the export holds snapshots of stored records.
func BuildFeedbackExport(inspectionID string, store *annotation.Store) *FeedbackExport {
	out := &FeedbackExport{
		InspectionID: inspectionID,
		GeneratedAt:  time.Now(),
	}

	var confidences []float64

	for _, box := range store.Visible() {
		chain := store.HistoryFor(box.BoxNumber)
		if len(chain) == 0 {
			continue
		}
		origin := chain[0]
		final := chain[len(chain)-1]

		switch origin.Source {
		case annotation.SourceAI:
			out.AIAnnotations = append(out.AIAnnotations, origin)
			confidences = append(confidences, origin.Confidence)
		case annotation.SourceHuman:
			out.HumanAnnotations = append(out.HumanAnnotations, final)
			out.Summary.Added++
		}

		switch final.Status {
		case annotation.StatusApproved:
			out.ApprovedAnnotations = append(out.ApprovedAnnotations, final)
			out.Summary.Approved++
		case annotation.StatusRejected:
			out.RejectedAnnotations = append(out.RejectedAnnotations, final)
			out.Summary.Rejected++
		}
		if final.Version > origin.Version {
			out.Summary.Edited++
		}

		cmp := Comparison{BoxNumber: box.BoxNumber, Final: final, Action: string(final.ActionType)}
		if origin.Source == annotation.SourceAI {
			cmp.AI = origin
		} else {
			cmp.Action = "added"
		}
		out.Comparisons = append(out.Comparisons, cmp)
	}

	out.Summary.TotalAI = len(out.AIAnnotations)
	out.Summary.TotalHuman = len(out.HumanAnnotations)

	if len(confidences) > 0 {
		mean, std := stat.MeanStdDev(confidences, nil)
		if math.IsNaN(std) { // single sample
			std = 0
		}
		out.Summary.ConfidenceMean = mean
		out.Summary.ConfidenceStdDev = std
		min, max := confidences[0], confidences[0]
		for _, c := range confidences[1:] {
			if c < min {
				min = c
			}
			if c > max {
				max = c
			}
		}
		out.Summary.ConfidenceMin = min
		out.Summary.ConfidenceMax = max
	}

	return out
}

// WriteCSV writes one row per comparison in a format the training pipeline
// ingests directly.
func (f *FeedbackExport) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	header := []string{
		"box_number", "action", "class_name", "confidence",
		"x1", "y1", "x2", "y2", "source", "status",
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, c := range f.Comparisons {
		a := c.Final
		if a == nil {
			continue
		}
		row := []string{
			fmt.Sprintf("%d", c.BoxNumber),
			c.Action,
			a.ClassName,
			fmt.Sprintf("%.3f", a.Confidence),
			fmt.Sprintf("%.1f", a.BBox.X1),
			fmt.Sprintf("%.1f", a.BBox.Y1),
			fmt.Sprintf("%.1f", a.BBox.X2),
			fmt.Sprintf("%.1f", a.BBox.Y2),
			string(a.Source),
			string(a.Status),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
