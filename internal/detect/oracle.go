// Package detect talks to the fault detection service and converts its
// responses into annotation candidates.
package detect

import (
	"context"

	"thermal-tracer/internal/annotation"
)

// DefaultConfidenceThreshold is applied when the caller passes a threshold
// outside (0, 1].
const DefaultConfidenceThreshold = 0.25

// Detection is one bounding box returned by the detection service.
type Detection struct {
	ID         int     `json:"id"`
	ClassID    int     `json:"class_id"`
	ClassName  string  `json:"class_name"`
	Confidence float64 `json:"confidence"`
	BBox       BBox    `json:"bbox"`
	Source     string  `json:"source"`
}

// BBox mirrors the service wire format for box corners.
type BBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Result is a completed detection run. An empty Detections list means the
// model found nothing, which is a success.
type Result struct {
	Detections      []Detection
	ImageWidth      int
	ImageHeight     int
	InferenceTimeMS float64
}

// Oracle produces candidate boxes for a thermal image. Implementations are
// the remote model service and the local contour detector.
type Oracle interface {
	Detect(ctx context.Context, imagePath string, confidenceThreshold float64) (*Result, error)
	Health(ctx context.Context) error
}

// Candidates converts the run into lifecycle create candidates. Class names
// from the service win over the local taxonomy when they disagree.
func (r *Result) Candidates() []annotation.Candidate {
	out := make([]annotation.Candidate, 0, len(r.Detections))
	for _, d := range r.Detections {
		class := annotation.Class{ID: d.ClassID, Name: d.ClassName}
		if class.Name == "" {
			if known, ok := annotation.ClassByID(d.ClassID); ok {
				class = known
			}
		}
		out = append(out, annotation.Candidate{
			BBox:       annotation.BoundingBox{X1: d.BBox.X1, Y1: d.BBox.Y1, X2: d.BBox.X2, Y2: d.BBox.Y2},
			Class:      class,
			Confidence: d.Confidence,
			Source:     annotation.SourceAI,
		})
	}
	return out
}
