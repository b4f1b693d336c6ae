//go:build gocv
// +build gocv

package detect

import (
	"context"
	"fmt"
	"image"
	"time"

	"gocv.io/x/gocv"

	"thermal-tracer/internal/annotation"
)

// LocalDetector finds hotspot candidates with classical contour detection.
// It is a fallback oracle for working offline without the model service.
type LocalDetector struct {
	MinAreaRatio   float64 // contour area relative to image area
	MinAspectRatio float64
	MaxAspectRatio float64
	HotIntensity   float64 // mean gray level marking a region as Faulty
}

// NewLocalDetector returns a detector tuned for typical 640x480 thermal
// captures.
func NewLocalDetector() *LocalDetector {
	return &LocalDetector{
		MinAreaRatio:   0.001,
		MinAspectRatio: 0.1,
		MaxAspectRatio: 10.0,
		HotIntensity:   0.8,
	}
}

// Detect reads the image from disk and returns bounding boxes around bright,
// sharply bounded regions.
func (d *LocalDetector) Detect(ctx context.Context, imagePath string, confidenceThreshold float64) (*Result, error) {
	_ = ctx
	if confidenceThreshold <= 0 || confidenceThreshold > 1 {
		confidenceThreshold = DefaultConfidenceThreshold
	}
	start := time.Now()

	mat := gocv.IMRead(imagePath, gocv.IMReadColor)
	if mat.Empty() {
		return nil, fmt.Errorf("%w: could not read image %s", annotation.ErrRemoteFailure, imagePath)
	}
	defer mat.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray)

	blur := gocv.NewMat()
	defer blur.Close()
	gocv.GaussianBlur(gray, &blur, image.Pt(5, 5), 0, 0, gocv.BorderDefault)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(blur, &edges, 50, 150)

	contours := gocv.FindContours(edges, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	imgArea := float64(mat.Cols() * mat.Rows())
	minArea := imgArea * d.MinAreaRatio

	result := &Result{
		ImageWidth:  mat.Cols(),
		ImageHeight: mat.Rows(),
	}

	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		rect := gocv.BoundingRect(contour)

		area := float64(rect.Dx() * rect.Dy())
		if area < minArea {
			continue
		}
		aspect := float64(rect.Dx()) / float64(rect.Dy())
		if aspect < d.MinAspectRatio || aspect > d.MaxAspectRatio {
			continue
		}

		region := gray.Region(rect)
		confidence := region.Mean().Val1 / 255.0
		region.Close()

		if confidence < confidenceThreshold {
			continue
		}

		class := annotation.ClassPotentialFaulty
		if confidence >= d.HotIntensity {
			class = annotation.ClassFaulty
		}

		result.Detections = append(result.Detections, Detection{
			ID:         len(result.Detections) + 1,
			ClassID:    class.ID,
			ClassName:  class.Name,
			Confidence: confidence,
			BBox: BBox{
				X1: float64(rect.Min.X),
				Y1: float64(rect.Min.Y),
				X2: float64(rect.Max.X),
				Y2: float64(rect.Max.Y),
			},
			Source: string(annotation.SourceAI),
		})
	}

	result.InferenceTimeMS = float64(time.Since(start).Microseconds()) / 1000.0
	return result, nil
}

// Health always succeeds; the local detector has no model to load.
func (d *LocalDetector) Health(ctx context.Context) error {
	_ = ctx
	return nil
}
