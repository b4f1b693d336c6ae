//go:build !gocv
// +build !gocv

package detect

import (
	"context"
	"fmt"

	"thermal-tracer/internal/annotation"
)

// LocalDetector finds hotspot candidates with classical contour detection.
// It is a fallback oracle for working offline without the model service.
type LocalDetector struct {
	MinAreaRatio   float64
	MinAspectRatio float64
	MaxAspectRatio float64
	HotIntensity   float64
}

// NewLocalDetector returns a stub detector; builds without the gocv tag
// cannot run local detection.
func NewLocalDetector() *LocalDetector {
	return &LocalDetector{
		MinAreaRatio:   0.001,
		MinAspectRatio: 0.1,
		MaxAspectRatio: 10.0,
		HotIntensity:   0.8,
	}
}

// Detect reports that local detection is unavailable in this build.
func (d *LocalDetector) Detect(ctx context.Context, imagePath string, confidenceThreshold float64) (*Result, error) {
	_ = ctx
	_ = imagePath
	_ = confidenceThreshold
	return nil, fmt.Errorf("%w: local detector requires the gocv build tag", annotation.ErrRemoteFailure)
}

// Health reports that local detection is unavailable in this build.
func (d *LocalDetector) Health(ctx context.Context) error {
	_ = ctx
	return fmt.Errorf("%w: local detector requires the gocv build tag", annotation.ErrRemoteFailure)
}
