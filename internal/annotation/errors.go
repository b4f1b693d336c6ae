package annotation

import "errors"

// Sentinel errors for the annotation engine. Callers match with errors.Is;
// returned errors wrap these with context.
var (
	// ErrInvalidGeometry marks a degenerate or sub-threshold bounding box.
	ErrInvalidGeometry = errors.New("invalid geometry")

	// ErrInvalidTransition marks an illegal lifecycle move, such as
	// approving an already-approved version.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrConcurrentModification marks a version conflict: the operation was
	// based on a record that is no longer the latest version, or another
	// mutation for the same annotation is still in flight.
	ErrConcurrentModification = errors.New("concurrent modification")

	// ErrRemoteFailure marks a failed call to an external collaborator
	// (detection service or persistence API). Local state is unchanged.
	ErrRemoteFailure = errors.New("remote failure")

	// ErrCaptureFailure marks a flatten/export that could not produce a
	// raster, e.g. because no base image is loaded.
	ErrCaptureFailure = errors.New("capture failure")

	// ErrNotFound marks a lookup for an unknown annotation id or box number.
	ErrNotFound = errors.New("annotation not found")
)
