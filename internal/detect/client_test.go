package detect

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thermal-tracer/internal/annotation"
)

func detectService(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL)
}

func TestDetectParsesResponse(t *testing.T) {
	client := detectService(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/detect", r.URL.Path)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "/data/thermal/t-204.jpg", req["image_path"])
		assert.Equal(t, 0.4, req["confidence_threshold"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"success": true,
			"detections": [
				{"id": 1, "class_id": 1, "class_name": "faulty_loose_joint",
				 "confidence": 0.87, "bbox": {"x1": 120, "y1": 80, "x2": 260, "y2": 190},
				 "source": "ai"}
			],
			"image_dimensions": {"width": 640, "height": 480},
			"inference_time_ms": 52.3
		}`))
	})

	result, err := client.Detect(context.Background(), "/data/thermal/t-204.jpg", 0.4)
	require.NoError(t, err)

	assert.Equal(t, 640, result.ImageWidth)
	assert.Equal(t, 480, result.ImageHeight)
	assert.InDelta(t, 52.3, result.InferenceTimeMS, 1e-9)

	require.Len(t, result.Detections, 1)
	d := result.Detections[0]
	assert.Equal(t, 1, d.ClassID)
	assert.Equal(t, "faulty_loose_joint", d.ClassName)
	assert.InDelta(t, 0.87, d.Confidence, 1e-9)
	assert.Equal(t, BBox{X1: 120, Y1: 80, X2: 260, Y2: 190}, d.BBox)
}

func TestDetectDefaultsThreshold(t *testing.T) {
	client := detectService(t, func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, DefaultConfidenceThreshold, req["confidence_threshold"])
		w.Write([]byte(`{"success": true, "detections": []}`))
	})

	_, err := client.Detect(context.Background(), "img.jpg", 0)
	require.NoError(t, err)
}

func TestDetectEmptyListIsSuccess(t *testing.T) {
	client := detectService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": true, "detections": [], "image_dimensions": {"width": 640, "height": 480}}`))
	})

	result, err := client.Detect(context.Background(), "img.jpg", 0.25)
	require.NoError(t, err)
	assert.Empty(t, result.Detections)
	assert.Empty(t, result.Candidates())
}

func TestDetectServiceError(t *testing.T) {
	client := detectService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"success": false, "error": "model not loaded"}`))
	})

	_, err := client.Detect(context.Background(), "img.jpg", 0.25)
	require.Error(t, err)
	assert.ErrorIs(t, err, annotation.ErrRemoteFailure)
	assert.Contains(t, err.Error(), "model not loaded")
}

func TestDetectUnreachableService(t *testing.T) {
	client := NewClient("http://127.0.0.1:1")
	_, err := client.Detect(context.Background(), "img.jpg", 0.25)
	assert.ErrorIs(t, err, annotation.ErrRemoteFailure)
}

func TestHealth(t *testing.T) {
	client := detectService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/health", r.URL.Path)
		w.Write([]byte(`{"status": "healthy", "model_loaded": true}`))
	})
	assert.NoError(t, client.Health(context.Background()))
}

func TestHealthDown(t *testing.T) {
	client := detectService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	assert.ErrorIs(t, client.Health(context.Background()), annotation.ErrRemoteFailure)
}

func TestResultCandidates(t *testing.T) {
	result := &Result{Detections: []Detection{
		{ClassID: 0, ClassName: "Faulty", Confidence: 0.9, BBox: BBox{X1: 1, Y1: 2, X2: 30, Y2: 40}},
		{ClassID: 3, Confidence: 0.5, BBox: BBox{X1: 5, Y1: 6, X2: 70, Y2: 80}},
	}}

	cands := result.Candidates()
	require.Len(t, cands, 2)
	assert.Equal(t, annotation.SourceAI, cands[0].Source)
	assert.Equal(t, "Faulty", cands[0].Class.Name)
	// Missing class name falls back to the local taxonomy.
	assert.Equal(t, "potential_faulty", cands[1].Class.Name)
	assert.Equal(t, annotation.BoundingBox{X1: 5, Y1: 6, X2: 70, Y2: 80}, cands[1].BBox)
}
