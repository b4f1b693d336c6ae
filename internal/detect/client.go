package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"thermal-tracer/internal/annotation"
)

// Client is the HTTP client for the remote detection service.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient points at the detection service, e.g. "http://localhost:5001".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

type detectRequest struct {
	ImagePath           string  `json:"image_path"`
	ConfidenceThreshold float64 `json:"confidence_threshold"`
}

type detectResponse struct {
	Success    bool        `json:"success"`
	Detections []Detection `json:"detections"`
	ImageDims  struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"image_dimensions"`
	InferenceTimeMS float64 `json:"inference_time_ms"`
	Error           string  `json:"error"`
}

// Detect runs the model over the image at imagePath. Failures never touch
// local annotation state; callers apply the result only on success.
func (c *Client) Detect(ctx context.Context, imagePath string, confidenceThreshold float64) (*Result, error) {
	if confidenceThreshold <= 0 || confidenceThreshold > 1 {
		confidenceThreshold = DefaultConfidenceThreshold
	}

	body, err := json.Marshal(detectRequest{
		ImagePath:           imagePath,
		ConfidenceThreshold: confidenceThreshold,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", annotation.ErrRemoteFailure, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/detect", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", annotation.ErrRemoteFailure, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", annotation.ErrRemoteFailure, err)
	}
	defer resp.Body.Close()

	var decoded detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", annotation.ErrRemoteFailure, err)
	}

	if resp.StatusCode != http.StatusOK || !decoded.Success {
		msg := decoded.Error
		if msg == "" {
			msg = fmt.Sprintf("detection service returned status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: %s", annotation.ErrRemoteFailure, msg)
	}

	return &Result{
		Detections:      decoded.Detections,
		ImageWidth:      decoded.ImageDims.Width,
		ImageHeight:     decoded.ImageDims.Height,
		InferenceTimeMS: decoded.InferenceTimeMS,
	}, nil
}

// Health checks that the detection service is up and its model is loaded.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/health", nil)
	if err != nil {
		return fmt.Errorf("%w: %v", annotation.ErrRemoteFailure, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", annotation.ErrRemoteFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health check returned status %d", annotation.ErrRemoteFailure, resp.StatusCode)
	}
	return nil
}
