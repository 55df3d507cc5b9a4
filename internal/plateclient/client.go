package plateclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ReadResult is the recognition service's verdict on a snapshot.
type ReadResult struct {
	Plate          string  `json:"plate"`
	Confidence     float64 `json:"confidence"`
	PlatesDetected int     `json:"plates_detected"`
}

// Client calls the plate-recognition microservice.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Skip    bool
}

// New creates a client. With skip set, every call succeeds with a mock
// result so the pipeline runs without the recognition service.
func New(baseURL string, skip bool) *Client {
	return &Client{
		BaseURL: baseURL,
		Skip:    skip,
		HTTP: &http.Client{
			Timeout: 30 * time.Second, // OCR on a full frame can take a while
		},
	}
}

// Verify asks the service to re-read the snapshot and confirm the reported
// plate, returning the read and its confidence.
func (c *Client) Verify(ctx context.Context, snapshotURL, plate string) (*ReadResult, error) {
	if c.Skip {
		return &ReadResult{Plate: plate, Confidence: 0.95, PlatesDetected: 1}, nil
	}
	if snapshotURL == "" {
		return nil, fmt.Errorf("snapshot url required")
	}

	body, _ := json.Marshal(map[string]string{
		"image_url": snapshotURL,
		"plate":     plate,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/verify", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("plate service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("plate service error %s: %s", resp.Status, string(bodyBytes))
	}

	var out ReadResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if out.PlatesDetected == 0 {
		return nil, fmt.Errorf("no plate detected in image")
	}
	return &out, nil
}

// Health checks if the plate service is available.
func (c *Client) Health(ctx context.Context) error {
	if c.Skip {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("plate service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("plate service unhealthy: %s", resp.Status)
	}
	return nil
}
