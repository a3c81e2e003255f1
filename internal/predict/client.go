// Package predict submits a single still image to the detection service's
// request/response endpoint and decodes the one-shot result list.
package predict

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/verdantlabs/weedwatch/internal/detection"
)

// DefaultTimeout bounds a one-shot submission end to end.
const DefaultTimeout = 30 * time.Second

// RemoteError is a non-2xx response from the service. It is surfaced to the
// user as a detection failure; there is no retry.
type RemoteError struct {
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("detection service returned %d: %s", e.StatusCode, e.Body)
}

// Result is a decoded one-shot detection response.
type Result struct {
	Detections detection.Batch
	Count      int
}

// Client talks to the one-shot /predict endpoint.
type Client struct {
	baseURL string
	labels  detection.LabelTable
	httpc   *http.Client
}

// NewClient creates a Client for the service at baseURL.
func NewClient(baseURL string, labels detection.LabelTable) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		labels:  labels,
		httpc:   &http.Client{Timeout: DefaultTimeout},
	}
}

// Detect uploads imageData as a multipart file attachment and returns the
// decoded detections. filename is advisory metadata for the service.
func (c *Client) Detect(ctx context.Context, imageData []byte, filename string) (*Result, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("write form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalize form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submit image: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RemoteError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	batch, count, err := detection.ParsePredictResponse(data, c.labels)
	if err != nil {
		return nil, err
	}

	return &Result{Detections: batch, Count: count}, nil
}
