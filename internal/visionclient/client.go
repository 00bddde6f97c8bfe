// Package visionclient calls the generative-vision microservice that
// detects ID cards in camera frames and extracts the printed fields.
package visionclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DetectResult reports whether a frame contains an ID card.
type DetectResult struct {
	IsIDCard   bool    `json:"is_id_card"`
	Confidence float64 `json:"confidence"`
}

// ExtractResult holds the fields read off a card. Every field is
// best-effort: an empty value means the service could not confidently
// determine it, never that it guessed.
type ExtractResult struct {
	IDNumber    string `json:"id_number"`
	StudentName string `json:"student_name"`
	Branch      string `json:"branch"`
	EnrollNo    string `json:"enroll_no"`
	YearOfStudy string `json:"year_of_study"`
}

// Client calls the vision microservice.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Skip    bool
}

// New creates a client. With skip set, calls return canned results so the
// rest of the stack runs without the service.
func New(baseURL string, skip bool) *Client {
	return &Client{
		BaseURL: baseURL,
		Skip:    skip,
		HTTP: &http.Client{
			Timeout: 30 * time.Second, // vision calls can take a while
		},
	}
}

// Detect checks whether the image contains an ID card.
func (c *Client) Detect(ctx context.Context, image []byte) (*DetectResult, error) {
	if c.Skip {
		return &DetectResult{IsIDCard: true, Confidence: 0.95}, nil
	}
	if len(image) == 0 {
		return nil, fmt.Errorf("image required")
	}

	var out DetectResult
	if err := c.post(ctx, "/detect", image, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DetectURL checks an already-stored image by URL, used by the card
// verification worker.
func (c *Client) DetectURL(ctx context.Context, imageURL string) (*DetectResult, error) {
	if c.Skip {
		return &DetectResult{IsIDCard: true, Confidence: 0.95}, nil
	}
	if imageURL == "" {
		return nil, fmt.Errorf("image url required")
	}

	body, _ := json.Marshal(map[string]string{"image_url": imageURL})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/detect", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vision service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("vision service error %s: %s", resp.Status, string(bodyBytes))
	}

	var out DetectResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &out, nil
}

// Extract reads the card fields from the image.
func (c *Client) Extract(ctx context.Context, image []byte) (*ExtractResult, error) {
	if c.Skip {
		return &ExtractResult{
			IDNumber:    "MOCK-0001",
			StudentName: "Mock Student",
			Branch:      "Computer",
			EnrollNo:    "EN-0001",
			YearOfStudy: "FY",
		}, nil
	}
	if len(image) == 0 {
		return nil, fmt.Errorf("image required")
	}

	var out ExtractResult
	if err := c.post(ctx, "/extract", image, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health checks if the vision service is reachable.
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
		return fmt.Errorf("vision service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("vision service unhealthy: %s", resp.Status)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, image []byte, out any) error {
	body, _ := json.Marshal(map[string]string{
		"image": base64.StdEncoding.EncodeToString(image),
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("vision service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("vision service error %s: %s", resp.Status, string(bodyBytes))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
