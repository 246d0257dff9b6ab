// Try-on vendor HTTP adapter.
//
// Information Hiding:
// - Submit/poll protocol and endpoints
// - Status vocabulary of the vendor
// - Error classification for the retry policy
package tryon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/stylerush/stylerush/internal/async"
)

const submitTimeout = 30 * time.Second

// ClientConfig configures the vendor adapter.
type ClientConfig struct {
	BaseURL      string
	APIKey       string
	PollInterval time.Duration
	PollTimeout  time.Duration
}

// Client talks to the rendering vendor: POST a render request, then
// poll the returned prediction id until the render completes or the
// poll budget runs out.
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client
}

// NewClient creates a vendor adapter.
func NewClient(cfg ClientConfig) *Client {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 90 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: submitTimeout},
	}
}

type submitRequest struct {
	ModelImage   string `json:"model_image"`
	GarmentImage string `json:"garment_image"`
}

type submitResponse struct {
	ID string `json:"id"`
}

type statusResponse struct {
	ID     string   `json:"id"`
	Status string   `json:"status"`
	Output []string `json:"output"`
	Error  string   `json:"error"`
}

func (s statusResponse) done() bool {
	return s.Status == "completed" || s.Status == "failed"
}

// Render submits a try-on job and polls until it completes.
func (c *Client) Render(ctx context.Context, modelImage, garmentImage string) ([]string, error) {
	id, err := c.submit(ctx, modelImage, garmentImage)
	if err != nil {
		return nil, err
	}

	status, err := async.Poll(ctx, async.PollConfig[statusResponse]{
		Fn: func(ctx context.Context) (statusResponse, error) {
			return c.status(ctx, id)
		},
		IsDone:   statusResponse.done,
		Interval: c.cfg.PollInterval,
		Timeout:  c.cfg.PollTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", id, err)
	}
	if status.Status == "failed" {
		return nil, fmt.Errorf("render %s: provider reported failure: %s", id, status.Error)
	}
	return status.Output, nil
}

func (c *Client) submit(ctx context.Context, modelImage, garmentImage string) (string, error) {
	body, err := json.Marshal(submitRequest{ModelImage: modelImage, GarmentImage: garmentImage})
	if err != nil {
		return "", async.Permanent(fmt.Errorf("encoding render request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/run", bytes.NewReader(body))
	if err != nil {
		return "", async.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("submitting render: %w", err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode, "submit"); err != nil {
		return "", err
	}

	var submitted submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&submitted); err != nil {
		return "", fmt.Errorf("decoding submit response: %w", err)
	}
	if submitted.ID == "" {
		return "", fmt.Errorf("submit response missing prediction id")
	}
	return submitted.ID, nil
}

func (c *Client) status(ctx context.Context, id string) (statusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/v1/status/"+id, nil)
	if err != nil {
		return statusResponse{}, async.Permanent(err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return statusResponse{}, fmt.Errorf("checking render status: %w", err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode, "status"); err != nil {
		return statusResponse{}, err
	}

	var status statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return statusResponse{}, fmt.Errorf("decoding status response: %w", err)
	}
	return status, nil
}

// classifyStatus maps HTTP status codes to the retry policy's taxonomy:
// auth and client errors are permanent, rate limits and server errors
// stay retryable.
func classifyStatus(code int, op string) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%s: rate limited", op)
	case code >= 400 && code < 500:
		return async.Permanent(fmt.Errorf("%s: unexpected status %d", op, code))
	default:
		return fmt.Errorf("%s: unexpected status %d", op, code)
	}
}

// Verify Client implements Renderer
var _ Renderer = (*Client)(nil)
