// Package client talks to a running ledpanel server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fkcurrie/ledpanel-golang/internal/types"
)

// DefaultTimeout bounds each request
const DefaultTimeout = 5 * time.Second

// StatusError is a non-200 reply from the server
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Code, e.Message)
}

// Client sends images and screensaver requests to a panel
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the server at baseURL, e.g. http://ledmatrix.local:8080
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
	}
}

// UploadRGB sends a packed RGB888 frame
func (c *Client) UploadRGB(ctx context.Context, frame []byte) error {
	return c.Upload(ctx, "application/octet-stream", bytes.NewReader(frame))
}

// Upload sends an encoded image for the server to decode
func (c *Client) Upload(ctx context.Context, contentType string, body io.Reader) error {
	_, err := c.do(ctx, http.MethodPost, "/image", contentType, body)
	return err
}

// Screensaver asks the panel to start the screensaver
func (c *Client) Screensaver(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/screensaver", "", nil)
	return err
}

// Status fetches what the panel is showing
func (c *Client) Status(ctx context.Context) (types.DisplayStatus, error) {
	var status types.DisplayStatus
	body, err := c.do(ctx, http.MethodGet, "/status", "", nil)
	if err != nil {
		return status, err
	}
	if err := json.Unmarshal(body, &status); err != nil {
		return status, fmt.Errorf("failed to decode status: %w", err)
	}
	return status, nil
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach panel: %w", err)
	}
	defer resp.Body.Close()

	reply, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read reply: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode, Message: strings.TrimSpace(string(reply))}
	}
	return reply, nil
}
