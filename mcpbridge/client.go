package mcpbridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hazyhaar/canvasd/canvas"
	"github.com/hazyhaar/canvasd/export"
)

// DefaultBaseURL is the control plane's loopback address.
const DefaultBaseURL = "http://127.0.0.1:31337"

// NotFoundError reports an element id unknown to the control plane.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Element with ID '%s' not found", e.ID)
}

// Client is a thin HTTP client for the canvasd control plane.
type Client struct {
	base string
	http *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// NewClient creates a control-plane client. An empty base uses
// DefaultBaseURL.
func NewClient(base string, opts ...ClientOption) *Client {
	if base == "" {
		base = DefaultBaseURL
	}
	c := &Client{
		base: base,
		http: &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, []byte, error) {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, nil, fmt.Errorf("mcpbridge: marshal request: %w", err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return nil, nil, fmt.Errorf("mcpbridge: new request: %w", err)
	}
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("mcpbridge: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("mcpbridge: read response: %w", err)
	}
	return resp, raw, nil
}

// Health calls GET /health and returns the response body.
func (c *Client) Health(ctx context.Context) (string, error) {
	resp, raw, err := c.do(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("mcpbridge: health: HTTP %d", resp.StatusCode)
	}
	return string(raw), nil
}

// GetCanvas calls GET /canvas and unwraps the document.
func (c *Client) GetCanvas(ctx context.Context) (canvas.Document, error) {
	resp, raw, err := c.do(ctx, http.MethodGet, "/canvas", nil)
	if err != nil {
		return canvas.Document{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return canvas.Document{}, fmt.Errorf("mcpbridge: get canvas: HTTP %d", resp.StatusCode)
	}
	var wrapper struct {
		Canvas canvas.Document `json:"canvas"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return canvas.Document{}, fmt.Errorf("mcpbridge: decode canvas: %w", err)
	}
	return wrapper.Canvas, nil
}

// UpdateCanvas calls PUT /canvas with p.
func (c *Client) UpdateCanvas(ctx context.Context, p canvas.Payload) error {
	resp, _, err := c.do(ctx, http.MethodPut, "/canvas", p)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mcpbridge: update canvas: HTTP %d", resp.StatusCode)
	}
	return nil
}

// ClearCanvas calls POST /canvas/clear.
func (c *Client) ClearCanvas(ctx context.Context) error {
	resp, _, err := c.do(ctx, http.MethodPost, "/canvas/clear", nil)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mcpbridge: clear canvas: HTTP %d", resp.StatusCode)
	}
	return nil
}

// ExportDataURL calls GET /canvas/export?format=toDataURL.
func (c *Client) ExportDataURL(ctx context.Context, width, height int) (export.DataURL, error) {
	path := fmt.Sprintf("/canvas/export?format=toDataURL&width=%d&height=%d", width, height)
	resp, raw, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return export.DataURL{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return export.DataURL{}, fmt.Errorf("mcpbridge: export: HTTP %d", resp.StatusCode)
	}
	var out export.DataURL
	if err := json.Unmarshal(raw, &out); err != nil {
		return export.DataURL{}, fmt.Errorf("mcpbridge: decode export: %w", err)
	}
	return out, nil
}

// RemoveElement calls DELETE /canvas/element/{id} and returns the server's
// success message. A 404 maps to *NotFoundError.
func (c *Client) RemoveElement(ctx context.Context, id string) (string, error) {
	resp, raw, err := c.do(ctx, http.MethodDelete, "/canvas/element/"+id, nil)
	if err != nil {
		return "", err
	}
	return elementOpResult(resp, raw, id, "remove")
}

// UpdateElement calls PUT /canvas/element/{id} and returns the server's
// success message. A 404 maps to *NotFoundError.
func (c *Client) UpdateElement(ctx context.Context, id string, element canvas.Element) (string, error) {
	body := map[string]any{"element": element}
	resp, raw, err := c.do(ctx, http.MethodPut, "/canvas/element/"+id, body)
	if err != nil {
		return "", err
	}
	return elementOpResult(resp, raw, id, "update")
}

func elementOpResult(resp *http.Response, raw []byte, id, op string) (string, error) {
	if resp.StatusCode == http.StatusNotFound {
		return "", &NotFoundError{ID: id}
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("mcpbridge: %s element: HTTP %d", op, resp.StatusCode)
	}
	var result struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("mcpbridge: decode %s result: %w", op, err)
	}
	return result.Message, nil
}
