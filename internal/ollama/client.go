// Package ollama is a minimal client for the model runner's local HTTP API.
package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to an Ollama server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient returns a client for the API at http://host:port.
func NewClient(host string, port int) *Client {
	return &Client{
		baseURL:    fmt.Sprintf("http://%s:%d", host, port),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// get performs a GET request and decodes the JSON body into result.
func (c *Client) get(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("GET %s: HTTP %d: %s", path, resp.StatusCode, body)
	}
	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("GET %s: decoding: %w", path, err)
	}
	return nil
}

// Version returns the server version from /api/version.
func (c *Client) Version(ctx context.Context) (string, error) {
	var v struct {
		Version string `json:"version"`
	}
	if err := c.get(ctx, "/api/version", &v); err != nil {
		return "", err
	}
	if v.Version == "" {
		return "", fmt.Errorf("GET /api/version: empty version")
	}
	return v.Version, nil
}

// Model is one locally available model.
type Model struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// Models lists locally pulled models from /api/tags.
func (c *Client) Models(ctx context.Context) ([]Model, error) {
	var tags struct {
		Models []Model `json:"models"`
	}
	if err := c.get(ctx, "/api/tags", &tags); err != nil {
		return nil, err
	}
	return tags.Models, nil
}
