package semantic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ClareAI/astra-lead-service/pkg/logger"
	"go.uber.org/zap"
)

// SearchRequest is the request body for the vector index search endpoint.
type SearchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
	Topic string `json:"topic,omitempty"`
}

// SearchHit is one ranked result from the index.
type SearchHit struct {
	PlaybookID string  `json:"playbook_id"`
	Score      float64 `json:"score"`
}

// SearchResponse is the response body from the search endpoint.
type SearchResponse struct {
	Results []SearchHit `json:"results"`
}

// UpsertRequest is the request body to create or replace an index document.
type UpsertRequest struct {
	PlaybookID string    `json:"playbook_id"`
	Topic      string    `json:"topic,omitempty"`
	Vector     []float64 `json:"vector"`
	Text       string    `json:"text"`
}

// Client talks to the external vector-similarity index over HTTP.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewClient creates a semantic index client with custom configuration.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// IsConfigured returns true if the client has an endpoint to talk to.
func (c *Client) IsConfigured() bool {
	return c.baseURL != ""
}

// Search returns up to topK playbook candidates ranked by similarity to the
// query. The optional topic narrows the search to one topic's documents.
func (c *Client) Search(ctx context.Context, query string, topK int, topic string) ([]SearchHit, error) {
	if !c.IsConfigured() {
		return nil, fmt.Errorf("semantic index client not configured")
	}

	payload := SearchRequest{
		Query: query,
		TopK:  topK,
		Topic: topic,
	}

	body, err := c.do(ctx, http.MethodPost, "/api/v1/search", payload)
	if err != nil {
		return nil, err
	}

	var response SearchResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal search response: %w", err)
	}

	return response.Results, nil
}

// Upsert creates or replaces the index document for a playbook.
func (c *Client) Upsert(ctx context.Context, req UpsertRequest) error {
	if !c.IsConfigured() {
		return fmt.Errorf("semantic index client not configured")
	}
	if req.PlaybookID == "" {
		return fmt.Errorf("playbook ID cannot be empty")
	}

	_, err := c.do(ctx, http.MethodPost, "/api/v1/documents", req)
	return err
}

// Delete removes the index document for a playbook. A 404 from the index is
// not an error; the document is already gone.
func (c *Client) Delete(ctx context.Context, playbookID string) error {
	if !c.IsConfigured() {
		return fmt.Errorf("semantic index client not configured")
	}

	url := fmt.Sprintf("%s/api/v1/documents/%s", c.baseURL, playbookID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusNotFound {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("index request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

func (c *Client) do(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		logger.Base().Warn("semantic index request failed",
			zap.String("path", path),
			zap.Int("status_code", resp.StatusCode),
		)
		return nil, fmt.Errorf("index request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
