// Package qdrant is a minimal REST client to Qdrant, assuming cosine
// distance.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fiscalia/docindex/config"
	"github.com/fiscalia/docindex/internal/vectorstore"
)

type Client struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client
}

func NewClient(cfg *config.QdrantConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

// EnsureCollection creates the collection if missing. Qdrant answers 200
// when it already exists with the same schema.
func (c *Client) EnsureCollection(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid dimension %d", dimension)
	}
	body := map[string]interface{}{
		"vectors": map[string]interface{}{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s", c.collection), body, nil)
}

// UpsertBatch writes points with wait=true so a subsequent search sees
// them.
func (c *Client) UpsertBatch(ctx context.Context, points []vectorstore.Point) error {
	if len(points) == 0 {
		return nil
	}
	body := map[string]interface{}{"points": points}
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s/points?wait=true", c.collection), body, nil)
}

func (c *Client) Search(ctx context.Context, vector []float32, filter *vectorstore.Filter, limit int) ([]vectorstore.ScoredPoint, error) {
	if limit <= 0 {
		limit = 20
	}
	body := map[string]interface{}{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	if filter != nil {
		body["filter"] = matchFilter(*filter)
	}

	var resp struct {
		Result []vectorstore.ScoredPoint `json:"result"`
	}
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/search", c.collection), body, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Result, nil
}

func (c *Client) GetPoint(ctx context.Context, id string) (*vectorstore.Point, error) {
	body := map[string]interface{}{
		"ids":          []string{id},
		"with_payload": true,
		"with_vector":  false,
	}

	var resp struct {
		Result []vectorstore.Point `json:"result"`
	}
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points", c.collection), body, &resp)
	if err != nil {
		return nil, err
	}
	if len(resp.Result) == 0 {
		return nil, fmt.Errorf("point %s not found", id)
	}
	return &resp.Result[0], nil
}

// SetPayload merges the given fields into one point's payload.
func (c *Client) SetPayload(ctx context.Context, id string, payload map[string]interface{}) error {
	body := map[string]interface{}{
		"payload": payload,
		"points":  []string{id},
	}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/payload?wait=true", c.collection), body, nil)
}

func (c *Client) DeletePoints(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	body := map[string]interface{}{"points": ids}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/delete?wait=true", c.collection), body, nil)
}

// DeleteByFilter removes every point whose payload matches the filter.
// Best-effort: the delete acknowledgment is trusted, not verified.
func (c *Client) DeleteByFilter(ctx context.Context, filter vectorstore.Filter) error {
	body := map[string]interface{}{"filter": matchFilter(filter)}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/delete?wait=true", c.collection), body, nil)
}

func (c *Client) CollectionStats(ctx context.Context) (*vectorstore.CollectionStats, error) {
	var resp struct {
		Result vectorstore.CollectionStats `json:"result"`
	}
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/collections/%s", c.collection), nil, &resp)
	if err != nil {
		return nil, err
	}
	return &resp.Result, nil
}

func matchFilter(f vectorstore.Filter) map[string]interface{} {
	return map[string]interface{}{
		"must": []map[string]interface{}{
			{
				"key":   f.Field,
				"match": map[string]interface{}{"value": f.Value},
			},
		},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("qdrant %s %s failed: %s: %s", method, path, resp.Status, string(msg))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode qdrant response: %w", err)
		}
	}
	return nil
}
