package dragsim

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/okian/pickem/internal/domain/model"
	"github.com/okian/pickem/internal/domain/types"
)

// StatusError is a non-2xx answer from the server.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
}

// Client talks to the board API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client with the given request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{baseURL: baseURL, http: &http.Client{Timeout: timeout}}
}

type standingsResult struct {
	Standings types.StandingsView `json:"standings"`
	Changed   bool                `json:"changed"`
}

type savedPrediction struct {
	Category model.Category  `json:"category"`
	Version  int             `json:"version"`
	Source   string          `json:"source"`
	Payload  json.RawMessage `json:"payload"`
}

type predictionsResult struct {
	Predictions []savedPrediction `json:"predictions"`
}

// do sends body as JSON and decodes a 2xx answer into out.
func (c *Client) do(ctx context.Context, method, path string, body any, header http.Header, out any) (int, error) {
	var rdr io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request body: %w", err)
		}
		rdr = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, &StatusError{Code: resp.StatusCode, Body: string(raw)}
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func userPath(userID string) string {
	return "/boards/" + url.PathEscape(userID)
}

// Health checks /healthz.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/healthz", nil, nil, nil)
	return err
}

// Open opens userID's board.
func (c *Client) Open(ctx context.Context, userID string) (types.BoardView, error) {
	var view types.BoardView
	_, err := c.do(ctx, http.MethodPost, userPath(userID), nil, nil, &view)
	return view, err
}

// Close closes userID's board.
func (c *Client) Close(ctx context.Context, userID string) error {
	_, err := c.do(ctx, http.MethodDelete, userPath(userID), nil, nil, nil)
	return err
}

// Reorder moves itemID to target.
func (c *Client) Reorder(ctx context.Context, userID string, conf model.Conference, itemID string, target int) (standingsResult, error) {
	var res standingsResult
	body := map[string]any{"itemId": itemID, "target": target}
	_, err := c.do(ctx, http.MethodPost, userPath(userID)+"/standings/"+string(conf)+"/reorder", body, nil, &res)
	return res, err
}

// Drag sends one gesture step.
func (c *Client) Drag(ctx context.Context, userID string, conf model.Conference, ev types.DragEvent) (standingsResult, error) {
	var res standingsResult
	_, err := c.do(ctx, http.MethodPost, userPath(userID)+"/standings/"+string(conf)+"/drag", ev, nil, &res)
	return res, err
}

// Save requests a manual save of the standings under key.
func (c *Client) Save(ctx context.Context, userID, key string) (types.SaveReceipt, int, error) {
	var receipt types.SaveReceipt
	header := http.Header{"Idempotency-Key": []string{key}}
	body := map[string]string{"category": string(model.CategoryStandings)}
	status, err := c.do(ctx, http.MethodPost, userPath(userID)+"/save", body, header, &receipt)
	return receipt, status, err
}

// Predictions lists userID's saved predictions.
func (c *Client) Predictions(ctx context.Context, userID string) ([]savedPrediction, error) {
	var res predictionsResult
	_, err := c.do(ctx, http.MethodGet, "/predictions/"+url.PathEscape(userID), nil, nil, &res)
	return res.Predictions, err
}
