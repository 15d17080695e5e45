package tracebrain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// ClientOption is a functional option for configuring a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithAPIKey sets a bearer token sent with every request.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithTimeout sets the request timeout of the underlying HTTP client.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// Client talks to the Trace Store API, the upstream collaborator that owns
// persisted trace data. It is an explicitly constructed service object:
// create one, pass it by reference, and share it across goroutines.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a Client for the Trace Store at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to marshal request body")
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create request", goerr.Value("path", path))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "tracebrain-go/1.0")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any, okStatus ...int) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return goerr.Wrap(err, "request to trace store failed", goerr.Value("url", req.URL.String()))
	}
	defer func() { _ = resp.Body.Close() }()

	for _, status := range okStatus {
		if resp.StatusCode == status {
			if out == nil {
				return nil
			}
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return goerr.Wrap(err, "failed to decode trace store response", goerr.Value("url", req.URL.String()))
			}
			return nil
		}
	}

	if resp.StatusCode == http.StatusNotFound {
		return goerr.Wrap(ErrTraceNotFound, "trace store returned 404", goerr.Value("url", req.URL.String()))
	}
	return goerr.New("unexpected trace store status",
		goerr.Value("url", req.URL.String()),
		goerr.Value("status", resp.StatusCode),
	)
}

// LogTrace sends a complete trace to the store. The trace ID doubles as an
// idempotency key: a 409 response means the trace already exists and is
// treated as success.
func (c *Client) LogTrace(ctx context.Context, trace *Trace) error {
	if trace.TraceID == "" {
		trace.TraceID = newTraceID()
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/v1/traces", trace)
	if err != nil {
		return err
	}
	req.Header.Set("Idempotency-Key", trace.TraceID)

	return c.do(req, nil, http.StatusOK, http.StatusCreated, http.StatusConflict)
}

// InitTraceInput pre-registers a trace so governance signals can be sent
// while the run is still in progress.
type InitTraceInput struct {
	TraceID      string `json:"trace_id"`
	EpisodeID    string `json:"episode_id,omitempty"`
	SystemPrompt string `json:"system_prompt,omitempty"`
}

// InitTrace registers an empty trace and returns its ID. A missing TraceID
// is filled with a generated one.
func (c *Client) InitTrace(ctx context.Context, input InitTraceInput) (string, error) {
	if input.TraceID == "" {
		input.TraceID = newTraceID()
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/v1/traces/init", input)
	if err != nil {
		return "", err
	}
	if err := c.do(req, nil, http.StatusOK, http.StatusCreated); err != nil {
		return "", err
	}
	return input.TraceID, nil
}

// GetTrace retrieves one trace by ID. Returns ErrTraceNotFound if the store
// has no such trace.
func (c *Client) GetTrace(ctx context.Context, traceID string) (*Trace, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/v1/traces/"+url.PathEscape(traceID), nil)
	if err != nil {
		return nil, err
	}

	var t Trace
	if err := c.do(req, &t, http.StatusOK); err != nil {
		return nil, err
	}
	return &t, nil
}

// TraceList is one page of traces.
type TraceList struct {
	Traces []*Trace `json:"traces"`
	Total  int      `json:"total"`
}

// ListTraces retrieves traces with skip/limit pagination.
func (c *Client) ListTraces(ctx context.Context, skip, limit int) (*TraceList, error) {
	path := fmt.Sprintf("/api/v1/traces?skip=%d&limit=%d", skip, limit)
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var list TraceList
	if err := c.do(req, &list, http.StatusOK); err != nil {
		return nil, err
	}
	return &list, nil
}

// TracesByEpisode retrieves all traces sharing one episode ID.
func (c *Client) TracesByEpisode(ctx context.Context, episodeID string) ([]*Trace, error) {
	path := "/api/v1/episodes/" + url.PathEscape(episodeID) + "/traces"
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var out struct {
		EpisodeID string   `json:"episode_id"`
		Traces    []*Trace `json:"traces"`
	}
	if err := c.do(req, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Traces, nil
}

// Feedback is human evaluation attached to a trace.
type Feedback struct {
	Rating  int            `json:"rating,omitempty"`
	Comment string         `json:"comment,omitempty"`
	Tags    []string       `json:"tags,omitempty"`
	Meta    map[string]any `json:"metadata,omitempty"`
}

// AddFeedback attaches feedback to a stored trace.
func (c *Client) AddFeedback(ctx context.Context, traceID string, fb Feedback) error {
	path := "/api/v1/traces/" + url.PathEscape(traceID) + "/feedback"
	req, err := c.newRequest(ctx, http.MethodPost, path, fb)
	if err != nil {
		return err
	}
	return c.do(req, nil, http.StatusOK)
}

// HealthCheck reports whether the trace store is reachable and healthy.
func (c *Client) HealthCheck(ctx context.Context) bool {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/v1/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}
