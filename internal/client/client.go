// Package client is the HTTP client for the freightview API. The
// dashboard reads through it and the CLI writes through it.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Mr-Dark-debug/freightview/internal/api"
)

// APIError is returned for any non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("api error: %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client talks to one API server.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	watch   *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the client used for plain requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the timeout for plain requests. Watch streams are not
// subject to it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// New creates a client for baseURL. A non-empty token is sent as a bearer
// token.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
		watch:   &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the server address.
func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) projectPath(project string, parts ...string) string {
	p := "/v1/projects/" + url.PathEscape(project)
	for _, part := range parts {
		p += "/" + url.PathEscape(part)
	}
	return p
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	return nil
}

func checkResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var body struct {
		Error string `json:"error"`
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if json.Unmarshal(b, &body) == nil && body.Error != "" {
		apiErr.Message = body.Error
	} else {
		apiErr.Message = strings.TrimSpace(string(b))
	}
	return apiErr
}

// ListStages returns a project's stages.
func (c *Client) ListStages(ctx context.Context, project string) ([]api.Stage, error) {
	var resp api.ListStagesResponse
	if err := c.do(ctx, http.MethodGet, c.projectPath(project, "stages"), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Stages, nil
}

// PutStage creates or replaces a stage.
func (c *Client) PutStage(ctx context.Context, project string, stage api.Stage) (*api.Stage, error) {
	var out api.Stage
	if err := c.do(ctx, http.MethodPut, c.projectPath(project, "stages", stage.Metadata.Name), stage, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PutFreight creates or replaces a freight.
func (c *Client) PutFreight(ctx context.Context, project string, freight api.Freight) (*api.Freight, error) {
	var out api.Freight
	if err := c.do(ctx, http.MethodPut, c.projectPath(project, "freight", freight.ID), freight, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListPromotions returns a stage's promotions.
func (c *Client) ListPromotions(ctx context.Context, project, stage string) ([]api.Promotion, error) {
	var resp api.ListPromotionsResponse
	if err := c.do(ctx, http.MethodGet, c.projectPath(project, "stages", stage, "promotions"), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Promotions, nil
}

// CreatePromotion requests promotion of freight into stage. An empty name
// lets the server generate one.
func (c *Client) CreatePromotion(ctx context.Context, project, stage, freight, name string) (*api.Promotion, error) {
	var out api.Promotion
	req := api.CreatePromotionRequest{Name: name, Freight: freight}
	if err := c.do(ctx, http.MethodPost, c.projectPath(project, "stages", stage, "promotions"), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdatePromotionStatus sets a promotion's phase and error message.
func (c *Client) UpdatePromotionStatus(ctx context.Context, project, name string, status api.PromotionStatus) (*api.Promotion, error) {
	var out api.Promotion
	if err := c.do(ctx, http.MethodPut, c.projectPath(project, "promotions", name, "status"), status, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeletePromotion removes a promotion and returns its last state.
func (c *Client) DeletePromotion(ctx context.Context, project, name string) (*api.Promotion, error) {
	var out api.Promotion
	if err := c.do(ctx, http.MethodDelete, c.projectPath(project, "promotions", name), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health checks that the server is reachable and reports its version.
func (c *Client) Health(ctx context.Context) (*api.Health, error) {
	var out api.Health
	if err := c.do(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
