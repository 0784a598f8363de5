// Package clients holds the REST clients for the hosted services the portal
// delegates to: Supabase Auth and Storage, Mercury, ShipStation and Stripe.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const defaultTimeout = 15 * time.Second

// APIError is a non-2xx answer from a vendor API.
type APIError struct {
	Service string
	Status  int
	Body    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Service, e.Status, truncate(e.Body, 512))
}

// IsAPIError reports whether err carries an APIError, and returns it.
func IsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// StatusOf returns the vendor status in err, or 0.
func StatusOf(err error) int {
	if apiErr, ok := IsAPIError(err); ok {
		return apiErr.Status
	}
	return 0
}

type restClient struct {
	service    string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	authorize  func(req *http.Request)
}

func newRestClient(service, baseURL string, httpClient *http.Client, logger *zap.Logger) restClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return restClient{
		service:    service,
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger.Named(service),
	}
}

// doJSON sends body as JSON and decodes a JSON answer into out when out is
// not nil.
func (c *restClient) doJSON(ctx context.Context, method, path string, body, out interface{}, opts ...func(*http.Request)) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", c.service, err)
		}
		reader = bytes.NewReader(data)
	}
	opts = append([]func(*http.Request){func(r *http.Request) {
		r.Header.Set("Accept", "application/json")
		if body != nil {
			r.Header.Set("Content-Type", "application/json")
		}
	}}, opts...)

	respBody, err := c.do(ctx, method, path, reader, opts...)
	if err != nil {
		return err
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", c.service, err)
	}
	return nil
}

func (c *restClient) do(ctx context.Context, method, path string, body io.Reader, opts ...func(*http.Request)) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", c.service, err)
	}
	if c.authorize != nil {
		c.authorize(req)
	}
	for _, opt := range opts {
		opt(req)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("%s: %s %s: %w", c.service, method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", c.service, err)
	}

	c.logger.Debug("request completed",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{Service: c.service, Status: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}

func withBearer(token string) func(*http.Request) {
	return func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
