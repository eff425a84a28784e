// Package portal reads released metadata from the public ENCODE portal.
// Handlers outside the internal network use it instead of the search
// domain, which is only reachable over its private endpoint.
package portal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go"
)

// DefaultBaseURL is the public ENCODE portal
const DefaultBaseURL = "https://www.encodeproject.org"

// StatusError is returned for non-2xx responses
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("portal error %d: %s", e.StatusCode, body)
}

// ClientConfig configures a Client
type ClientConfig struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
	Logger     *slog.Logger
	HTTPClient *http.Client
}

// Client queries the portal search endpoint
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     *slog.Logger
	maxRetries int
	backoff    time.Duration
}

// NewClient creates a portal client. An empty BaseURL means DefaultBaseURL.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	baseURL, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil || baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, fmt.Errorf("invalid portal url %q", cfg.BaseURL)
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Backoff == 0 {
		cfg.Backoff = 500 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     cfg.Logger,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
	}, nil
}

// Facet is one aggregated field of a search result
type Facet struct {
	Field string `json:"field"`
	Terms []struct {
		Key      string `json:"key"`
		DocCount int    `json:"doc_count"`
	} `json:"terms"`
}

// SearchResult is the subset of a portal search page the API reads
type SearchResult struct {
	Total  int             `json:"total"`
	Graph  json.RawMessage `json:"@graph"`
	Facets []Facet         `json:"facets"`
}

// Decode unmarshals the result objects into out, which must point to a slice
func (r *SearchResult) Decode(out any) error {
	if len(r.Graph) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Graph, out); err != nil {
		return fmt.Errorf("failed to decode portal objects: %w", err)
	}
	return nil
}

// Search runs a portal search. Every matching object is returned unless
// params sets its own limit. A search without matches is an empty result,
// not an error, although the portal answers it with 404.
func (c *Client) Search(ctx context.Context, params url.Values) (*SearchResult, error) {
	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("format", "json")
	if q.Get("limit") == "" {
		q.Set("limit", "all")
	}

	data, err := c.do(ctx, "/search/?"+q.Encode())
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
		data, err = []byte(statusErr.Body), nil
	}
	if err != nil {
		return nil, err
	}

	var result SearchResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to decode portal search: %w", err)
	}
	return &result, nil
}

func (c *Client) do(ctx context.Context, path string) ([]byte, error) {
	var data []byte

	err := retry.Do(
		func() error {
			var err error
			data, err = c.doRequest(ctx, path)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.maxRetries)),
		retry.Delay(c.backoff),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetryableError),
		retry.OnRetry(func(n uint, err error) {
			c.logger.WarnContext(ctx, "portal request retry",
				slog.String("error", err.Error()),
				slog.Int("attempt", int(n)+1),
			)
		}),
	)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (c *Client) doRequest(ctx context.Context, path string) ([]byte, error) {
	target := c.baseURL.String() + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "serverless-rnaget/1.0")

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(startTime)
	if err != nil {
		return nil, fmt.Errorf("portal request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	c.logger.DebugContext(ctx, "portal request completed",
		slog.String("url", target),
		slog.Int("status_code", resp.StatusCode),
		slog.Duration("duration", duration),
		slog.Int("response_size", len(data)),
	)

	if resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(data)}
	}
	return data, nil
}

func isRetryableError(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500 || statusErr.StatusCode == http.StatusTooManyRequests
	}
	var netErr net.Error
	return errors.As(err, &netErr) || errors.Is(err, io.ErrUnexpectedEOF)
}
