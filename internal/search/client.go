// Package search is a small Elasticsearch client for the RNAget domain.
// Requests are signed with SigV4 for IAM protected domains or carry basic
// auth when the domain uses an internal user database.
package search

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
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
	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
)

// signingService is the SigV4 service name of Amazon Elasticsearch/OpenSearch
const signingService = "es"

// StatusError is returned for non-2xx responses
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("elasticsearch error %d: %s", e.StatusCode, truncateBody(e.Body, 200))
}

// BasicAuthProvider supplies credentials for domains with fine grained
// access control backed by an internal user database
type BasicAuthProvider interface {
	BasicAuth(ctx context.Context) (username, password string, err error)
}

// ClientConfig configures a Client
type ClientConfig struct {
	Endpoint    string
	Region      string
	Credentials aws.CredentialsProvider
	BasicAuth   BasicAuthProvider
	Timeout     time.Duration
	MaxRetries  int
	Backoff     time.Duration
	Logger      *slog.Logger
	HTTPClient  *http.Client
}

// Client queries one Elasticsearch domain
type Client struct {
	endpoint    *url.URL
	region      string
	httpClient  *http.Client
	logger      *slog.Logger
	signer      *v4.Signer
	credentials aws.CredentialsProvider
	basicAuth   BasicAuthProvider
	maxRetries  int
	backoff     time.Duration
}

// NewClient creates a client for the domain at cfg.Endpoint
func NewClient(cfg ClientConfig) (*Client, error) {
	endpoint, err := url.Parse(strings.TrimSuffix(cfg.Endpoint, "/"))
	if err != nil || endpoint.Scheme == "" || endpoint.Host == "" {
		return nil, fmt.Errorf("invalid elasticsearch endpoint %q", cfg.Endpoint)
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
		transport := &http.Transport{
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			ForceAttemptHTTP2:     true,
		}
		httpClient = &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}

	return &Client{
		endpoint:    endpoint,
		region:      cfg.Region,
		httpClient:  httpClient,
		logger:      cfg.Logger,
		signer:      v4.NewSigner(),
		credentials: cfg.Credentials,
		basicAuth:   cfg.BasicAuth,
		maxRetries:  cfg.MaxRetries,
		backoff:     cfg.Backoff,
	}, nil
}

// Hit is one search result. Sort holds the hit's sort values when the
// query sorts, and feeds search_after on the next page.
type Hit struct {
	Index  string          `json:"_index"`
	ID     string          `json:"_id"`
	Source json.RawMessage `json:"_source"`
	Sort   []any           `json:"sort,omitempty"`
}

// Total is the number of documents matching a query. Elasticsearch 6
// reports a bare number, 7 and later an object with a relation.
type Total struct {
	Value    int    `json:"value"`
	Relation string `json:"relation"`
}

// UnmarshalJSON accepts both total forms
func (t *Total) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*t = Total{Value: n, Relation: "eq"}
		return nil
	}
	type plain Total
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("invalid hits total %s: %w", data, err)
	}
	*t = Total(p)
	return nil
}

// SearchResponse is the subset of the _search response the API reads
type SearchResponse struct {
	Took     int  `json:"took"`
	TimedOut bool `json:"timed_out"`
	Hits     struct {
		Total Total `json:"total"`
		Hits  []Hit `json:"hits"`
	} `json:"hits"`
}

// Search runs query against index
func (c *Client) Search(ctx context.Context, index string, query any) (*SearchResponse, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search query: %w", err)
	}

	data, err := c.do(ctx, http.MethodPost, "/"+url.PathEscape(index)+"/_search", body)
	if err != nil {
		return nil, err
	}

	var resp SearchResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	if resp.TimedOut {
		c.logger.WarnContext(ctx, "search timed out, results are partial",
			slog.String("index", index),
			slog.Int("took_ms", resp.Took),
		)
	}
	return &resp, nil
}

// do executes a request with retry logic
func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var data []byte

	err := retry.Do(
		func() error {
			var err error
			data, err = c.doRequest(ctx, method, path, body)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.maxRetries)),
		retry.Delay(c.backoff),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetryableError),
		retry.OnRetry(func(n uint, err error) {
			c.logger.WarnContext(ctx, "retryable error occurred",
				slog.String("error", err.Error()),
				slog.Int("attempt", int(n)+1),
				slog.Int("max_retries", c.maxRetries),
			)
		}),
	)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// doRequest performs a single signed request
func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	target := *c.endpoint
	target.Path = strings.TrimSuffix(target.Path, "/") + path

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "serverless-rnaget/1.0")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if err := c.authorize(ctx, req, body); err != nil {
		return nil, err
	}

	c.logRequest(req)

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(startTime)
	if err != nil {
		c.logger.ErrorContext(ctx, "elasticsearch request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("elasticsearch request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	c.logger.DebugContext(ctx, "elasticsearch request completed",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status_code", resp.StatusCode),
		slog.Duration("duration", duration),
		slog.Int("response_size", len(data)),
	)

	if resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(data)}
	}
	return data, nil
}

// authorize attaches basic auth or a SigV4 signature. Requests go out
// unsigned when neither is configured, which only works against local
// domains.
func (c *Client) authorize(ctx context.Context, req *http.Request, body []byte) error {
	if c.basicAuth != nil {
		username, password, err := c.basicAuth.BasicAuth(ctx)
		if err != nil {
			return fmt.Errorf("failed to resolve elasticsearch credentials: %w", err)
		}
		req.SetBasicAuth(username, password)
		return nil
	}

	if c.credentials == nil {
		return nil
	}

	creds, err := c.credentials.Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("failed to retrieve AWS credentials: %w", err)
	}

	sum := sha256.Sum256(body)
	if err := c.signer.SignHTTP(ctx, creds, req, hex.EncodeToString(sum[:]), signingService, c.region, time.Now()); err != nil {
		return fmt.Errorf("failed to sign request: %w", err)
	}
	return nil
}

// logRequest logs the request without credentials
func (c *Client) logRequest(req *http.Request) {
	redactedHeaders := make(map[string]string)
	for key := range req.Header {
		lowerKey := strings.ToLower(key)
		if strings.Contains(lowerKey, "auth") ||
			strings.Contains(lowerKey, "token") ||
			strings.Contains(lowerKey, "security") {
			redactedHeaders[key] = "[REDACTED]"
		} else {
			redactedHeaders[key] = req.Header.Get(key)
		}
	}

	c.logger.DebugContext(req.Context(), "elasticsearch request",
		slog.String("method", req.Method),
		slog.String("url", req.URL.String()),
		slog.Any("headers", redactedHeaders),
	)
}

// isRetryableError determines if an error should trigger a retry
func isRetryableError(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500 || statusErr.StatusCode == http.StatusTooManyRequests
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return errors.Is(err, io.ErrUnexpectedEOF) || strings.Contains(err.Error(), "connection reset")
}

// truncateBody truncates a response body for logging
func truncateBody(body string, maxLen int) string {
	if len(body) <= maxLen {
		return body
	}
	return body[:maxLen] + "..."
}
