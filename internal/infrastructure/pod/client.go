package pod

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/podexport/backend/internal/domain"
	"github.com/podexport/backend/internal/metrics"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// maxLoggedBody caps how much of an error response body ends up in the log
const maxLoggedBody = 512

// ClientConfig holds options for the remote query client
type ClientConfig struct {
	BaseURL            string
	Timeout            time.Duration
	InsecureSkipVerify bool
	RateLimit          float64 // requests per second, 0 = unlimited
	Burst              int
}

// Client sends queries to the remote POD data service
type Client struct {
	httpClient  *http.Client
	baseURL     string
	rateLimiter *rate.Limiter
	logger      zerolog.Logger
}

// queryRequest is the body POSTed for every query
type queryRequest struct {
	Expr  string `json:"expr"`
	Limit int    `json:"limit"`
}

// queryEnvelope is the response wrapper returned by the service
type queryEnvelope struct {
	Result *[]json.RawMessage `json:"result"`
}

// NewClient creates a new POD query client
func NewClient(cfg ClientConfig, logger zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		baseURL:     cfg.BaseURL,
		rateLimiter: rate.NewLimiter(limit, burst),
		logger:      logger.With().Str("component", "pod").Logger(),
	}
}

// Query executes a single query expression and returns the raw records of
// the result envelope. It sends exactly one request and never retries.
func (c *Client) Query(ctx context.Context, expr string, limit int) ([]json.RawMessage, error) {
	records, err := c.query(ctx, expr, limit)
	metrics.RemoteQueriesTotal.WithLabelValues(metrics.Outcome(err)).Inc()
	return records, err
}

func (c *Client) query(ctx context.Context, expr string, limit int) ([]json.RawMessage, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	payload, err := json.Marshal(queryRequest{Expr: expr, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "podexport/1.0")

	c.logger.Debug().Str("expr", expr).Int("limit", limit).Msg("sending query")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNetworkFailure, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", domain.ErrNetworkFailure, err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Interface("headers", resp.Header).
			Str("body", truncate(body, maxLoggedBody)).
			Msg("query rejected by remote service")
		return nil, fmt.Errorf("%w: status %d", domain.ErrNonSuccessStatus, resp.StatusCode)
	}

	var envelope queryEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrParseFailure, err)
	}
	if envelope.Result == nil {
		return nil, fmt.Errorf("%w: envelope has no result field", domain.ErrParseFailure)
	}

	return *envelope.Result, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
