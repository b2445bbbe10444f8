package pichost

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/podexport/backend/internal/domain"
	"github.com/podexport/backend/internal/metrics"
	"github.com/rs/zerolog"
)

// DefaultIdleTimeout aborts a probe whose socket stays idle this long
const DefaultIdleTimeout = 2000 * time.Millisecond

// shardLength is the number of GTIN characters used as directory shard
const shardLength = 3

// ProberConfig holds options for the picture host prober
type ProberConfig struct {
	BaseURL     string
	IdleTimeout time.Duration
}

// Prober checks the picture host for product images
type Prober struct {
	httpClient *http.Client
	baseURL    string
	logger     zerolog.Logger
}

// NewProber creates a prober for the picture host at cfg.BaseURL
func NewProber(cfg ProberConfig, logger zerolog.Logger) *Prober {
	timeout := cfg.IdleTimeout
	if timeout <= 0 {
		timeout = DefaultIdleTimeout
	}

	transport := &http.Transport{
		Proxy:             http.ProxyFromEnvironment,
		DialContext:       idleTimeoutDialer(timeout),
		DisableKeepAlives: true,
	}

	return &Prober{
		httpClient: &http.Client{Transport: transport},
		baseURL:    cfg.BaseURL,
		logger:     logger.With().Str("component", "pichost").Logger(),
	}
}

// PictureURL builds the picture location of a GTIN:
// <base>gtin-<first 3 chars>/<gtin>.jpg
func (p *Prober) PictureURL(gtin string) string {
	shard := gtin
	if len(shard) > shardLength {
		shard = shard[:shardLength]
	}
	return fmt.Sprintf("%sgtin-%s/%s.jpg", p.baseURL, shard, gtin)
}

// Probe requests the picture of gtin and returns its URL when the host
// answers 200. Anything else is an error.
func (p *Prober) Probe(ctx context.Context, gtin string) (string, error) {
	url := p.PictureURL(gtin)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		metrics.ImageProbesTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		metrics.ImageProbesTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: %v", domain.ErrNetworkFailure, err)
	}
	// Only the status matters; the image body is never read.
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.ImageProbesTotal.WithLabelValues("missing").Inc()
		return "", fmt.Errorf("%w: status %d for %s", domain.ErrNonSuccessStatus, resp.StatusCode, url)
	}

	metrics.ImageProbesTotal.WithLabelValues("available").Inc()
	return url, nil
}
