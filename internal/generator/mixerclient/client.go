// Package mixerclient is the generator's authenticated HTTP client for
// fetching seeds from the mixer, implementing the retry policy of spec
// §4.2.2.
package mixerclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"rng-mesh/pkg/rngauth"
)

const (
	// FetchRetries is the maximum number of attempts before giving up.
	FetchRetries = 10
	// FetchRetryDelay is the pause between attempts.
	FetchRetryDelay = time.Second
	// fetchTimeout bounds a single HTTP round trip (spec §5: 5-30s).
	fetchTimeout = 5 * time.Second
)

// Client fetches seeds from the mixer's /api/v1/seed endpoint.
type Client struct {
	baseURL    string
	key        rngauth.Key
	http       *http.Client
	retryDelay time.Duration
}

// New returns a Client targeting baseURL (e.g. "http://mixer:5000"),
// authenticating with key.
func New(baseURL string, key rngauth.Key) *Client {
	return &Client{
		baseURL:    baseURL,
		key:        key,
		http:       &http.Client{Timeout: fetchTimeout},
		retryDelay: FetchRetryDelay,
	}
}

// FetchSeed implements keystream.SeedFetcher: it issues an authenticated
// GET to the mixer's seed endpoint, retrying up to FetchRetries times
// with a FetchRetryDelay pause on transport error or a non-2xx response.
func (c *Client) FetchSeed(ctx context.Context) ([64]byte, error) {
	var zero [64]byte
	var lastErr error

	for attempt := 0; attempt < FetchRetries; attempt++ {
		seed, err := c.fetchOnce(ctx)
		if err == nil {
			return seed, nil
		}
		lastErr = err

		if attempt == FetchRetries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(c.retryDelay):
		}
	}

	return zero, fmt.Errorf("mixerclient: exhausted %d attempts: %w", FetchRetries, lastErr)
}

func (c *Client) fetchOnce(ctx context.Context) ([64]byte, error) {
	var zero [64]byte

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/seed", nil)
	if err != nil {
		return zero, fmt.Errorf("mixerclient: build request: %w", err)
	}
	req.Header.Set(rngauth.HeaderName, c.key.Sign(nil))

	resp, err := c.http.Do(req)
	if err != nil {
		return zero, fmt.Errorf("mixerclient: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return zero, fmt.Errorf("mixerclient: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return zero, fmt.Errorf("mixerclient: read body: %w", err)
	}
	if len(body) != 64 {
		return zero, fmt.Errorf("mixerclient: expected 64-byte seed, got %d", len(body))
	}

	var seed [64]byte
	copy(seed[:], body)
	return seed, nil
}
