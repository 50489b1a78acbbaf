// Package auth holds the master password policy and the k-anonymity
// breach-check client.
package auth

import (
	"bufio"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// ErrBreachUnavailable wraps any network or upstream failure of the breach
// check. It is advisory: callers fail open and treat it as "no signal",
// never as "breached".
var ErrBreachUnavailable = errors.New("breach check unavailable")

const (
	defaultBreachBaseURL = "https://breach-proxy.zkvault.dev/range/"
	breachUserAgent      = "zkvault/0.1"
)

// BreachClient queries the breach-check proxy using k-anonymity: only the
// first 5 hex characters of SHA1(password) ever leave the process. SHA-1
// is used solely as the corpus lookup digest, never for storage or auth.
type BreachClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// BreachOption configures the client.
type BreachOption func(*BreachClient)

// WithBaseURL points the client at a different proxy, mainly for tests.
func WithBaseURL(url string) BreachOption {
	return func(c *BreachClient) {
		if !strings.HasSuffix(url, "/") {
			url += "/"
		}
		c.baseURL = url
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) BreachOption {
	return func(c *BreachClient) { c.httpClient = hc }
}

// WithLimiter rate-limits outgoing range queries.
func WithLimiter(l *rate.Limiter) BreachOption {
	return func(c *BreachClient) { c.limiter = l }
}

// NewBreachClient returns a client with a short timeout and a conservative
// default rate limit.
func NewBreachClient(opts ...BreachOption) *BreachClient {
	c := &BreachClient{
		baseURL:    defaultBreachBaseURL,
		httpClient: &http.Client{Timeout: 4 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(time.Second), 3),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check reports whether the password appears in the breach corpus. Every
// failure path returns (false, ErrBreachUnavailable-wrapped): the check
// fails open and must never block a save. Cancellation via ctx has no side
// effects and nothing from the password is cached or logged.
func (c *BreachClient) Check(ctx context.Context, password string) (bool, error) {
	sum := sha1.Sum([]byte(password))
	hashHex := strings.ToUpper(hex.EncodeToString(sum[:]))
	prefix := hashHex[:5]
	suffix := hashHex[5:]

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return false, fmt.Errorf("%w: rate limit wait: %v", ErrBreachUnavailable, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+prefix, nil)
	if err != nil {
		return false, fmt.Errorf("%w: build request: %v", ErrBreachUnavailable, err)
	}
	req.Header.Set("User-Agent", breachUserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: query: %v", ErrBreachUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("%w: unexpected status %s", ErrBreachUnavailable, resp.Status)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		idx := strings.IndexByte(line, ':')
		if idx == -1 {
			continue
		}
		if !strings.EqualFold(line[:idx], suffix) {
			continue
		}
		count, err := strconv.Atoi(strings.TrimSpace(line[idx+1:]))
		if err != nil {
			continue
		}
		// Zero-count lines are proxy padding, not real matches.
		if count > 0 {
			return true, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return false, fmt.Errorf("%w: read response: %v", ErrBreachUnavailable, err)
	}

	return false, nil
}
