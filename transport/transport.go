// Package transport fetches raw image bytes.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Fetcher downloads the body behind url, following redirects. It must honour
// ctx cancellation and be safe for concurrent use.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

var (
	ErrTooLarge         = errors.New("transport: response body exceeds limit")
	ErrTooManyRedirects = errors.New("transport: too many redirects")
)

// StatusError reports a non-2xx response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("transport: %s: unexpected status %d %s", e.URL, e.Code, http.StatusText(e.Code))
}

type HTTPConfig struct {
	// Client is cloned; its CheckRedirect is replaced. Defaults to a new client.
	Client *http.Client
	// Timeout bounds one fetch including redirects. 0 = none (ctx only).
	Timeout time.Duration
	// MaxBytes caps the body size. 0 = DefaultMaxBytes.
	MaxBytes int64
	// MaxRedirects caps redirect hops. 0 = DefaultMaxRedirects, negative = none followed.
	MaxRedirects int
	UserAgent    string
	// RateLimit is requests per second across all fetches; 0 = unlimited.
	RateLimit float64
	Burst     int
}

const (
	DefaultMaxBytes     = 32 << 20
	DefaultMaxRedirects = 5
	DefaultUserAgent    = "imgload/1"
)

// HTTP is a Fetcher backed by net/http.
type HTTP struct {
	client    *http.Client
	timeout   time.Duration
	maxBytes  int64
	userAgent string
	limiter   *rate.Limiter // nil if unlimited
}

var _ Fetcher = (*HTTP)(nil)

func NewHTTP(cfg HTTPConfig) *HTTP {
	var client http.Client
	if cfg.Client != nil {
		client = *cfg.Client
	}
	hops := cfg.MaxRedirects
	if hops == 0 {
		hops = DefaultMaxRedirects
	}
	client.CheckRedirect = func(_ *http.Request, via []*http.Request) error {
		if len(via) > max(hops, 0) {
			return ErrTooManyRedirects
		}
		return nil
	}

	h := &HTTP{
		client:    &client,
		timeout:   cfg.Timeout,
		maxBytes:  cfg.MaxBytes,
		userAgent: cfg.UserAgent,
	}
	if h.maxBytes <= 0 {
		h.maxBytes = DefaultMaxBytes
	}
	if h.userAgent == "" {
		h.userAgent = DefaultUserAgent
	}
	if cfg.RateLimit > 0 {
		h.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(cfg.Burst, 1))
	}
	return h
}

func (h *HTTP) Fetch(ctx context.Context, url string) ([]byte, error) {
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}
	if h.limiter != nil {
		if err := h.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("transport: rate limit: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: new request: %w", err)
	}
	req.Header.Set("User-Agent", h.userAgent)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transport: get %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, &StatusError{URL: url, Code: resp.StatusCode}
	}
	if resp.ContentLength > h.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, resp.ContentLength)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, h.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("transport: read %s: %w", url, err)
	}
	if int64(len(body)) > h.maxBytes {
		return nil, ErrTooLarge
	}
	return body, nil
}
