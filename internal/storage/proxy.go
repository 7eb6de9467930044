package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	HeaderAccessClientID     = "CF-Access-Client-Id"
	HeaderAccessClientSecret = "CF-Access-Client-Secret"
)

type ProxyConfig struct {
	BaseURL        string
	ClientID       string
	ClientSecret   string
	Timeout        time.Duration
	MaxBytes       int64
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// ProxyClient fetches objects through an HTTP storage proxy that sits behind
// an access gateway. Keys are appended to the base URL as-is.
type ProxyClient struct {
	httpClient     *http.Client
	baseURL        string
	clientID       string
	clientSecret   string
	maxBytes       int64
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

func NewProxyClient(cfg ProxyConfig) (*ProxyClient, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("storage proxy url is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	initialBackoff := cfg.InitialBackoff
	if initialBackoff <= 0 {
		initialBackoff = 100 * time.Millisecond
	}

	maxBackoff := cfg.MaxBackoff
	if maxBackoff < initialBackoff {
		maxBackoff = initialBackoff
	}

	return &ProxyClient{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:        baseURL,
		clientID:       cfg.ClientID,
		clientSecret:   cfg.ClientSecret,
		maxBytes:       maxBytes,
		maxAttempts:    maxAttempts,
		initialBackoff: initialBackoff,
		maxBackoff:     maxBackoff,
	}, nil
}

// Fetch returns the object body. Only transport failures are retried; not
// found, forbidden and oversized objects fail on the first attempt.
func (c *ProxyClient) Fetch(ctx context.Context, key string) ([]byte, error) {
	backoff := c.initialBackoff
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := c.fetchOnce(ctx, key)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, ErrTransport) || ctx.Err() != nil {
			return nil, err
		}
		lastErr = err
		if attempt == c.maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}

		backoff = minDuration(backoff*2, c.maxBackoff)
	}
	return nil, lastErr
}

func (c *ProxyClient) fetchOnce(ctx context.Context, key string) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.baseURL+"/"+key)
	if err != nil {
		return nil, transport(key, 0, fmt.Errorf("build request: %w", err))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transport(key, 0, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusOK:
		return readLimited(key, resp.Body, resp.ContentLength, c.maxBytes)
	case resp.StatusCode == http.StatusNotFound:
		return nil, notFound(key, resp.StatusCode)
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, forbidden(key, resp.StatusCode)
	default:
		return nil, transport(key, resp.StatusCode, nil)
	}
}

// Ping checks that the proxy answers at all. Any HTTP response counts.
func (c *ProxyClient) Ping(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodHead, c.baseURL+"/")
	if err != nil {
		return fmt.Errorf("build ping request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ping storage proxy: %w", err)
	}
	resp.Body.Close()
	return nil
}

func (c *ProxyClient) newRequest(ctx context.Context, method, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}
	if c.clientID != "" {
		req.Header.Set(HeaderAccessClientID, c.clientID)
	}
	if c.clientSecret != "" {
		req.Header.Set(HeaderAccessClientSecret, c.clientSecret)
	}
	return req, nil
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
