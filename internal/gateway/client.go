// Package gateway is the only component that talks to the commerce backend.
// Every method returns canonical domain types; response envelopes and computed
// totals are handled in normalize.go.
package gateway

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

	"storefront-core/internal/logging"

	"go.uber.org/zap"
)

const (
	publishableKeyHeader = "x-publishable-api-key"
	userAgent            = "storefront-core/1.0"
	storePrefix          = "/store"
)

// Config configures a Client.
type Config struct {
	BaseURL        string
	PublishableKey string
	Timeout        time.Duration
	HTTPClient     *http.Client
	Logger         *zap.Logger
}

// Client wraps the store REST API. It never retries; retry policy belongs to callers.
type Client struct {
	baseURL        string
	publishableKey string
	httpClient     *http.Client
	logger         *zap.Logger
}

func New(cfg Config) (*Client, error) {
	base := strings.TrimSuffix(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("commerce base URL is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:        base,
		publishableKey: cfg.PublishableKey,
		httpClient:     httpClient,
		logger:         logging.OrNop(cfg.Logger),
	}, nil
}

// do sends one request and returns the raw response body of a 2xx reply.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body interface{}, token string) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.publishableKey != "" {
		req.Header.Set(publishableKeyHeader, c.publishableKey)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	c.logger.Debug("commerce request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, parseAPIError(resp.StatusCode, respBody)
	}
	return respBody, nil
}

func storePath(format string, args ...interface{}) string {
	escaped := make([]interface{}, len(args))
	for i, a := range args {
		escaped[i] = url.PathEscape(fmt.Sprint(a))
	}
	return storePrefix + fmt.Sprintf(format, escaped...)
}
