// Package apiclient is the single outbound gateway to the school REST API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/trezcool/masomo-admin/core"
)

// TokenSource yields the bearer token to attach to outgoing requests, if any.
type TokenSource interface {
	Read() (string, bool)
}

// Doer is what domain services need from the client.
type Doer interface {
	Request(ctx context.Context, method, path string, body, out interface{}) error
}

type Options struct {
	BaseURL    string
	Timeout    time.Duration // 0: no timeout
	HTTPClient *http.Client  // optional
	Logger     core.Logger   // optional
	Registerer prometheus.Registerer
}

// Client sends JSON requests to one fixed base URL.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	logger  core.Logger
	metrics *metrics
}

var _ Doer = (*Client)(nil)

func New(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = core.NopLogger
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http:    hc,
		logger:  logger,
		metrics: newMetrics(opts.Registerer),
	}
}

// WithTokens returns a copy of the client whose requests are authorized from `ts`.
func (c *Client) WithTokens(ts TokenSource) *Client {
	cp := *c
	cp.tokens = ts
	return &cp
}

// BaseURL returns the API root every path is resolved against.
func (c *Client) BaseURL() string { return c.baseURL }

// Request sends `body` (JSON encoded, if not nil) and decodes the response into `out` (if not nil).
// It fails with *NetworkError on transport failure and *HTTPError on any non-2xx response.
func (c *Client) Request(ctx context.Context, method, path string, body, out interface{}) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	c.metrics.duration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.requests.WithLabelValues(method, "0").Inc()
		nerr := &NetworkError{Method: method, Path: path, Err: err}
		c.logger.Warn("api request failed", nerr)
		return nerr
	}
	defer resp.Body.Close()
	c.metrics.requests.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Method: method, Path: path, Err: errors.Wrap(err, "reading response body")}
	}
	c.logger.Debug("api request", map[string]interface{}{
		"method": method,
		"path":   path,
		"status": resp.StatusCode,
		"took":   time.Since(start).String(),
	})

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		herr := &HTTPError{Method: method, Path: path, Status: resp.StatusCode, Body: data}
		c.logger.Warn("api request rejected", herr)
		return herr
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	return errors.Wrapf(json.Unmarshal(data, out), "decoding %s %s response", method, path)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body interface{}) (*http.Request, error) {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "encoding request body")
		}
		rdr = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+strings.TrimLeft(path, "/"), rdr)
	if err != nil {
		return nil, errors.Wrap(err, "building request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "*/*")

	// interceptor: authorize the request when a token is stored
	if c.tokens != nil {
		if token, ok := c.tokens.Read(); ok && token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return req, nil
}
