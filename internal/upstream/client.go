package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Defaults mirror what the upstream providers tolerate: connecting should be
// fast, but model generation can take minutes.
const (
	DefaultConnectTimeout = 10 * time.Second
	DefaultReadTimeout    = 300 * time.Second
	DefaultMaxRetries     = 3
	DefaultBackoffFactor  = 0.8
)

// retryableStatus is the set of upstream statuses worth another attempt.
var retryableStatus = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// Config holds everything a Client needs. One Config per upstream; no
// process-wide settings object.
type Config struct {
	BaseURL        string
	APIKey         string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	MaxRetries     uint64
	BackoffFactor  float64
}

// Client is an immutable POST-only HTTP client with a fixed retry policy and
// tiered connect/read timeouts. Safe for concurrent use; construct once per
// upstream and share.
//
// All calls here are POST, but the upstreams declare them safe to retry, so
// transient statuses and transport failures are retried for buffered calls.
// Streaming calls never retry after the first byte.
type Client struct {
	baseURL        string
	apiKey         string
	httpClient     *http.Client
	readTimeout    time.Duration
	maxRetries     uint64
	initialBackoff time.Duration
}

// New builds a Client. A missing API key is a fatal configuration error and
// fails here, before any network access.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, &ConfigError{Reason: "API key is not configured"}
	}
	if cfg.BaseURL == "" {
		return nil, &ConfigError{Reason: "base URL is not configured"}
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.BackoffFactor <= 0 {
		cfg.BackoffFactor = DefaultBackoffFactor
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout: cfg.ConnectTimeout,
		}).DialContext,
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ResponseHeaderTimeout: cfg.ReadTimeout,
	}

	return &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:         cfg.APIKey,
		httpClient:     &http.Client{Transport: transport},
		readTimeout:    cfg.ReadTimeout,
		maxRetries:     cfg.MaxRetries,
		initialBackoff: time.Duration(cfg.BackoffFactor * float64(time.Second)),
	}, nil
}

// PostJSON issues a buffered JSON POST and returns the raw response body.
func (c *Client) PostJSON(ctx context.Context, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return c.postBuffered(ctx, path, "application/json", body)
}

// PostForm issues a buffered multipart POST with one file part plus plain
// fields, and returns the raw response body.
func (c *Client) PostForm(ctx context.Context, path string, fields map[string]string, fileField, filename string, file []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("encode form field %s: %w", k, err)
		}
	}
	part, err := w.CreateFormFile(fileField, filename)
	if err != nil {
		return nil, fmt.Errorf("encode form file: %w", err)
	}
	if _, err := part.Write(file); err != nil {
		return nil, fmt.Errorf("encode form file: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finish form: %w", err)
	}
	return c.postBuffered(ctx, path, w.FormDataContentType(), buf.Bytes())
}

// PostJSONStream issues a JSON POST with incremental-read semantics and
// returns the open stream on a 2xx response. Failures before the first body
// byte are retried and classified like buffered failures; once the stream is
// returned, the client is out of the picture and the caller owns (and must
// Close) the connection.
func (c *Client) PostJSONStream(ctx context.Context, path string, payload any) (*Stream, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	var stream *Stream
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		c.setHeaders(req, "application/json")
		req.Header.Set("Accept", "text/event-stream")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return classifyTransport(err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
			resp.Body.Close()
			httpErr := &HTTPError{Status: resp.StatusCode, Body: string(data)}
			if retryableStatus[resp.StatusCode] {
				return httpErr
			}
			return backoff.Permanent(httpErr)
		}
		stream = newStream(resp.Body)
		return nil
	}

	if err := backoff.Retry(op, c.newBackoff(ctx)); err != nil {
		return nil, err
	}
	return stream, nil
}

func (c *Client) postBuffered(ctx context.Context, path, contentType string, body []byte) ([]byte, error) {
	var out []byte
	op := func() error {
		reqCtx, cancel := context.WithTimeout(ctx, c.readTimeout)
		defer cancel()

		req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		c.setHeaders(req, contentType)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return classifyTransport(err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return classifyTransport(err)
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			out = data
			return nil
		}
		httpErr := &HTTPError{Status: resp.StatusCode, Body: string(data)}
		if retryableStatus[resp.StatusCode] {
			return httpErr
		}
		return backoff.Permanent(httpErr)
	}

	if err := backoff.Retry(op, c.newBackoff(ctx)); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) setHeaders(req *http.Request, contentType string) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", contentType)
}

func (c *Client) newBackoff(ctx context.Context) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.initialBackoff
	return backoff.WithContext(backoff.WithMaxRetries(bo, c.maxRetries), ctx)
}

// classifyTransport maps a transport-level failure into the error taxonomy.
// Dial timeouts are connect-phase; everything else that timed out counts as
// the read phase.
func classifyTransport(err error) error {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		if opErr.Timeout() {
			return &TimeoutError{Phase: PhaseConnect, Err: err}
		}
		return &TransportError{Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TimeoutError{Phase: PhaseRead, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Phase: PhaseRead, Err: err}
	}
	return &TransportError{Err: err}
}
