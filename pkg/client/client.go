// Package client provides the core Salesforce REST client with bearer
// authentication, credential refresh, and error classification.
package client

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for client operations.
var (
	sfRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sf_requests_total",
		Help: "Total Salesforce API requests by method and status",
	}, []string{"method", "status"})

	sfRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sf_request_duration_seconds",
		Help:    "Salesforce API request duration in seconds by method",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"method"})

	sfErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sf_errors_total",
		Help: "Total Salesforce API errors by kind",
	}, []string{"kind"})

	sfAuthenticationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sf_authentications_total",
		Help: "Total authenticate calls made to obtain a credential",
	})
)

// Credential is an access token bound to the instance that issued it.
// It is owned by the client and replaced wholesale on refresh.
type Credential struct {
	AccessToken string `json:"access_token"`
	InstanceURL string `json:"instance_url"`
	ID          string `json:"id"`
	TokenType   string `json:"token_type"`
	IssuedAt    string `json:"issued_at"`
	Signature   string `json:"signature"`
}

// AuthenticateFunc obtains a fresh credential. It may perform network
// I/O; its failures surface as authentication errors.
type AuthenticateFunc func(ctx context.Context) (*Credential, error)

// Config holds the client configuration.
type Config struct {
	// Authenticate obtains a credential on demand (required).
	Authenticate AuthenticateFunc

	// Version is the Salesforce API version, e.g. "57.0" (required).
	Version string

	// HTTPClient overrides the default HTTP client.
	HTTPClient *http.Client
}

// Client is the Salesforce API client. A single client may be shared by
// multiple concurrent operations; only its credential slot is shared
// mutable state and it is mutex-guarded.
type Client struct {
	httpClient   *http.Client
	authenticate AuthenticateFunc
	version      string
	logger       zerolog.Logger

	mu   sync.Mutex
	cred *Credential

	resMu     sync.Mutex
	resources map[string]string
}

// New creates a Salesforce API client.
func New(cfg Config) (*Client, error) {
	if cfg.Authenticate == nil {
		return nil, fmt.Errorf("authenticate function is required")
	}
	if cfg.Version == "" {
		return nil, fmt.Errorf("api version is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}

	return &Client{
		httpClient:   httpClient,
		authenticate: cfg.Authenticate,
		version:      cfg.Version,
		logger:       log.With().Str("component", "client").Logger(),
	}, nil
}

// Version returns the configured API version.
func (c *Client) Version() string {
	return c.version
}

// credential returns the held credential, authenticating first if none
// is held. The check-and-refresh step is serialized so concurrent
// requests sharing this client cannot race redundant authentications.
func (c *Client) credential(ctx context.Context) (*Credential, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cred != nil {
		return c.cred, nil
	}

	cred, err := c.authenticate(ctx)
	if err != nil {
		sfErrorsTotal.WithLabelValues(string(KindAuthentication)).Inc()
		return nil, &APIError{Kind: KindAuthentication, Message: "authenticate", Err: err}
	}
	if cred == nil || cred.AccessToken == "" || cred.InstanceURL == "" {
		return nil, &APIError{Kind: KindAuthentication, Message: "authenticate returned incomplete credential"}
	}

	sfAuthenticationsTotal.Inc()
	c.logger.Debug().Str("instance_url", cred.InstanceURL).Msg("Credential obtained")
	c.cred = cred
	return cred, nil
}

// invalidate discards cred if it is still the held credential. A newer
// credential installed by a concurrent refresh is left in place.
func (c *Client) invalidate(cred *Credential) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cred == cred {
		c.cred = nil
	}
}

// RequestOptions carries optional parts of an API request.
type RequestOptions struct {
	// Headers are merged over the default headers; caller values win.
	Headers http.Header

	// Params are encoded into the request query string.
	Params url.Values

	// JSON, when non-nil, is marshalled as the request body with
	// Content-Type application/json.
	JSON any
}

// Request issues an authenticated API request and returns the response
// for the caller to consume and close. Statuses outside 200-299 are
// returned as typed errors. A 401 triggers one transparent
// re-authentication and resend; a second 401 surfaces as an
// authentication error.
func (c *Client) Request(ctx context.Context, method, path string, opts *RequestOptions) (*http.Response, error) {
	start := time.Now()
	defer func() {
		sfRequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	}()

	var body []byte
	if opts != nil && opts.JSON != nil {
		var err error
		body, err = json.Marshal(opts.JSON)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
	}

	for attempt := 0; ; attempt++ {
		cred, err := c.credential(ctx)
		if err != nil {
			return nil, err
		}

		req, err := c.newRequest(ctx, method, path, cred, body, opts)
		if err != nil {
			return nil, err
		}

		c.logger.Debug().
			Str("method", method).
			Str("path", path).
			Int("attempt", attempt+1).
			Msg("Executing API request")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			sfRequestsTotal.WithLabelValues(method, "network_error").Inc()
			return nil, fmt.Errorf("send request: %w", err)
		}

		sfRequestsTotal.WithLabelValues(method, fmt.Sprintf("%d", resp.StatusCode)).Inc()

		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			return decompressed(resp)
		}

		apiErr := errorForStatus(resp.StatusCode, readBodyText(resp))
		resp.Body.Close()
		sfErrorsTotal.WithLabelValues(string(apiErr.Kind)).Inc()

		if apiErr.Kind == KindAuthentication && attempt == 0 {
			c.logger.Debug().
				Str("path", path).
				Msg("Credential rejected, re-authenticating")
			c.invalidate(cred)
			continue
		}

		c.logger.Warn().
			Str("method", method).
			Str("path", path).
			Int("status", resp.StatusCode).
			Str("kind", string(apiErr.Kind)).
			Msg("API request error")
		return nil, apiErr
	}
}

// newRequest builds the HTTP request against the credential's instance:
// default headers first, caller headers over them, bearer token last.
func (c *Client) newRequest(ctx context.Context, method, path string, cred *Credential, body []byte, opts *RequestOptions) (*http.Request, error) {
	u := cred.InstanceURL + path
	if opts != nil && len(opts.Params) > 0 {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		u += sep + opts.Params.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "gzip")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if opts != nil {
		for key, values := range opts.Headers {
			req.Header[http.CanonicalHeaderKey(key)] = values
		}
	}
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)

	return req, nil
}

// decompressed wraps the response body in a gzip reader when the server
// compressed it. Needed because setting Accept-Encoding explicitly
// disables the transport's transparent decompression.
func decompressed(resp *http.Response) (*http.Response, error) {
	if resp.Header.Get("Content-Encoding") != "gzip" {
		return resp, nil
	}
	gz, err := gzip.NewReader(resp.Body)
	if err != nil {
		resp.Body.Close()
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Kind:       KindUnexpected,
			Message:    "invalid gzip response body",
			Err:        err,
		}
	}
	resp.Header.Del("Content-Encoding")
	resp.Body = &gzipBody{reader: gz, underlying: resp.Body}
	return resp, nil
}

type gzipBody struct {
	reader     *gzip.Reader
	underlying io.ReadCloser
}

func (b *gzipBody) Read(p []byte) (int, error) {
	return b.reader.Read(p)
}

func (b *gzipBody) Close() error {
	b.reader.Close()
	return b.underlying.Close()
}

// readBodyText reads the response body for error reporting, truncated
// to keep log and error messages bounded.
func readBodyText(resp *http.Response) string {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 8192))
	if err != nil {
		return ""
	}
	return string(data)
}

// DecodeJSON consumes and closes the response body, unmarshalling it
// into v. A malformed payload is an unexpected-response error.
func DecodeJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &APIError{
			StatusCode: resp.StatusCode,
			Kind:       KindUnexpected,
			Message:    "malformed response payload",
			Err:        err,
		}
	}
	return nil
}
