package webclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"dropindex/internal/config"
	"dropindex/internal/services"
)

const (
	defaultTimeout      = 10 * time.Second
	defaultMaxBodyBytes = 20 << 20
	maxErrorSnippet     = 256
)

// Doer is the subset of *http.Client the Client needs.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Options configures a Client.
type Options struct {
	// Name labels errors and log lines, e.g. "bing" or "images".
	Name string
	// Timeout bounds each request, including reading the body.
	Timeout time.Duration
	// RequestsPerSecond limits request starts; zero or less disables limiting.
	RequestsPerSecond float64
	Burst             int
	UserAgent         string
	MaxBodyBytes      int64
	Doer              Doer
}

// Client performs rate-limited GET requests.
type Client struct {
	name      string
	doer      Doer
	limiter   *rate.Limiter
	timeout   time.Duration
	userAgent string
	maxBody   int64
}

// New constructs a Client from opts.
func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}
	doer := opts.Doer
	if doer == nil {
		doer = &http.Client{}
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		name = "http"
	}
	return &Client{
		name:      name,
		doer:      doer,
		limiter:   limiter,
		timeout:   timeout,
		userAgent: strings.TrimSpace(opts.UserAgent),
		maxBody:   maxBody,
	}
}

// FromConfig builds a named Client using the network section of cfg.
func FromConfig(cfg *config.Config, name string, doer Doer) *Client {
	opts := Options{Name: name, Doer: doer}
	if cfg != nil {
		opts.Timeout = cfg.NetworkTimeout()
		opts.RequestsPerSecond = cfg.Network.RequestsPerSecond
		opts.UserAgent = cfg.Network.UserAgent
	}
	return New(opts)
}

// Name returns the label used in errors.
func (c *Client) Name() string {
	return c.name
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
	URL         string
}

// StatusError reports a non-2xx response.
type StatusError struct {
	Client     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: GET %s: http %d: %s", e.Client, e.URL, e.StatusCode, strings.TrimSpace(e.Body))
}

// Unwrap classifies 404 and 410 as not found and every other status as transient.
func (e *StatusError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound || e.StatusCode == http.StatusGone {
		return services.ErrNotFound
	}
	return services.ErrTransient
}

// Get fetches rawURL with query appended. The body is read in full, capped
// at the configured size.
func (c *Client) Get(ctx context.Context, rawURL string, query url.Values, header http.Header) (*Response, error) {
	target, err := withQuery(rawURL, query)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, c.name, "build url", rawURL, err)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, services.Wrap(services.ErrTransient, c.name, "rate limit", "", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, target, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, c.name, "build request", redact(target), err)
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if c.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, classifyTransport(c.name, redact(target), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, classifyTransport(c.name, redact(target), err)
	}
	if int64(len(body)) > c.maxBody {
		return nil, services.Wrap(services.ErrTransient, c.name, "read body", fmt.Sprintf("response exceeds %d bytes", c.maxBody), nil)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := string(body)
		if len(snippet) > maxErrorSnippet {
			snippet = snippet[:maxErrorSnippet]
		}
		return nil, &StatusError{Client: c.name, URL: redact(target), StatusCode: resp.StatusCode, Body: snippet}
	}

	finalURL := target
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	return &Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
		URL:         finalURL,
	}, nil
}

// GetJSON fetches rawURL and decodes the JSON body into dst.
func (c *Client) GetJSON(ctx context.Context, rawURL string, query url.Values, header http.Header, dst any) error {
	if header == nil {
		header = http.Header{}
	}
	if header.Get("Accept") == "" {
		header.Set("Accept", "application/json")
	}
	resp, err := c.Get(ctx, rawURL, query, header)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body, dst); err != nil {
		return services.Wrap(services.ErrTransient, c.name, "decode json", "", err)
	}
	return nil
}

func withQuery(rawURL string, query url.Values) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}
	if len(query) > 0 {
		merged := parsed.Query()
		for key, values := range query {
			for _, v := range values {
				merged.Add(key, v)
			}
		}
		parsed.RawQuery = merged.Encode()
	}
	return parsed.String(), nil
}

func classifyTransport(name, target string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTransient, name, "GET "+target, "timed out", errors.Join(services.ErrTimeout, err))
	}
	return services.Wrap(services.ErrTransient, name, "GET "+target, "", err)
}

// redact hides credential query parameters from error messages.
func redact(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := parsed.Query()
	changed := false
	for key := range q {
		switch strings.ToLower(key) {
		case "key", "api_key", "apikey", "token", "access_token":
			q.Set(key, "REDACTED")
			changed = true
		}
	}
	if changed {
		parsed.RawQuery = q.Encode()
	}
	return parsed.String()
}
