package http

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	hlog "github.com/abdul-hamid-achik/hitclient/packages/log"
)

const (
	// DefaultTimeout is the default transfer timeout applied by NewClient.
	DefaultTimeout = 30 * time.Second
	// DefaultRequestIDHeader carries the generated request id.
	DefaultRequestIDHeader = "X-Request-Id"
)

// Client is a long-lived facade over a Request builder. Defaults set on the
// client (params, headers, options) are kept by its Request and apply to
// every call.
type Client struct {
	request         *Request
	baseURL         string
	expectedType    string
	userAgent       string
	logger          *slog.Logger
	metrics         *MetricsCollector
	limiter         *rate.Limiter
	requestIDHeader string
}

type ClientOption func(*Client)

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		request: newRequest(),
		logger:  hlog.Discard(),
	}
	c.request.options.Set(OptTimeoutMS, DefaultTimeout.Milliseconds())

	for _, opt := range opts {
		opt(c)
	}

	if c.request.transport == nil {
		c.request.transport = NewNetTransport(WithTransportLogger(c.logger))
	}
	return c
}

func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.SetBaseURL(url)
	}
}

func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.SetUserAgent(ua)
	}
}

// WithExpectedType sets the response decoding hint for every call.
func WithExpectedType(t string) ClientOption {
	return func(c *Client) {
		c.Expect(t)
	}
}

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.request.options.Set(OptTimeoutMS, d.Milliseconds())
	}
}

// WithConnectTimeout bounds connection setup.
func WithConnectTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.request.options.Set(OptConnectTimeoutMS, d.Milliseconds())
	}
}

func WithFollowRedirects(follow bool) ClientOption {
	return func(c *Client) {
		c.request.options.Set(OptFollowLocation, follow)
	}
}

func WithMaxRedirects(max int) ClientOption {
	return func(c *Client) {
		c.request.options.Set(OptMaxRedirects, max)
	}
}

// WithValidateSSL enables or disables SSL certificate validation
func WithValidateSSL(validate bool) ClientOption {
	return func(c *Client) {
		c.request.options.Set(OptSSLVerifyPeer, validate)
	}
}

// WithProxy sets the proxy URL for all requests
func WithProxy(proxyURL string) ClientOption {
	return func(c *Client) {
		if proxyURL != "" {
			c.request.options.Set(OptProxy, proxyURL)
		}
	}
}

func WithDefaultHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.request.headers.Put(key, value)
	}
}

// WithDefaultHeaders sets multiple default headers for all requests
func WithDefaultHeaders(headers map[string]string) ClientOption {
	return func(c *Client) {
		c.request.headers.SetMap(headers)
	}
}

// WithDefaultParams sets params sent with every call, in sorted key order.
func WithDefaultParams(params map[string]string) ClientOption {
	return func(c *Client) {
		for _, k := range sortedKeys(params) {
			c.request.params.Set(k, params[k])
		}
	}
}

// WithTransportOption sets a raw transport option.
func WithTransportOption(opt Opt, value any) ClientOption {
	return func(c *Client) {
		c.request.options.Set(opt, value)
	}
}

// WithTransport replaces the net/http transport.
func WithTransport(t Transport) ClientOption {
	return func(c *Client) {
		if t != nil {
			c.request.transport = t
		}
	}
}

func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics records every call on mc.
func WithMetrics(mc *MetricsCollector) ClientOption {
	return func(c *Client) {
		c.metrics = mc
	}
}

// WithRateLimit waits for a token before each call.
func WithRateLimit(limit rate.Limit, burst int) ClientOption {
	return func(c *Client) {
		if limit > 0 {
			if burst < 1 {
				burst = 1
			}
			c.limiter = rate.NewLimiter(limit, burst)
		}
	}
}

// WithRequestID sends a fresh UUID in header on every call. An empty header
// selects DefaultRequestIDHeader.
func WithRequestID(header string) ClientOption {
	return func(c *Client) {
		if header = strings.TrimSpace(header); header == "" {
			header = DefaultRequestIDHeader
		}
		c.requestIDHeader = header
	}
}

func WithBasicAuth(username, password string) ClientOption {
	return func(c *Client) {
		c.request.SetBasicAuth(username, password)
	}
}

func WithDigestAuth(username, password string) ClientOption {
	return func(c *Client) {
		c.request.SetDigestAuth(username, password)
	}
}

// Request returns the underlying builder.
func (c *Client) Request() *Request { return c.request }

// SetRequest replaces the underlying builder.
func (c *Client) SetRequest(r *Request) error {
	if r == nil {
		return configError("set request", "request must not be nil", ErrNoRequest)
	}
	c.request = r
	return nil
}

// BaseURL returns the prefix joined to every call path.
func (c *Client) BaseURL() string { return c.baseURL }

// SetBaseURL sets the prefix joined to every call path. Blank values are
// ignored.
func (c *Client) SetBaseURL(url string) *Client {
	if url = strings.TrimSpace(url); url != "" {
		c.baseURL = url
	}
	return c
}

// Params returns the params kept for future calls.
func (c *Client) Params() *Params { return c.request.Params() }

// SetParams applies entries to the params kept for future calls. With no
// entries the params are reset.
func (c *Client) SetParams(entries ...Param) *Client {
	c.request.SetParams(entries...)
	return c
}

// SetParam sets one param for future calls. A nil value removes it.
func (c *Client) SetParam(key string, value any) *Client {
	c.request.SetParam(key, value)
	return c
}

// AddParams merges a raw query fragment into the params for future calls.
func (c *Client) AddParams(fragment string) *Client {
	c.request.MergeParams(fragment)
	return c
}

// Headers returns the headers kept for future calls.
func (c *Client) Headers() *HeaderStore { return c.request.Headers() }

// SetHeaders applies entries to the headers kept for future calls.
func (c *Client) SetHeaders(entries ...Header) *Client {
	c.request.SetHeaders(entries...)
	return c
}

// TransportOptions returns the transport options kept for future calls.
func (c *Client) TransportOptions() TransportOptions { return c.request.Options() }

// SetTransportOptions merges transport options for future calls.
func (c *Client) SetTransportOptions(options TransportOptions) *Client {
	c.request.SetOptions(options)
	return c
}

// UserAgent returns the user agent override, or "" when the builder's is
// used.
func (c *Client) UserAgent() string { return c.userAgent }

// SetUserAgent overrides the user agent for future calls.
func (c *Client) SetUserAgent(ua string) *Client {
	c.userAgent = strings.TrimSpace(ua)
	return c
}

// SetTimeout sets the transfer timeout in seconds. Negative values are
// ignored.
func (c *Client) SetTimeout(seconds float64) *Client {
	if seconds >= 0 {
		c.request.SetOption(OptTimeoutMS, int64(seconds*1000))
	}
	return c
}

// Files returns the attachments kept for future calls.
func (c *Client) Files() []*FileAttachment { return c.request.Files() }

// SetFiles attaches files for future calls without removing existing ones.
func (c *Client) SetFiles(entries ...FileEntry) *Client {
	c.request.SetFiles(entries...)
	return c
}

// AddFile attaches one file for future calls.
func (c *Client) AddFile(source any, postName, mimeType string) *Client {
	c.request.AddFile(source, postName, mimeType)
	return c
}

// Expect sets the response decoding hint.
func (c *Client) Expect(t string) *Client {
	c.expectedType = strings.TrimSpace(t)
	return c
}

// ExpectedType returns the response decoding hint.
func (c *Client) ExpectedType() string { return c.expectedType }

// Get performs a GET. Params are appended to the URL.
func (c *Client) Get(ctx context.Context, url string, opts ...CallOption) (*Response, error) {
	return c.Execute(ctx, url, MethodGet, opts...)
}

// Post performs a POST. Mapping params are sent as multipart/form-data and
// raw params as an urlencoded body.
func (c *Client) Post(ctx context.Context, url string, opts ...CallOption) (*Response, error) {
	return c.Execute(ctx, url, MethodPost, opts...)
}

func (c *Client) Put(ctx context.Context, url string, opts ...CallOption) (*Response, error) {
	return c.Execute(ctx, url, MethodPut, opts...)
}

func (c *Client) Patch(ctx context.Context, url string, opts ...CallOption) (*Response, error) {
	return c.Execute(ctx, url, MethodPatch, opts...)
}

func (c *Client) Delete(ctx context.Context, url string, opts ...CallOption) (*Response, error) {
	return c.Execute(ctx, url, MethodDelete, opts...)
}

func (c *Client) Head(ctx context.Context, url string, opts ...CallOption) (*Response, error) {
	return c.Execute(ctx, url, MethodHead, opts...)
}

func (c *Client) Options(ctx context.Context, url string, opts ...CallOption) (*Response, error) {
	return c.Execute(ctx, url, MethodOptions, opts...)
}

// Execute performs one call against baseURL + url.
func (c *Client) Execute(ctx context.Context, url, method string, opts ...CallOption) (*Response, error) {
	requestURL := strings.TrimSpace(url)
	if c.baseURL != "" {
		requestURL = c.baseURL + requestURL
	}
	method = normalizeMethod(method)

	if requestURL == "" {
		err := configError("execute", "empty url", ErrInvalidURL)
		c.metrics.RecordError(method, err.Kind)
		return nil, err
	}

	if c.expectedType != "" {
		c.request.Expect(c.expectedType)
	}
	if c.userAgent != "" {
		c.request.SetUserAgent(c.userAgent)
	}

	logger := c.logger
	if c.requestIDHeader != "" {
		id := uuid.NewString()
		opts = append(opts, WithHeaders(H(c.requestIDHeader, id)))
		logger = logger.With(hlog.RequestIDKey, id)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			initErr := transportInitError("rate limit", err)
			c.metrics.RecordError(method, initErr.Kind)
			return nil, initErr
		}
	}

	logger.Debug("executing request", hlog.MethodKey, method, hlog.URLKey, requestURL)

	c.metrics.RecordRequestStart(method)
	start := time.Now()
	resp, err := c.request.Execute(ctx, requestURL, method, opts...)
	duration := time.Since(start)
	c.metrics.RecordRequestEnd(method)

	if err != nil {
		var e *Error
		if errors.As(err, &e) {
			c.metrics.RecordError(method, e.Kind)
		}
		logger.Warn("request failed", hlog.MethodKey, method, hlog.URLKey, requestURL, "error", err)
		return nil, err
	}

	c.metrics.RecordResponse(method, resp, duration)
	logger.Debug("request completed",
		hlog.MethodKey, method,
		hlog.URLKey, c.request.URL(),
		hlog.StatusKey, resp.StatusCode(),
		hlog.DurationKey, duration.Milliseconds(),
		hlog.ErrnoKey, resp.Errno(),
	)
	return resp, nil
}
