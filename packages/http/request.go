package http

import (
	"context"
	"fmt"
	neturl "net/url"
	"os"
	"strconv"
	"strings"
)

// DefaultUserAgent is sent when no other user agent is configured.
const DefaultUserAgent = "hitclient"

// Method names with dedicated handling in Execute.
const (
	MethodGet     = "GET"
	MethodPost    = "POST"
	MethodPut     = "PUT"
	MethodPatch   = "PATCH"
	MethodDelete  = "DELETE"
	MethodHead    = "HEAD"
	MethodOptions = "OPTIONS"
	MethodTrace   = "TRACE"
)

const formURLEncoded = "application/x-www-form-urlencoded"

// State is the lifecycle position of a Request.
type State int

const (
	StateConfigured State = iota
	StateExecuting
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateExecuting:
		return "executing"
	case StateCompleted:
		return "completed"
	default:
		return "configured"
	}
}

// Request accumulates the URL, method, params, headers and transport
// options of a call and executes it through a Transport. State set on a
// Request persists across Execute calls until it is reset.
//
// A Request is not safe for concurrent use. Clone it to issue calls from
// several goroutines.
type Request struct {
	url           string
	effectiveURL  string
	method        string
	params        *Params
	headers       *HeaderStore
	options       TransportOptions
	userAgent     string
	expectedType  string
	transport     Transport
	beforeExecute func(*Request)
	state         State
}

// NewRequest returns a Request performing calls through t.
func NewRequest(t Transport) (*Request, error) {
	if t == nil {
		return nil, configError("new request", "a transport is required", ErrNoTransport)
	}
	r := newRequest()
	r.transport = t
	return r, nil
}

func newRequest() *Request {
	return &Request{
		method:    MethodGet,
		params:    NewParams(),
		headers:   NewHeaderStore(),
		options:   TransportOptions{},
		userAgent: DefaultUserAgent,
	}
}

// defaultOptions are applied under the caller's options on every call.
func defaultOptions() TransportOptions {
	return TransportOptions{
		OptFollowLocation: true,
		OptAutoReferer:    true,
		OptHeaderOut:      true,
	}
}

// URL returns the URL of the last call, including any query string added
// for it, or the configured URL before the first call.
func (r *Request) URL() string {
	if r.effectiveURL != "" {
		return r.effectiveURL
	}
	return r.url
}

// SetURL sets the URL used when Execute is given none.
func (r *Request) SetURL(url string) *Request {
	r.url = strings.TrimSpace(url)
	return r
}

// Method returns the configured method.
func (r *Request) Method() string { return r.method }

// SetMethod sets the method used when Execute is given none. An empty
// method selects GET.
func (r *Request) SetMethod(method string) *Request {
	r.method = normalizeMethod(method)
	return r
}

func normalizeMethod(method string) string {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		return MethodGet
	}
	return method
}

func validMethod(method string) bool {
	return IsToken(method)
}

// IsToken reports whether s is an RFC 9110 token, the syntax of method and
// header names.
func IsToken(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		case strings.ContainsRune("!#$%&'*+-.^_`|~", c):
		default:
			return false
		}
	}
	return true
}

// Params returns the parameter store.
func (r *Request) Params() *Params { return r.params }

// SetParams applies entries in order. With no entries the store is reset to
// unset.
func (r *Request) SetParams(entries ...Param) *Request {
	if len(entries) == 0 {
		r.params.Reset()
		return r
	}
	r.params.Apply(entries...)
	return r
}

// SetParam sets one key. A nil value removes it.
func (r *Request) SetParam(key string, value any) *Request {
	r.params.Set(key, value)
	return r
}

// MergeParams merges a raw query fragment, or attaches an "@path" file.
func (r *Request) MergeParams(fragment any) *Request {
	r.params.Merge(fragment)
	return r
}

// Headers returns the header store.
func (r *Request) Headers() *HeaderStore { return r.headers }

// SetHeaders applies entries in order. With no entries every header is
// removed.
func (r *Request) SetHeaders(entries ...Header) *Request {
	r.headers.Apply(entries...)
	return r
}

// SetHeader sets one header. A nil value removes it.
func (r *Request) SetHeader(name string, value any) *Request {
	r.headers.Set(name, value)
	return r
}

// AddHeader applies a "Name: Value" line.
func (r *Request) AddHeader(line string) *Request {
	r.headers.Add(line)
	return r
}

// Options returns the transport options.
func (r *Request) Options() TransportOptions { return r.options }

// SetOptions merges options. Nil values remove keys.
func (r *Request) SetOptions(options TransportOptions) *Request {
	r.options.Apply(options)
	return r
}

// SetOption sets one transport option. A nil value removes it.
func (r *Request) SetOption(opt Opt, value any) *Request {
	r.options.Set(opt, value)
	return r
}

// UserAgent returns the user agent.
func (r *Request) UserAgent() string { return r.userAgent }

// SetUserAgent sets the user agent. Blank values are ignored.
func (r *Request) SetUserAgent(ua string) *Request {
	if ua = strings.TrimSpace(ua); ua != "" {
		r.userAgent = ua
	}
	return r
}

// ExpectedType returns the response decoding hint.
func (r *Request) ExpectedType() string { return r.expectedType }

// Expect sets the response decoding hint, such as "json" or "xml".
func (r *Request) Expect(t string) *Request {
	r.expectedType = strings.ToLower(strings.TrimSpace(t))
	return r
}

// Files returns the attached files.
func (r *Request) Files() []*FileAttachment { return r.params.Files() }

// AddFile attaches a file. See Params.AddFile.
func (r *Request) AddFile(source any, postName, mimeType string) *Request {
	r.params.AddFile(source, postName, mimeType)
	return r
}

// SetFiles attaches every entry without removing existing attachments.
func (r *Request) SetFiles(entries ...FileEntry) *Request {
	r.params.SetFiles(entries...)
	return r
}

// RemoveFile drops the attachment posted under postName.
func (r *Request) RemoveFile(postName string) *Request {
	r.params.RemoveFile(postName)
	return r
}

// SetBasicAuth sends credentials with Basic authentication.
func (r *Request) SetBasicAuth(username, password string) *Request {
	r.options.Set(OptHTTPAuth, AuthBasic)
	r.options.Set(OptUserPwd, username+":"+password)
	return r
}

// SetDigestAuth answers a Digest challenge with the credentials.
func (r *Request) SetDigestAuth(username, password string) *Request {
	r.options.Set(OptHTTPAuth, AuthDigest)
	r.options.Set(OptUserPwd, username+":"+password)
	return r
}

// SetProxy tunnels calls through proxy. port is applied when positive and
// credentials when username is not empty.
func (r *Request) SetProxy(proxy string, port int, username, password string) *Request {
	r.options.Set(OptProxy, proxy)
	if port > 0 {
		r.options.Set(OptProxyPort, port)
	}
	if username != "" {
		r.options.Set(OptProxyUserPwd, username+":"+password)
	}
	return r
}

// OnBeforeExecute registers fn to run once per call, after call options are
// merged and before params are encoded into the URL or body. Changes fn makes
// to params, headers or options are part of the outgoing request.
func (r *Request) OnBeforeExecute(fn func(*Request)) *Request {
	r.beforeExecute = fn
	return r
}

// Transport returns the transport.
func (r *Request) Transport() Transport { return r.transport }

// SetTransport replaces the transport.
func (r *Request) SetTransport(t Transport) error {
	if t == nil {
		return configError("set transport", "a transport is required", ErrNoTransport)
	}
	r.transport = t
	return nil
}

// State returns the lifecycle state.
func (r *Request) State() State { return r.state }

// Clone returns an independent copy in the configured state.
func (r *Request) Clone() *Request {
	return &Request{
		url:           r.url,
		method:        r.method,
		params:        r.params.Clone(),
		headers:       r.headers.Clone(),
		options:       r.options.Clone(),
		userAgent:     r.userAgent,
		expectedType:  r.expectedType,
		transport:     r.transport,
		beforeExecute: r.beforeExecute,
	}
}

// CallOption adds per-call params, headers or transport options. They are
// merged into the Request and persist after the call.
type CallOption func(*callConfig)

type callConfig struct {
	params  []Param
	headers []Header
	options TransportOptions
}

// WithParams merges entries into the params for this call.
func WithParams(entries ...Param) CallOption {
	return func(c *callConfig) {
		c.params = append(c.params, entries...)
	}
}

// WithQuery merges a raw query fragment into the params for this call.
func WithQuery(fragment string) CallOption {
	return func(c *callConfig) {
		if fragment != "" {
			c.params = append(c.params, Fragment(fragment))
		}
	}
}

// WithHeaders merges entries into the headers for this call.
func WithHeaders(entries ...Header) CallOption {
	return func(c *callConfig) {
		c.headers = append(c.headers, entries...)
	}
}

// WithTransportOptions merges options for this call.
func WithTransportOptions(options TransportOptions) CallOption {
	return func(c *callConfig) {
		if c.options == nil {
			c.options = TransportOptions{}
		}
		c.options.Apply(options)
	}
}

// Execute performs one call. An empty rawURL or method falls back to the
// configured one.
//
// Configuration problems and transports that cannot start return an
// *Error. Transfer failures are reported on the Response.
func (r *Request) Execute(ctx context.Context, rawURL, method string, opts ...CallOption) (*Response, error) {
	if rawURL = strings.TrimSpace(rawURL); rawURL != "" {
		r.url = rawURL
	}
	if strings.TrimSpace(method) != "" {
		r.SetMethod(method)
	}

	if r.url == "" {
		return nil, configError("execute", "empty url", ErrInvalidURL)
	}
	if err := ValidateURL(r.url); err != nil {
		return nil, configError("execute", err.Error(), ErrInvalidURL)
	}
	if !validMethod(r.method) {
		return nil, configError("execute", fmt.Sprintf("method %q is not a valid token", r.method), ErrInvalidMethod)
	}
	if r.transport == nil {
		return nil, configError("execute", "a transport is required", ErrNoTransport)
	}

	var call callConfig
	for _, opt := range opts {
		opt(&call)
	}
	if len(call.params) > 0 {
		r.params.Apply(call.params...)
	}
	if len(call.headers) > 0 {
		r.headers.Apply(call.headers...)
	}
	if len(call.options) > 0 {
		r.options.Apply(call.options)
	}

	if r.beforeExecute != nil {
		r.beforeExecute(r)
	}

	prepared, release, err := r.prepare()
	if err != nil {
		return nil, err
	}
	defer release()

	r.state = StateExecuting
	r.effectiveURL = prepared.URL
	result, err := r.transport.Perform(ctx, prepared)
	r.state = StateCompleted
	if err != nil {
		return nil, transportInitError("execute", err)
	}
	return NewResponse(result, r.expectedType), nil
}

// prepare encodes the call for the transport. release closes any file
// opened for a multipart body and must be called once the transport
// returns.
func (r *Request) prepare() (*Prepared, func(), error) {
	options := defaultOptions()
	options.Apply(r.options)
	if !options.Has(OptUserAgent) {
		options.Set(OptUserAgent, r.userAgent)
	}

	headers := r.headers.Clone()
	p := &Prepared{
		URL:       r.url,
		Method:    r.method,
		Options:   options,
		UserAgent: r.userAgent,
	}
	release := func() {}

	switch r.method {
	case MethodGet, MethodHead, MethodDelete, MethodOptions, MethodTrace:
		if query := r.params.Encode(); query != "" {
			p.URL = appendQuery(p.URL, query)
		}
		p.NoBody = r.method == MethodHead

	case MethodPost:
		if r.params.Mode() == ParamsMapping {
			form, closeFiles, err := openForm(r.params)
			if err != nil {
				return nil, nil, err
			}
			p.Form = form
			release = closeFiles
			break
		}
		body := r.params.Encode()
		p.Body = []byte(body)
		headers.Set("Content-Type", formURLEncoded)
		headers.Set("Content-Length", strconv.Itoa(len(body)))

	default:
		headers.Set("Content-Type", formURLEncoded)
		p.Body = []byte(r.params.Encode())
		p.CustomMethod = r.method
	}

	p.Headers = headers.Lines()
	return p, release, nil
}

func appendQuery(url, query string) string {
	if strings.Contains(url, "?") {
		return url + "&" + query
	}
	return url + "?" + query
}

// openForm turns mapping params into multipart fields, opening every
// attached file. On failure the files opened so far are closed.
func openForm(params *Params) ([]FormField, func(), error) {
	var opened []*os.File
	closeAll := func() {
		for _, f := range opened {
			f.Close()
		}
	}

	fields := params.Fields()
	form := make([]FormField, 0, len(fields))
	for _, f := range fields {
		if !f.IsFile() {
			form = append(form, FormField{Name: f.Key, Value: f.Value})
			continue
		}
		file, err := os.Open(f.File.Path)
		if err != nil {
			closeAll()
			return nil, nil, configError("execute", "cannot open "+f.File.Path, fmt.Errorf("%w: %w", ErrFileUnavailable, err))
		}
		opened = append(opened, file)
		form = append(form, FormField{Name: f.Key, File: f.File, Content: file})
	}
	return form, closeAll, nil
}

// ValidateURL checks that a URL is well-formed and uses an allowed scheme
func ValidateURL(rawURL string) error {
	u, err := neturl.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %v", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported URL scheme: %s (only http and https are allowed)", u.Scheme)
	}

	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}

	return nil
}
