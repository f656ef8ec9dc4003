package http

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net"
	"net/http"
	neturl "net/url"
	"net/textproto"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultMaxRedirects is the maximum number of redirects to follow
	// when OptMaxRedirects is unset.
	DefaultMaxRedirects = 10
	// DefaultMaxIdleConns is the maximum number of idle connections in the pool
	DefaultMaxIdleConns = 100
	// DefaultMaxIdleConnsPerHost is the maximum number of idle connections per host
	DefaultMaxIdleConnsPerHost = 10
	// DefaultIdleConnTimeout is how long idle connections stay in the pool
	DefaultIdleConnTimeout = 90 * time.Second
)

// Transport performs a single prepared call. A returned error means the call
// could not be started at all. Failures once the transfer is under way are
// reported through Result.Info.
type Transport interface {
	Perform(ctx context.Context, p *Prepared) (*Result, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, p *Prepared) (*Result, error)

// Perform calls f.
func (f TransportFunc) Perform(ctx context.Context, p *Prepared) (*Result, error) {
	return f(ctx, p)
}

// FormField is one multipart field. Content is set for file fields and is
// owned by the caller of Perform.
type FormField struct {
	Name    string
	Value   string
	File    *FileAttachment
	Content io.Reader
}

// Prepared is a fully encoded call handed to a Transport.
type Prepared struct {
	URL    string
	Method string
	// CustomMethod is set for methods sent with an explicit verb override.
	CustomMethod string
	Body         []byte
	// Form is non-nil when the body must be encoded as multipart/form-data.
	Form      []FormField
	Headers   []string
	Options   TransportOptions
	UserAgent string
	NoBody    bool
}

// Verb returns the method written on the wire.
func (p *Prepared) Verb() string {
	if p.CustomMethod != "" {
		return p.CustomMethod
	}
	return p.Method
}

// Result is the raw outcome of a transfer.
type Result struct {
	// Raw holds the response header block, a blank line, then the body.
	Raw  []byte
	Info Info
}

// Info is transfer metadata.
type Info struct {
	URL           string        `json:"url"`
	HTTPCode      int           `json:"http_code"`
	HeaderSize    int           `json:"header_size"`
	ContentType   string        `json:"content_type"`
	Error         string        `json:"error,omitempty"`
	Errno         int           `json:"errno"`
	RequestSize   int           `json:"request_size"`
	TotalTime     time.Duration `json:"total_time"`
	RedirectCount int           `json:"redirect_count"`
	RequestHeader string        `json:"request_header,omitempty"`
}

var errTooManyRedirects = errors.New("maximum redirects followed")

// NetTransport performs calls with net/http. Connections are pooled across
// calls unless an option requires a dedicated transport (TLS verification,
// proxy or connect timeout).
type NetTransport struct {
	base   *http.Transport
	logger *slog.Logger
}

// NetTransportOption configures a NetTransport.
type NetTransportOption func(*NetTransport)

// WithTransportLogger sets the logger used when OptVerbose is on.
func WithTransportLogger(logger *slog.Logger) NetTransportOption {
	return func(t *NetTransport) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithBaseTransport replaces the pooled http.Transport.
func WithBaseTransport(base *http.Transport) NetTransportOption {
	return func(t *NetTransport) {
		if base != nil {
			t.base = base
		}
	}
}

// NewNetTransport returns a transport backed by a pooled http.Transport.
func NewNetTransport(opts ...NetTransportOption) *NetTransport {
	t := &NetTransport{
		base: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        DefaultMaxIdleConns,
			MaxIdleConnsPerHost: DefaultMaxIdleConnsPerHost,
			IdleConnTimeout:     DefaultIdleConnTimeout,
			ForceAttemptHTTP2:   true,
		},
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// CloseIdleConnections closes pooled connections.
func (t *NetTransport) CloseIdleConnections() {
	t.base.CloseIdleConnections()
}

// Perform implements Transport.
func (t *NetTransport) Perform(ctx context.Context, p *Prepared) (*Result, error) {
	opts := p.Options
	if opts == nil {
		opts = TransportOptions{}
	}

	target, err := neturl.Parse(p.URL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if port := opts.Int(OptPort, 0); port > 0 {
		target.Host = net.JoinHostPort(target.Hostname(), strconv.FormatInt(port, 10))
	}

	body, contentType, err := encodeBody(p)
	if err != nil {
		return nil, err
	}

	rt, dedicated, err := t.roundTripper(opts)
	if err != nil {
		return nil, err
	}
	if dedicated {
		defer rt.CloseIdleConnections()
	}

	redirects := 0
	client := &http.Client{
		Transport:     rt,
		Timeout:       opts.Duration(OptTimeoutMS),
		CheckRedirect: redirectPolicy(opts, &redirects),
	}

	build := func(authorization string) (*http.Request, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, p.Verb(), target.String(), reader)
		if err != nil {
			return nil, err
		}
		applyHeaders(req, p, opts, contentType)
		if authorization == "" && opts.Has(OptAWSSigV4) {
			scope, err := ParseSigV4Scope(opts.Text(OptAWSSigV4), req.URL.Hostname())
			if err != nil {
				return nil, err
			}
			authorization, err = SignSigV4(req, body, scope, opts.Text(OptUserPwd), time.Now())
			if err != nil {
				return nil, err
			}
		}
		if authorization != "" {
			req.Header.Set("Authorization", authorization)
		}
		return req, nil
	}

	req, err := build("")
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err == nil && resp.StatusCode == http.StatusUnauthorized && AuthScheme(opts.Int(OptHTTPAuth, 0)) == AuthDigest {
		if challenge := resp.Header.Get("WWW-Authenticate"); strings.HasPrefix(challenge, "Digest ") {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()

			retry, buildErr := digestRetry(req, challenge, opts.Text(OptUserPwd), build)
			if buildErr != nil {
				return nil, buildErr
			}
			req = retry
			resp, err = client.Do(req)
		}
	}

	result := &Result{Info: Info{URL: target.String()}}
	if err != nil {
		result.Info.Errno = transferErrno(err)
		result.Info.Error = err.Error()
		result.Info.TotalTime = time.Since(start)
		result.Info.RedirectCount = redirects
		if opts.Bool(OptHeaderOut, false) {
			result.Info.RequestHeader = requestHeaderBlock(req)
		}
		result.Info.RequestSize = len(requestHeaderBlock(req))
		t.logExchange(opts, p, result)
		return result, nil
	}
	defer resp.Body.Close()

	var payload []byte
	var readErr error
	if !p.NoBody {
		payload, readErr = readBody(resp, opts)
	}
	result.Info.TotalTime = time.Since(start)
	if readErr != nil {
		result.Info.Errno = transferErrno(readErr)
		result.Info.Error = readErr.Error()
	}

	head := responseHeaderBlock(resp)
	result.Raw = append([]byte(head), payload...)
	result.Info.HeaderSize = len(head)
	result.Info.HTTPCode = resp.StatusCode
	result.Info.ContentType = resp.Header.Get("Content-Type")
	result.Info.RedirectCount = redirects
	if resp.Request != nil {
		req = resp.Request
		result.Info.URL = req.URL.String()
	}
	sent := requestHeaderBlock(req)
	result.Info.RequestSize = len(sent)
	if opts.Bool(OptHeaderOut, false) {
		result.Info.RequestHeader = sent
	}

	t.logExchange(opts, p, result)
	return result, nil
}

// roundTripper returns the pooled transport, or a dedicated clone when an
// option changes connection setup.
func (t *NetTransport) roundTripper(opts TransportOptions) (*http.Transport, bool, error) {
	if opts.Bool(OptSSLVerifyPeer, true) && !opts.Has(OptProxy) && !opts.Has(OptConnectTimeoutMS) {
		return t.base, false, nil
	}

	rt := t.base.Clone()
	if !opts.Bool(OptSSLVerifyPeer, true) {
		if rt.TLSClientConfig == nil {
			rt.TLSClientConfig = &tls.Config{}
		}
		rt.TLSClientConfig.InsecureSkipVerify = true
	}

	proxy, err := proxyURL(opts)
	if err != nil {
		return nil, false, err
	}
	if proxy != nil {
		rt.Proxy = http.ProxyURL(proxy)
	}

	if timeout := opts.Duration(OptConnectTimeoutMS); timeout > 0 {
		dialer := &net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}
		rt.DialContext = dialer.DialContext
		rt.TLSHandshakeTimeout = timeout
	}
	return rt, true, nil
}

func proxyURL(opts TransportOptions) (*neturl.URL, error) {
	host := strings.TrimSpace(opts.Text(OptProxy))
	if host == "" {
		return nil, nil
	}
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	u, err := neturl.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("parse proxy: %w", err)
	}
	if port := opts.Int(OptProxyPort, 0); port > 0 {
		u.Host = net.JoinHostPort(u.Hostname(), strconv.FormatInt(port, 10))
	}
	if creds := opts.Text(OptProxyUserPwd); creds != "" {
		user, pass, _ := strings.Cut(creds, ":")
		u.User = neturl.UserPassword(user, pass)
	}
	return u, nil
}

func redirectPolicy(opts TransportOptions, count *int) func(*http.Request, []*http.Request) error {
	follow := opts.Bool(OptFollowLocation, false)
	limit := int(opts.Int(OptMaxRedirects, DefaultMaxRedirects))
	autoReferer := opts.Bool(OptAutoReferer, false)

	return func(req *http.Request, via []*http.Request) error {
		if !follow {
			return http.ErrUseLastResponse
		}
		if limit >= 0 && len(via) > limit {
			return errTooManyRedirects
		}
		*count = len(via)
		if autoReferer && len(via) > 0 {
			req.Header.Set("Referer", via[len(via)-1].URL.String())
		}
		return nil
	}
}

func applyHeaders(req *http.Request, p *Prepared, opts TransportOptions, contentType string) {
	for _, line := range p.Headers {
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		if name == "" {
			continue
		}
		if strings.EqualFold(name, "Host") {
			req.Host = value
			continue
		}
		req.Header.Set(name, value)
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	if req.Header.Get("User-Agent") == "" {
		ua := opts.Text(OptUserAgent)
		if ua == "" {
			ua = p.UserAgent
		}
		if ua != "" {
			req.Header.Set("User-Agent", ua)
		}
	}
	if referer := opts.Text(OptReferer); referer != "" && req.Header.Get("Referer") == "" {
		req.Header.Set("Referer", referer)
	}
	if enc := opts.Text(OptEncoding); enc != "" {
		req.Header.Set("Accept-Encoding", enc)
	}

	if AuthScheme(opts.Int(OptHTTPAuth, 0)) == AuthBasic {
		if creds := opts.Text(OptUserPwd); creds != "" {
			user, pass, _ := strings.Cut(creds, ":")
			req.SetBasicAuth(user, pass)
		}
	}
}

func digestRetry(req *http.Request, challenge, creds string, build func(string) (*http.Request, error)) (*http.Request, error) {
	user, pass, _ := strings.Cut(creds, ":")
	params := ParseWWWAuthenticate(challenge)

	auth := &DigestAuth{
		Username:  user,
		Password:  pass,
		Realm:     params["realm"],
		Nonce:     params["nonce"],
		URI:       req.URL.RequestURI(),
		Qop:       params["qop"],
		Opaque:    params["opaque"],
		Method:    req.Method,
		Algorithm: params["algorithm"],
	}
	if auth.Qop != "" {
		auth.Nc = "00000001"
		cnonce, err := GenerateCnonce()
		if err != nil {
			return nil, err
		}
		auth.Cnonce = cnonce
		if strings.Contains(auth.Qop, "auth") {
			auth.Qop = "auth"
		}
	}
	return build(auth.BuildAuthorizationHeader())
}

// encodeBody returns the request body and, for multipart bodies, the
// Content-Type carrying the boundary.
func encodeBody(p *Prepared) ([]byte, string, error) {
	if p.Form != nil {
		buf, contentType, err := BuildMultipartBody(p.Form)
		if err != nil {
			return nil, "", err
		}
		return buf.Bytes(), contentType, nil
	}
	if p.Body == nil {
		return nil, "", nil
	}
	return p.Body, "", nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// BuildMultipartBody creates a multipart/form-data body from form fields.
// File fields are copied from their Content reader.
func BuildMultipartBody(fields []FormField) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for _, field := range fields {
		if field.File == nil {
			if err := writer.WriteField(field.Name, field.Value); err != nil {
				return nil, "", err
			}
			continue
		}
		if field.Content == nil {
			return nil, "", fmt.Errorf("file field %q has no content", field.Name)
		}

		mimeType := field.File.MimeType
		if mimeType == "" {
			mimeType = mime.TypeByExtension(filepath.Ext(field.File.Path))
		}
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}

		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			quoteEscaper.Replace(field.Name), quoteEscaper.Replace(filepath.Base(field.File.Path))))
		h.Set("Content-Type", mimeType)

		part, err := writer.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := io.Copy(part, field.Content); err != nil {
			return nil, "", err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return body, writer.FormDataContentType(), nil
}

func readBody(resp *http.Response, opts TransportOptions) ([]byte, error) {
	limit := opts.Int(OptMaxFileSize, 0)
	if limit > 0 && resp.ContentLength > limit {
		return nil, errFileSizeExceeded
	}

	var reader io.Reader = resp.Body
	if opts.Text(OptEncoding) != "" && strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		reader = gz
	}
	if limit > 0 {
		reader = io.LimitReader(reader, limit+1)
	}

	payload, err := io.ReadAll(reader)
	if err != nil {
		return payload, err
	}
	if limit > 0 && int64(len(payload)) > limit {
		return payload[:limit], errFileSizeExceeded
	}
	return payload, nil
}

var errFileSizeExceeded = errors.New("maximum file size exceeded")

// responseHeaderBlock renders the status line and headers as they would
// appear on the wire, terminated by a blank line.
func responseHeaderBlock(resp *http.Response) string {
	var b strings.Builder
	proto := resp.Proto
	if proto == "" {
		proto = "HTTP/1.1"
	}
	b.WriteString(proto + " " + resp.Status + "\r\n")
	_ = resp.Header.Write(&b)
	b.WriteString("\r\n")
	return b.String()
}

// requestHeaderBlock renders the outgoing request line and headers.
func requestHeaderBlock(req *http.Request) string {
	if req == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(req.Method + " " + req.URL.RequestURI() + " HTTP/1.1\r\n")
	host := req.Host
	if host == "" {
		host = req.URL.Host
	}
	b.WriteString("Host: " + host + "\r\n")

	names := make([]string, 0, len(req.Header))
	for name := range req.Header {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, v := range req.Header[name] {
			b.WriteString(name + ": " + v + "\r\n")
		}
	}
	if req.ContentLength > 0 {
		b.WriteString("Content-Length: " + strconv.FormatInt(req.ContentLength, 10) + "\r\n")
	}
	b.WriteString("\r\n")
	return b.String()
}

// transferErrno maps a transfer failure to its libcurl code.
func transferErrno(err error) int {
	switch {
	case errors.Is(err, errTooManyRedirects):
		return ErrnoTooManyRedirects
	case errors.Is(err, errFileSizeExceeded):
		return ErrnoFileSizeExceeded
	case errors.Is(err, context.Canceled):
		return ErrnoAborted
	case errors.Is(err, context.DeadlineExceeded):
		return ErrnoTimedOut
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrnoTimedOut
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ErrnoCouldNotResolveHost
	}

	var unknownAuthority x509.UnknownAuthorityError
	var hostnameErr x509.HostnameError
	var certInvalid x509.CertificateInvalidError
	var verifyErr *tls.CertificateVerificationError
	if errors.As(err, &unknownAuthority) || errors.As(err, &hostnameErr) ||
		errors.As(err, &certInvalid) || errors.As(err, &verifyErr) {
		return ErrnoPeerCertificate
	}

	var recordErr tls.RecordHeaderError
	if errors.As(err, &recordErr) {
		return ErrnoSSLConnect
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		switch opErr.Op {
		case "dial":
			return ErrnoCouldNotConnect
		case "write":
			return ErrnoSendError
		}
		return ErrnoRecv
	}

	if strings.Contains(err.Error(), "unsupported protocol scheme") {
		return ErrnoUnsupportedProtocol
	}
	return ErrnoRecv
}

func (t *NetTransport) logExchange(opts TransportOptions, p *Prepared, result *Result) {
	if !opts.Bool(OptVerbose, false) {
		return
	}
	t.logger.Info("http exchange",
		slog.String("method", p.Verb()),
		slog.String("url", result.Info.URL),
		slog.Int("status", result.Info.HTTPCode),
		slog.Int64("duration_ms", result.Info.TotalTime.Milliseconds()),
		slog.Int("errno", result.Info.Errno),
		slog.Int("redirects", result.Info.RedirectCount),
	)
}
