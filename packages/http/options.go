package http

import (
	"sort"
	"strings"
	"time"
)

// Opt identifies a transport option. The set of options is closed: values
// outside the declared constants are ignored by the setters.
type Opt int

const (
	// OptTimeoutMS bounds the whole transfer, in milliseconds.
	OptTimeoutMS Opt = iota + 1
	// OptConnectTimeoutMS bounds connection setup, in milliseconds.
	OptConnectTimeoutMS
	// OptFollowLocation follows 3xx redirects when true.
	OptFollowLocation
	// OptMaxRedirects caps followed redirects.
	OptMaxRedirects
	// OptAutoReferer sets Referer when following a redirect.
	OptAutoReferer
	// OptReferer sets the Referer header.
	OptReferer
	// OptProxy is the proxy host, optionally with scheme and port.
	OptProxy
	// OptProxyPort overrides the proxy port.
	OptProxyPort
	// OptProxyUserPwd holds "user:password" for the proxy.
	OptProxyUserPwd
	// OptSSLVerifyPeer disables certificate verification when false.
	OptSSLVerifyPeer
	// OptHTTPAuth selects the AuthScheme used with OptUserPwd.
	OptHTTPAuth
	// OptUserPwd holds "user:password" for server authentication.
	OptUserPwd
	// OptUserAgent sets the User-Agent header.
	OptUserAgent
	// OptHeaderOut records the outgoing header block on the response.
	OptHeaderOut
	// OptPort overrides the port of the request URL.
	OptPort
	// OptMaxFileSize rejects response bodies larger than this many bytes.
	OptMaxFileSize
	// OptVerbose asks the transport to log each exchange.
	OptVerbose
	// OptEncoding sets Accept-Encoding; the transport decodes gzip itself.
	OptEncoding
	// OptAWSSigV4 signs requests with AWS Signature Version 4. The value is
	// "provider1[:provider2[:region[:service]]]" and OptUserPwd holds
	// "access_key:secret_key".
	OptAWSSigV4

	optSentinel
)

var optNames = map[Opt]string{
	OptTimeoutMS:        "timeout_ms",
	OptConnectTimeoutMS: "connect_timeout_ms",
	OptFollowLocation:   "follow_location",
	OptMaxRedirects:     "max_redirects",
	OptAutoReferer:      "auto_referer",
	OptReferer:          "referer",
	OptProxy:            "proxy",
	OptProxyPort:        "proxy_port",
	OptProxyUserPwd:     "proxy_userpwd",
	OptSSLVerifyPeer:    "ssl_verify_peer",
	OptHTTPAuth:         "http_auth",
	OptUserPwd:          "userpwd",
	OptUserAgent:        "user_agent",
	OptHeaderOut:        "header_out",
	OptPort:             "port",
	OptMaxFileSize:      "max_file_size",
	OptVerbose:          "verbose",
	OptEncoding:         "encoding",
	OptAWSSigV4:         "aws_sigv4",
}

// Valid reports whether o is a declared option.
func (o Opt) Valid() bool {
	return o > 0 && o < optSentinel
}

func (o Opt) String() string {
	if name, ok := optNames[o]; ok {
		return name
	}
	return "unknown"
}

// ParseOpt resolves an option from its name, as used in config files.
func ParseOpt(name string) (Opt, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for o, n := range optNames {
		if n == name {
			return o, true
		}
	}
	return 0, false
}

// AuthScheme is the value type of OptHTTPAuth.
type AuthScheme int

const (
	AuthNone AuthScheme = iota
	AuthBasic
	AuthDigest
)

// TransportOptions maps option keys to opaque values.
type TransportOptions map[Opt]any

// Set stores value under opt, or removes opt when value is nil. Undeclared
// options are ignored.
func (o TransportOptions) Set(opt Opt, value any) {
	if !opt.Valid() {
		return
	}
	if value == nil {
		delete(o, opt)
		return
	}
	o[opt] = value
}

// Apply merges options into o using Set semantics.
func (o TransportOptions) Apply(options TransportOptions) {
	for opt, value := range options {
		o.Set(opt, value)
	}
}

// Reset removes every option.
func (o TransportOptions) Reset() {
	for opt := range o {
		delete(o, opt)
	}
}

// Has reports whether opt is set.
func (o TransportOptions) Has(opt Opt) bool {
	_, ok := o[opt]
	return ok
}

// Clone returns a shallow copy.
func (o TransportOptions) Clone() TransportOptions {
	c := make(TransportOptions, len(o))
	for opt, value := range o {
		c[opt] = value
	}
	return c
}

// Text returns the option as a string, or "" when unset.
func (o TransportOptions) Text(opt Opt) string {
	v, ok := o[opt]
	if !ok {
		return ""
	}
	return formatScalar(v)
}

// Bool returns the option as a bool. Non-zero numbers count as true.
func (o TransportOptions) Bool(opt Opt, def bool) bool {
	v, ok := o[opt]
	if !ok {
		return def
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return b != "" && b != "0" && !strings.EqualFold(b, "false")
	default:
		n, ok := toInt64(v)
		if !ok {
			return def
		}
		return n != 0
	}
}

// Int returns the option as an int64.
func (o TransportOptions) Int(opt Opt, def int64) int64 {
	v, ok := o[opt]
	if !ok {
		return def
	}
	n, ok := toInt64(v)
	if !ok {
		return def
	}
	return n
}

// Duration reads a millisecond option as a time.Duration.
func (o TransportOptions) Duration(opt Opt) time.Duration {
	return time.Duration(o.Int(opt, 0)) * time.Millisecond
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case float32:
		return int64(n), true
	case float64:
		return int64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case AuthScheme:
		return int64(n), true
	case time.Duration:
		return n.Milliseconds(), true
	}
	return 0, false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
