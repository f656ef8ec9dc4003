package http

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

// SigV4Scope names the signing scope used by OptAWSSigV4.
type SigV4Scope struct {
	Provider1 string
	Provider2 string
	Region    string
	Service   string
}

// Algorithm returns the signature algorithm name, e.g. "AWS4-HMAC-SHA256".
func (s SigV4Scope) Algorithm() string {
	return strings.ToUpper(s.Provider1) + "4-HMAC-SHA256"
}

func (s SigV4Scope) terminator() string {
	return strings.ToLower(s.Provider1) + "4_request"
}

func (s SigV4Scope) headerPrefix() string {
	return "x-" + strings.ToLower(s.Provider2)
}

// ParseSigV4Scope parses "provider1[:provider2[:region[:service]]]". Missing
// region and service are taken from a "service.region.domain" host.
func ParseSigV4Scope(value, host string) (SigV4Scope, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) > 4 || parts[0] == "" {
		return SigV4Scope{}, fmt.Errorf("invalid aws_sigv4 value %q", value)
	}

	scope := SigV4Scope{Provider1: parts[0], Provider2: parts[0]}
	if len(parts) > 1 && parts[1] != "" {
		scope.Provider2 = parts[1]
	}
	if len(parts) > 2 {
		scope.Region = parts[2]
	}
	if len(parts) > 3 {
		scope.Service = parts[3]
	}

	labels := strings.Split(host, ".")
	if scope.Service == "" {
		if len(labels) < 3 {
			return SigV4Scope{}, fmt.Errorf("cannot derive service from host %q", host)
		}
		scope.Service = labels[0]
	}
	if scope.Region == "" {
		if len(labels) < 3 {
			return SigV4Scope{}, fmt.Errorf("cannot derive region from host %q", host)
		}
		scope.Region = labels[1]
	}
	return scope, nil
}

// SignSigV4 signs req with Signature Version 4 and returns the Authorization
// header value. It sets the date and content hash headers on req.
func SignSigV4(req *http.Request, body []byte, scope SigV4Scope, creds string, now time.Time) (string, error) {
	accessKey, secretKey, ok := strings.Cut(creds, ":")
	if !ok || accessKey == "" {
		return "", fmt.Errorf("aws_sigv4 requires userpwd as access_key:secret_key")
	}

	now = now.UTC()
	stamp := now.Format("20060102T150405Z")
	day := now.Format("20060102")
	prefix := scope.headerPrefix()

	payloadHash := sha256Hex(body)
	req.Header.Set(prefix+"-date", stamp)
	req.Header.Set(prefix+"-content-sha256", payloadHash)

	host := req.Host
	if host == "" {
		host = req.URL.Host
	}

	names := []string{"host"}
	values := map[string]string{"host": host}
	for name, vals := range req.Header {
		lower := strings.ToLower(name)
		if lower == "content-type" || strings.HasPrefix(lower, prefix+"-") {
			names = append(names, lower)
			values[lower] = strings.Join(vals, ",")
		}
	}
	sort.Strings(names)

	var canonicalHeaders strings.Builder
	for _, name := range names {
		canonicalHeaders.WriteString(name + ":" + strings.TrimSpace(values[name]) + "\n")
	}
	signedHeaders := strings.Join(names, ";")

	path := req.URL.EscapedPath()
	if path == "" {
		path = "/"
	}

	canonicalRequest := strings.Join([]string{
		req.Method,
		path,
		canonicalQuery(req.URL.Query()),
		canonicalHeaders.String(),
		signedHeaders,
		payloadHash,
	}, "\n")

	credentialScope := strings.Join([]string{day, scope.Region, scope.Service, scope.terminator()}, "/")
	stringToSign := strings.Join([]string{
		scope.Algorithm(),
		stamp,
		credentialScope,
		sha256Hex([]byte(canonicalRequest)),
	}, "\n")

	key := signingKey(strings.ToUpper(scope.Provider1), secretKey, day, scope.Region, scope.Service, scope.terminator())
	signature := hex.EncodeToString(hmacSHA256(key, stringToSign))

	return fmt.Sprintf("%s Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		scope.Algorithm(), accessKey, credentialScope, signedHeaders, signature), nil
}

func canonicalQuery(values url.Values) string {
	if len(values) == 0 {
		return ""
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var pairs []string
	for _, k := range keys {
		vals := append([]string(nil), values[k]...)
		sort.Strings(vals)
		for _, v := range vals {
			pairs = append(pairs, sigV4Escape(k)+"="+sigV4Escape(v))
		}
	}
	return strings.Join(pairs, "&")
}

// sigV4Escape percent-encodes everything but the RFC 3986 unreserved set.
func sigV4Escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func hmacSHA256(key []byte, data string) []byte {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(data))
	return h.Sum(nil)
}

func signingKey(provider, secretKey, day, region, service, terminator string) []byte {
	k := hmacSHA256([]byte(provider+"4"+secretKey), day)
	k = hmacSHA256(k, region)
	k = hmacSHA256(k, service)
	return hmacSHA256(k, terminator)
}
