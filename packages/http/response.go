package http

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/abdul-hamid-achik/hitclient/packages/codec"
)

var contentTypePattern = regexp.MustCompile(`(?i)([\w/+.-]+)(;\s*charset=(\S+))?`)

// Response is the immutable outcome of one execute call. Decoding
// accessors re-parse the body on every call.
type Response struct {
	body           []byte
	statusLine     string
	httpCode       int
	contentType    string
	charset        string
	errMsg         string
	errno          int
	headers        *orderedmap.OrderedMap[string, string]
	requestHeaders *orderedmap.OrderedMap[string, string]
	info           Info
	expectedType   string
	codec          codec.Codec
}

// NewResponse builds a Response from a transport result. expectedType picks
// the body decoder.
func NewResponse(result *Result, expectedType string) *Response {
	r := &Response{
		headers:        orderedmap.New[string, string](),
		requestHeaders: orderedmap.New[string, string](),
		expectedType:   expectedType,
		codec:          codec.For(expectedType),
	}
	if result == nil {
		return r
	}

	r.info = result.Info
	r.httpCode = result.Info.HTTPCode
	r.errMsg = result.Info.Error
	r.errno = result.Info.Errno

	raw := result.Raw
	size := result.Info.HeaderSize
	if size > len(raw) {
		size = len(raw)
	}
	if size > 0 {
		r.body = raw[size:]
		r.parseHeaderBlock(raw)
		if m := contentTypePattern.FindStringSubmatch(result.Info.ContentType); m != nil {
			r.contentType = strings.TrimSpace(m[1])
			r.charset = m[3]
		}
	} else {
		r.body = raw
	}

	if result.Info.RequestHeader != "" {
		r.requestHeaders = parseHeaderLines(firstBlock(result.Info.RequestHeader), nil)
	}
	return r
}

// parseHeaderBlock reads the response header block, skipping an interim
// "100 Continue" block.
func (r *Response) parseHeaderBlock(raw []byte) {
	head, rest, _ := bytes.Cut(raw, []byte("\r\n\r\n"))
	if isContinue(string(head)) && len(rest) > 0 {
		head, _, _ = bytes.Cut(rest, []byte("\r\n\r\n"))
	}
	r.headers = parseHeaderLines(strings.TrimSpace(string(head)), func(status string) {
		r.statusLine = status
		if r.httpCode == 0 {
			if fields := strings.Fields(status); len(fields) > 1 {
				r.httpCode, _ = strconv.Atoi(fields[1])
			}
		}
	})
}

func isContinue(head string) bool {
	fields := strings.Fields(head)
	return len(fields) >= 2 && strings.HasPrefix(fields[0], "HTTP/") && fields[1] == "100"
}

func firstBlock(s string) string {
	head, _, _ := strings.Cut(s, "\r\n\r\n")
	return strings.TrimSpace(head)
}

// parseHeaderLines splits "Name: Value" lines. The first line is the start
// line and is handed to onStart. Duplicate names keep the last value.
func parseHeaderLines(block string, onStart func(string)) *orderedmap.OrderedMap[string, string] {
	headers := orderedmap.New[string, string]()
	if block == "" {
		return headers
	}
	for i, line := range strings.Split(block, "\r\n") {
		if i == 0 {
			if onStart != nil {
				onStart(line)
			}
			continue
		}
		name, value, ok := strings.Cut(line, ": ")
		if !ok {
			name, value, ok = strings.Cut(line, ":")
		}
		if !ok || name == "" {
			continue
		}
		headers.Set(name, strings.TrimSpace(value))
	}
	return headers
}

// IsError reports a transfer failure or a status outside 200-399.
func (r *Response) IsError() bool {
	return r.errno > 0 || r.httpCode < 200 || r.httpCode >= 400
}

// IsSuccess is the negation of IsError.
func (r *Response) IsSuccess() bool {
	return !r.IsError()
}

// StatusCode returns the HTTP status, 0 when no response was received.
func (r *Response) StatusCode() int { return r.httpCode }

// StatusLine returns the first line of the response header block.
func (r *Response) StatusLine() string { return r.statusLine }

// Body returns the raw body.
func (r *Response) Body() []byte { return r.body }

// BodyString returns the raw body as a string.
func (r *Response) BodyString() string { return string(r.body) }

// ContentType returns the media type of the response without parameters,
// or "" when the server sent none.
func (r *Response) ContentType() string { return r.contentType }

// Charset returns the charset parameter of the Content-Type header.
func (r *Response) Charset() string { return r.charset }

// ErrorMessage returns the transfer error message.
func (r *Response) ErrorMessage() string { return r.errMsg }

// Errno returns the transfer error code, 0 on success.
func (r *Response) Errno() int { return r.errno }

// HeaderSize returns the size of the received header block.
func (r *Response) HeaderSize() int { return r.info.HeaderSize }

// RequestSize returns the size of the sent request headers.
func (r *Response) RequestSize() int { return r.info.RequestSize }

// TotalTime returns the duration of the transfer.
func (r *Response) TotalTime() time.Duration { return r.info.TotalTime }

// RedirectCount returns the number of redirects followed.
func (r *Response) RedirectCount() int { return r.info.RedirectCount }

// Info returns the transfer metadata.
func (r *Response) Info() Info { return r.info }

// ExpectedType returns the decoding hint the response was built with.
func (r *Response) ExpectedType() string { return r.expectedType }

// Header returns the value of the named response header, matched
// case-insensitively.
func (r *Response) Header(name string) string {
	if v, ok := r.headers.Get(name); ok {
		return v
	}
	for pair := r.headers.Oldest(); pair != nil; pair = pair.Next() {
		if strings.EqualFold(pair.Key, name) {
			return pair.Value
		}
	}
	return ""
}

// Headers returns a copy of the response headers.
func (r *Response) Headers() map[string]string {
	return toMap(r.headers)
}

// HeaderLines renders the response headers as "Name: Value" lines.
func (r *Response) HeaderLines() []string {
	return toLines(r.headers)
}

// RequestHeaders returns the headers that were sent, when the transport
// recorded them.
func (r *Response) RequestHeaders() map[string]string {
	return toMap(r.requestHeaders)
}

// RequestHeaderLines renders the sent headers as "Name: Value" lines.
func (r *Response) RequestHeaderLines() []string {
	return toLines(r.requestHeaders)
}

// HeaderNames returns the response header names in received order.
func (r *Response) HeaderNames() []string {
	names := make([]string, 0, r.headers.Len())
	for pair := r.headers.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// Data decodes the body with the codec chosen by the expected type.
func (r *Response) Data() (any, error) {
	return r.codec.Parse(r.body)
}

// ToArray decodes the body into plain maps, slices and scalars.
func (r *Response) ToArray() (any, error) {
	return r.codec.ToArray(r.body)
}

// Serialize re-encodes the body with the codec chosen by the expected type.
func (r *Response) Serialize() ([]byte, error) {
	return r.codec.Serialize(r.body)
}

// SerializeWith re-encodes the body with c.
func (r *Response) SerializeWith(c codec.Codec) ([]byte, error) {
	return c.Serialize(r.body)
}

// Get looks up a gjson path in a JSON body. The body is read as JSON
// regardless of the expected type.
func (r *Response) Get(path string) gjson.Result {
	return gjson.GetBytes(codec.StripBOM(r.body), path)
}

func toMap(m *orderedmap.OrderedMap[string, string]) map[string]string {
	out := make(map[string]string, m.Len())
	for pair := m.Oldest(); pair != nil; pair = pair.Next() {
		out[pair.Key] = pair.Value
	}
	return out
}

func toLines(m *orderedmap.OrderedMap[string, string]) []string {
	lines := make([]string, 0, m.Len())
	for pair := m.Oldest(); pair != nil; pair = pair.Next() {
		lines = append(lines, pair.Key+": "+strings.TrimSpace(pair.Value))
	}
	return lines
}
