package output

import (
	"encoding/json"
	"io"
	"os"

	"github.com/abdul-hamid-achik/hitclient/packages/capture"
	"github.com/abdul-hamid-achik/hitclient/packages/http"
)

// JSONOutput is the document written for one response.
type JSONOutput struct {
	Status         int               `json:"status"`
	StatusLine     string            `json:"statusLine,omitempty"`
	URL            string            `json:"url,omitempty"`
	ContentType    string            `json:"contentType,omitempty"`
	Duration       float64           `json:"duration"`
	RedirectCount  int               `json:"redirectCount"`
	Errno          int               `json:"errno"`
	Error          string            `json:"error,omitempty"`
	Headers        map[string]string `json:"headers,omitempty"`
	RequestHeaders map[string]string `json:"requestHeaders,omitempty"`
	Body           any               `json:"body,omitempty"`
	DecodeError    string            `json:"decodeError,omitempty"`
	Captures       map[string]any    `json:"captures,omitempty"`
}

// JSONFormatter writes responses as indented JSON documents.
type JSONFormatter struct {
	writer  io.Writer
	verbose bool
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

// JSONWithVerbose includes the outgoing request headers.
func JSONWithVerbose(v bool) JSONOption {
	return func(f *JSONFormatter) {
		f.verbose = v
	}
}

// Build converts a response into its JSON document form. The body is the
// decoded value for the response's expected type, or the raw text when
// decoding fails. Captures that were not found are null.
func (f *JSONFormatter) Build(resp *http.Response, captures []capture.Value) JSONOutput {
	info := resp.Info()
	out := JSONOutput{
		Status:        resp.StatusCode(),
		StatusLine:    resp.StatusLine(),
		URL:           info.URL,
		ContentType:   info.ContentType,
		Duration:      float64(resp.TotalTime().Milliseconds()),
		RedirectCount: resp.RedirectCount(),
		Errno:         resp.Errno(),
		Error:         resp.ErrorMessage(),
		Headers:       resp.Headers(),
	}
	if f.verbose {
		out.RequestHeaders = resp.RequestHeaders()
	}
	if len(captures) > 0 {
		out.Captures = make(map[string]any, len(captures))
		for _, c := range captures {
			if c.Found {
				out.Captures[c.Name] = c.Value
			} else {
				out.Captures[c.Name] = nil
			}
		}
	}

	if len(resp.Body()) == 0 {
		return out
	}
	data, err := resp.Data()
	if err != nil {
		out.Body = resp.BodyString()
		out.DecodeError = err.Error()
		return out
	}
	out.Body = data
	return out
}

func (f *JSONFormatter) FormatResponse(resp *http.Response, captures []capture.Value) error {
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(f.Build(resp, captures))
}

// FormatError writes {"error": "..."} so the output stays parseable.
func (f *JSONFormatter) FormatError(err error) error {
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(map[string]string{"error": err.Error()})
}
