package capture

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/abdul-hamid-achik/hitclient/packages/http"
)

// Source is the part of a response a capture reads.
type Source string

const (
	SourceBody     Source = "body"
	SourceHeader   Source = "header"
	SourceStatus   Source = "status"
	SourceDuration Source = "duration"
)

// Capture names a value to extract, e.g. token=body.access_token.
type Capture struct {
	Name   string
	Source Source
	Path   string
}

// Value is the outcome of one capture.
type Value struct {
	Name  string
	Value string
	Found bool
}

// Parse reads "name=source[.path]". Body paths use gjson syntax; header
// paths are header names.
func Parse(def string) (Capture, error) {
	name, expr, ok := strings.Cut(def, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return Capture{}, fmt.Errorf("invalid capture %q (expected name=source[.path])", def)
	}

	source, path, _ := strings.Cut(strings.TrimSpace(expr), ".")
	c := Capture{Name: name, Source: Source(strings.ToLower(source)), Path: path}
	switch c.Source {
	case SourceBody:
	case SourceHeader:
		if c.Path == "" {
			return Capture{}, fmt.Errorf("invalid capture %q: header needs a name", def)
		}
	case SourceStatus, SourceDuration:
		if c.Path != "" {
			return Capture{}, fmt.Errorf("invalid capture %q: %s takes no path", def, c.Source)
		}
	default:
		return Capture{}, fmt.Errorf("invalid capture %q: unknown source %q", def, source)
	}
	return c, nil
}

// ParseAll parses every definition, stopping at the first error.
func ParseAll(defs []string) ([]Capture, error) {
	captures := make([]Capture, 0, len(defs))
	for _, s := range defs {
		c, err := Parse(s)
		if err != nil {
			return nil, err
		}
		captures = append(captures, c)
	}
	return captures, nil
}

type Extractor struct {
	response *http.Response
	bodyJSON gjson.Result
}

func NewExtractor(resp *http.Response) *Extractor {
	e := &Extractor{
		response: resp,
	}
	if body := resp.Body(); gjson.ValidBytes(body) {
		e.bodyJSON = gjson.ParseBytes(body)
	}
	return e
}

func (e *Extractor) Extract(c Capture) (string, bool) {
	switch c.Source {
	case SourceBody:
		return e.extractFromBody(c.Path)
	case SourceHeader:
		value := e.response.Header(c.Path)
		return value, value != ""
	case SourceStatus:
		return strconv.Itoa(e.response.StatusCode()), e.response.StatusCode() != 0
	case SourceDuration:
		return strconv.FormatInt(e.response.TotalTime().Milliseconds(), 10), true
	default:
		return "", false
	}
}

func (e *Extractor) extractFromBody(path string) (string, bool) {
	if path == "" {
		return e.response.BodyString(), len(e.response.Body()) > 0
	}
	if !e.bodyJSON.Exists() {
		return "", false
	}

	result := e.bodyJSON.Get(path)
	if !result.Exists() {
		return "", false
	}
	if result.IsObject() || result.IsArray() {
		return result.Raw, true
	}
	return result.String(), true
}

func ExtractAll(resp *http.Response, captures []Capture) []Value {
	extractor := NewExtractor(resp)
	values := make([]Value, 0, len(captures))

	for _, c := range captures {
		v, ok := extractor.Extract(c)
		values = append(values, Value{Name: c.Name, Value: v, Found: ok})
	}
	return values
}

// quoteDotEnv quotes values the .env reader would otherwise trim or cut at
// a comment. Line breaks are flattened to spaces.
func quoteDotEnv(value string) string {
	value = strings.NewReplacer("\r\n", " ", "\n", " ").Replace(value)
	if !strings.ContainsAny(value, " #\t\"'") {
		return value
	}
	if !strings.Contains(value, `"`) {
		return `"` + value + `"`
	}
	return "'" + value + "'"
}

// Save writes the found values to path in .env format so they can be read
// back with --env-file. Existing content is replaced.
func Save(path string, values []Value) error {
	var b strings.Builder
	for _, v := range values {
		if !v.Found {
			continue
		}
		fmt.Fprintf(&b, "%s=%s\n", v.Name, quoteDotEnv(v.Value))
	}
	return os.WriteFile(path, []byte(b.String()), 0o600)
}
