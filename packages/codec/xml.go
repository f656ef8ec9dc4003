package codec

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/net/html/charset"
)

const (
	// DefaultRootNode names the document element of serialized XML.
	DefaultRootNode = "root"
	anonNode        = "anon"
	xmlHeader       = `<?xml version="1.0" encoding="utf-8"?>`
)

// Node is one element of a parsed XML document.
type Node struct {
	Name     string
	Attrs    []xml.Attr
	Text     string
	Children []*Node
}

// Child returns the first child element called name.
func (n *Node) Child(name string) *Node {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Attr returns the value of the attribute called name.
func (n *Node) Attr(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

// XMLOption configures an XML codec.
type XMLOption func(*XML)

// WithRootNode sets the document element used by Serialize. It also names
// elements created for numeric keys.
func WithRootNode(name string) XMLOption {
	return func(x *XML) {
		if name = strings.TrimSpace(name); name != "" {
			x.rootNode = name
		}
	}
}

// WithFormatted indents serialized output.
func WithFormatted(formatted bool) XMLOption {
	return func(x *XML) {
		x.formatted = formatted
	}
}

// XML is a strict decoder: malformed documents fail with a *DecodeError
// wrapping ErrXMLParse. Empty bodies decode to nil.
type XML struct {
	rootNode  string
	formatted bool
}

// NewXML returns an XML codec.
func NewXML(opts ...XMLOption) XML {
	x := XML{rootNode: DefaultRootNode}
	for _, opt := range opts {
		opt(&x)
	}
	return x
}

func (XML) Name() string { return "xml" }

// Parse decodes body into a *Node tree.
func (XML) Parse(body []byte) (any, error) {
	root, err := parseXML(body)
	if err != nil || root == nil {
		return nil, err
	}
	return root, nil
}

// ToArray decodes body into nested maps. Leaf elements become their text,
// repeated siblings become lists, and "anon" elements are keyed by position.
func (XML) ToArray(body []byte) (any, error) {
	root, err := parseXML(body)
	if err != nil || root == nil {
		return nil, err
	}
	return nodeToArray(root), nil
}

func parseXML(body []byte) (*Node, error) {
	body = StripBOM(body)
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}

	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.Strict = true
	dec.CharsetReader = charset.NewReaderLabel

	var root *Node
	var stack []*Node
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &DecodeError{Codec: "xml", Err: ErrXMLParse, Cause: err}
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := &Node{Name: t.Name.Local, Attrs: t.Attr}
			if len(stack) == 0 {
				if root != nil {
					return nil, &DecodeError{Codec: "xml", Err: ErrXMLParse, Cause: errors.New("multiple root elements")}
				}
				root = n
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, n)
			}
			stack = append(stack, n)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].Text += string(t)
			} else if len(bytes.TrimSpace(t)) > 0 {
				return nil, &DecodeError{Codec: "xml", Err: ErrXMLParse, Cause: errors.New("text outside root element")}
			}
		}
	}

	if root == nil {
		return nil, &DecodeError{Codec: "xml", Err: ErrXMLParse, Cause: errors.New("no root element")}
	}
	return root, nil
}

func nodeToArray(n *Node) any {
	if len(n.Children) == 0 {
		return n.Text
	}

	out := make(map[string]any, len(n.Children))
	for _, child := range n.Children {
		key := child.Name
		value := nodeToArray(child)
		if key == anonNode {
			key = strconv.Itoa(len(out))
		}

		existing, ok := out[key]
		if !ok {
			out[key] = value
			continue
		}
		list, isList := existing.([]any)
		if !isList {
			list = []any{existing}
		}
		out[key] = append(list, value)
	}
	return out
}

// Serialize renders a mapping as an XML document. Maps, slices and
// json.Number values produced by the JSON codec are accepted; a string or
// byte slice is treated as an XML document and converted with ToArray first.
// Numeric keys take the root node name, so several numeric entries at one
// level produce sibling elements sharing that name.
func (x XML) Serialize(v any) ([]byte, error) {
	switch val := v.(type) {
	case []byte:
		decoded, err := x.ToArray(val)
		if err != nil {
			return nil, err
		}
		v = decoded
	case string:
		decoded, err := x.ToArray([]byte(val))
		if err != nil {
			return nil, err
		}
		v = decoded
	}

	root := &element{name: x.rootNode}
	switch {
	case v == nil:
	case isContainer(v):
		buildXML(root, v, x.rootNode)
	default:
		root.text = formatXMLValue(v)
	}

	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteByte('\n')
	root.write(&b, x.formatted, 0)
	b.WriteByte('\n')
	return []byte(b.String()), nil
}

type element struct {
	name     string
	text     string
	children []*element
}

func (e *element) add(name, text string) *element {
	c := &element{name: name, text: text}
	e.children = append(e.children, c)
	return c
}

func (e *element) write(b *strings.Builder, formatted bool, depth int) {
	indent := ""
	if formatted {
		indent = strings.Repeat("  ", depth)
	}
	b.WriteString(indent + "<" + e.name)
	if len(e.children) == 0 {
		if e.text == "" {
			b.WriteString("/>")
			return
		}
		b.WriteString(">" + e.text + "</" + e.name + ">")
		return
	}
	b.WriteString(">" + e.text)
	for _, c := range e.children {
		if formatted {
			b.WriteByte('\n')
		}
		c.write(b, formatted, depth+1)
	}
	if formatted {
		b.WriteString("\n" + indent)
	}
	b.WriteString("</" + e.name + ">")
}

var invalidNameChars = regexp.MustCompile(`(?i)[^a-z0-9\-_.:]`)

type entry struct {
	key   string
	value any
}

// buildXML walks data, adding children to parent. rootName replaces numeric
// keys.
func buildXML(parent *element, data any, rootName string) {
	for _, e := range entries(data) {
		key := e.key
		numeric := isNumericKey(key)
		if numeric {
			key = rootName
		}
		key = invalidNameChars.ReplaceAllString(key, "")
		if key == "" {
			continue
		}

		if isContainer(e.value) {
			node := parent
			if numeric || isAssoc(e.value) {
				node = parent.add(key, "")
			}
			if numeric {
				key = anonNode
			}
			buildXML(node, e.value, key)
			continue
		}
		parent.add(key, formatXMLValue(e.value))
	}
}

func entries(data any) []entry {
	switch d := data.(type) {
	case map[string]any:
		keys := make([]string, 0, len(d))
		for k := range d {
			keys = append(keys, k)
		}
		sortKeys(keys)
		out := make([]entry, len(keys))
		for i, k := range keys {
			out[i] = entry{key: k, value: d[k]}
		}
		return out
	case map[string]string:
		keys := make([]string, 0, len(d))
		for k := range d {
			keys = append(keys, k)
		}
		sortKeys(keys)
		out := make([]entry, len(keys))
		for i, k := range keys {
			out[i] = entry{key: k, value: d[k]}
		}
		return out
	case []any:
		out := make([]entry, len(d))
		for i, v := range d {
			out[i] = entry{key: strconv.Itoa(i), value: v}
		}
		return out
	case []string:
		out := make([]entry, len(d))
		for i, v := range d {
			out[i] = entry{key: strconv.Itoa(i), value: v}
		}
		return out
	}
	return nil
}

// sortKeys puts numeric keys first, by value, then the rest lexically.
func sortKeys(keys []string) {
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.ParseFloat(keys[i], 64)
		b, errB := strconv.ParseFloat(keys[j], 64)
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		}
		return keys[i] < keys[j]
	})
}

func isContainer(v any) bool {
	switch v.(type) {
	case map[string]any, map[string]string, []any, []string:
		return true
	}
	return false
}

// isAssoc reports whether v has keys other than the sequence 0..n-1.
func isAssoc(v any) bool {
	switch d := v.(type) {
	case []any, []string:
		return false
	case map[string]any:
		return !sequentialKeys(len(d), func(k string) bool { _, ok := d[k]; return ok })
	case map[string]string:
		return !sequentialKeys(len(d), func(k string) bool { _, ok := d[k]; return ok })
	}
	return false
}

func sequentialKeys(n int, has func(string) bool) bool {
	for i := 0; i < n; i++ {
		if !has(strconv.Itoa(i)) {
			return false
		}
	}
	return true
}

func isNumericKey(k string) bool {
	if k == "" {
		return false
	}
	_, err := strconv.ParseFloat(k, 64)
	return err == nil
}

func formatXMLValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case bool:
		if val {
			return "true"
		}
		return "false"
	case string:
		return html.EscapeString(val)
	case json.Number:
		return val.String()
	case float64:
		if val == math.Trunc(val) && math.Abs(val) < 1e15 {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return html.EscapeString(fmt.Sprint(val))
	}
}
