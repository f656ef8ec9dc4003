package http

import (
	"os"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ParamMode describes how a Params store currently holds its data.
type ParamMode int

const (
	// ParamsUnset means no parameters element is produced at all.
	ParamsUnset ParamMode = iota
	// ParamsRaw holds an opaque query string.
	ParamsRaw
	// ParamsMapping holds an insertion-ordered key/value mapping.
	ParamsMapping
)

func (m ParamMode) String() string {
	switch m {
	case ParamsRaw:
		return "raw"
	case ParamsMapping:
		return "mapping"
	default:
		return "unset"
	}
}

// ParamValue is a mapping entry: either a scalar or a file attachment.
type ParamValue struct {
	Value string
	File  *FileAttachment
}

// IsFile reports whether the entry is a file attachment.
func (v ParamValue) IsFile() bool {
	return v.File != nil
}

// Field is a mapping entry together with its key.
type Field struct {
	Key string
	ParamValue
}

// Param is one entry of a parameter collection. Build it with KV for
// key/value entries or Fragment for list-style entries.
type Param struct {
	Key      string
	Value    any
	fragment bool
}

// KV returns a key/value entry. A nil value removes the key. A string value
// starting with '@', a *FileAttachment or an *os.File attaches a file posted
// under key.
func KV(key string, value any) Param {
	return Param{Key: key, Value: value}
}

// Fragment returns a list-style entry: a raw query fragment such as
// "a=1&b=2", an "@path" file reference, a *FileAttachment or an *os.File.
func Fragment(fragment any) Param {
	return Param{Value: fragment, fragment: true}
}

// IsFragment reports whether the entry was built with Fragment.
func (p Param) IsFragment() bool {
	return p.fragment
}

type paramAction int

const (
	paramNoop paramAction = iota
	paramRemove
	paramMerge
	paramSet
	paramFile
)

type paramOp struct {
	action paramAction
	key    string
	value  string
	source any
}

// classifyParam turns the loosely typed call shapes accepted by the param
// setters into a single operation.
func classifyParam(p Param) paramOp {
	if p.fragment {
		switch src := p.Value.(type) {
		case nil:
			return paramOp{action: paramNoop}
		case *FileAttachment:
			if src == nil {
				return paramOp{action: paramNoop}
			}
			return paramOp{action: paramFile, source: src}
		case *os.File:
			if src == nil {
				return paramOp{action: paramNoop}
			}
			return paramOp{action: paramFile, source: src}
		case string:
			if src == "" {
				return paramOp{action: paramNoop}
			}
			if strings.HasPrefix(src, "@") {
				return paramOp{action: paramFile, source: src[1:]}
			}
			return paramOp{action: paramMerge, key: src}
		default:
			return paramOp{action: paramMerge, key: formatScalar(src)}
		}
	}

	if p.Key == "" {
		return paramOp{action: paramNoop}
	}

	switch v := p.Value.(type) {
	case nil:
		return paramOp{action: paramRemove, key: p.Key}
	case *FileAttachment:
		if v == nil {
			return paramOp{action: paramRemove, key: p.Key}
		}
		return paramOp{action: paramFile, key: p.Key, source: v}
	case *os.File:
		if v == nil {
			return paramOp{action: paramRemove, key: p.Key}
		}
		return paramOp{action: paramFile, key: p.Key, source: v}
	case string:
		if strings.HasPrefix(v, "@") {
			return paramOp{action: paramFile, key: p.Key, source: v[1:]}
		}
		// list entries flattened with an index key carry a query fragment
		if isNumeric(p.Key) && strings.Contains(v, "=") {
			return paramOp{action: paramMerge, key: v}
		}
		return paramOp{action: paramSet, key: p.Key, value: v}
	default:
		return paramOp{action: paramSet, key: p.Key, value: formatScalar(v)}
	}
}

// Params stores request parameters as either a raw query string or an
// ordered mapping. The zero value is an unset store ready to use.
type Params struct {
	mode   ParamMode
	raw    string
	values *orderedmap.OrderedMap[string, ParamValue]
}

// NewParams returns an unset store.
func NewParams() *Params {
	return &Params{}
}

// Mode returns the current representation.
func (p *Params) Mode() ParamMode {
	return p.mode
}

// Raw returns the query string held in raw mode.
func (p *Params) Raw() string {
	return p.raw
}

// Set assigns key to value. See KV for how value is interpreted.
func (p *Params) Set(key string, value any) *Params {
	p.apply(classifyParam(KV(key, value)))
	return p
}

// Merge applies a list-style entry. See Fragment.
func (p *Params) Merge(fragment any) *Params {
	p.apply(classifyParam(Fragment(fragment)))
	return p
}

// Apply applies entries in order. It never resets the store first.
func (p *Params) Apply(entries ...Param) *Params {
	for _, e := range entries {
		p.apply(classifyParam(e))
	}
	return p
}

// Reset returns the store to the unset state.
func (p *Params) Reset() {
	p.mode = ParamsUnset
	p.raw = ""
	p.values = nil
}

func (p *Params) apply(op paramOp) {
	switch op.action {
	case paramNoop:
		return
	case paramFile:
		p.AddFile(op.source, op.key, "")
		return
	}

	if p.mode == ParamsUnset {
		if op.action == paramMerge && !isNumeric(op.key) {
			p.mode = ParamsRaw
			p.raw = ""
		} else {
			p.toMapping()
		}
	}

	switch op.action {
	case paramRemove:
		p.remove(op.key)
	case paramMerge:
		p.merge(op.key)
	case paramSet:
		p.set(op.key, op.value)
	}
}

func (p *Params) merge(fragment string) {
	if p.mode == ParamsRaw {
		if strings.Contains(fragment, "=") {
			current := parseQuery(p.raw)
			for pair := parseQuery(trimFragment(fragment)).Oldest(); pair != nil; pair = pair.Next() {
				current.Set(pair.Key, pair.Value)
			}
			p.raw = buildQuery(current)
			return
		}
		p.raw = trimFragment(p.raw + "&" + trimFragment(fragment))
		return
	}

	for pair := parseQuery(trimFragment(fragment)).Oldest(); pair != nil; pair = pair.Next() {
		p.values.Set(pair.Key, ParamValue{Value: pair.Value})
	}
}

func (p *Params) set(key, value string) {
	if p.mode == ParamsRaw {
		current := parseQuery(p.raw)
		current.Set(key, value)
		p.raw = buildQuery(current)
		return
	}
	p.values.Set(key, ParamValue{Value: value})
}

func (p *Params) remove(key string) {
	switch p.mode {
	case ParamsRaw:
		current := parseQuery(p.raw)
		current.Delete(key)
		p.raw = buildQuery(current)
	case ParamsMapping:
		p.values.Delete(key)
	}
}

// toMapping switches to mapping mode, parsing any raw string. Duplicate keys
// in the raw string collapse to their last value.
func (p *Params) toMapping() {
	if p.mode == ParamsMapping {
		return
	}
	values := orderedmap.New[string, ParamValue]()
	if p.mode == ParamsRaw {
		for pair := parseQuery(p.raw).Oldest(); pair != nil; pair = pair.Next() {
			values.Set(pair.Key, ParamValue{Value: pair.Value})
		}
	}
	p.mode = ParamsMapping
	p.raw = ""
	p.values = values
}

// Get returns the entry stored under key. In raw mode the string is parsed.
func (p *Params) Get(key string) (ParamValue, bool) {
	switch p.mode {
	case ParamsRaw:
		v, ok := parseQuery(p.raw).Get(key)
		return ParamValue{Value: v}, ok
	case ParamsMapping:
		return p.values.Get(key)
	}
	return ParamValue{}, false
}

// Has reports whether key is present.
func (p *Params) Has(key string) bool {
	_, ok := p.Get(key)
	return ok
}

// Len returns the number of distinct keys.
func (p *Params) Len() int {
	switch p.mode {
	case ParamsRaw:
		return parseQuery(p.raw).Len()
	case ParamsMapping:
		return p.values.Len()
	}
	return 0
}

// Keys returns the keys in order.
func (p *Params) Keys() []string {
	fields := p.Fields()
	keys := make([]string, len(fields))
	for i, f := range fields {
		keys[i] = f.Key
	}
	return keys
}

// Fields returns the entries in order. In raw mode the string is parsed.
func (p *Params) Fields() []Field {
	var fields []Field
	switch p.mode {
	case ParamsRaw:
		for pair := parseQuery(p.raw).Oldest(); pair != nil; pair = pair.Next() {
			fields = append(fields, Field{Key: pair.Key, ParamValue: ParamValue{Value: pair.Value}})
		}
	case ParamsMapping:
		for pair := p.values.Oldest(); pair != nil; pair = pair.Next() {
			fields = append(fields, Field{Key: pair.Key, ParamValue: pair.Value})
		}
	}
	return fields
}

// IsEmpty reports whether encoding the store would produce nothing.
func (p *Params) IsEmpty() bool {
	switch p.mode {
	case ParamsRaw:
		return p.raw == ""
	case ParamsMapping:
		return p.values.Len() == 0
	}
	return true
}

// Encode serializes the store as a query string. File attachments cannot be
// expressed in a query string and are skipped.
func (p *Params) Encode() string {
	switch p.mode {
	case ParamsRaw:
		return strings.TrimLeft(p.raw, "?&")
	case ParamsMapping:
		values := orderedmap.New[string, string]()
		for pair := p.values.Oldest(); pair != nil; pair = pair.Next() {
			if pair.Value.IsFile() {
				continue
			}
			values.Set(pair.Key, pair.Value.Value)
		}
		return buildQuery(values)
	}
	return ""
}

// Clone returns an independent copy. Attachments are copied too.
func (p *Params) Clone() *Params {
	c := &Params{mode: p.mode, raw: p.raw}
	if p.values != nil {
		c.values = orderedmap.New[string, ParamValue]()
		for pair := p.values.Oldest(); pair != nil; pair = pair.Next() {
			v := pair.Value
			if v.File != nil {
				f := *v.File
				v.File = &f
			}
			c.values.Set(pair.Key, v)
		}
	}
	return c
}
