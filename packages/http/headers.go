package http

import (
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Header is one element of a header collection. Build it with H for
// name/value entries or Line for "Name: Value" strings.
type Header struct {
	Name  string
	Value any
}

// H returns a name/value entry. A nil value removes the header and an empty
// value is ignored.
//
// When value is itself a "Name: Value" string, the header name is taken from
// the left side of value and name is ignored.
func H(name string, value any) Header {
	return Header{Name: name, Value: value}
}

// Line returns a list-style entry holding a "Name: Value" string.
func Line(line string) Header {
	return Header{Value: line}
}

// HeaderStore keeps request headers as an ordered name to value mapping.
// Names are kept in the case they were supplied.
type HeaderStore struct {
	entries *orderedmap.OrderedMap[string, string]
}

// NewHeaderStore returns an empty store.
func NewHeaderStore() *HeaderStore {
	return &HeaderStore{entries: orderedmap.New[string, string]()}
}

// Set applies a single name/value entry.
func (h *HeaderStore) Set(name string, value any) *HeaderStore {
	return h.Apply(H(name, value))
}

// Put stores value under name as given. Unlike Set, a colon inside value
// is kept in the value. Empty names and values are ignored.
func (h *HeaderStore) Put(name, value string) *HeaderStore {
	name = strings.TrimSpace(name)
	if name == "" || value == "" {
		return h
	}
	h.entries.Set(name, value)
	return h
}

// Add applies a single "Name: Value" line.
func (h *HeaderStore) Add(line string) *HeaderStore {
	return h.Apply(Line(line))
}

// Apply applies entries in order. Calling it with no entries clears the
// store.
func (h *HeaderStore) Apply(entries ...Header) *HeaderStore {
	if len(entries) == 0 {
		h.Reset()
		return h
	}

	for _, e := range entries {
		name, value, remove, ok := resolveHeader(e)
		if !ok {
			continue
		}
		if remove {
			h.entries.Delete(name)
			continue
		}
		if value == "" {
			continue
		}
		h.entries.Set(name, value)
	}
	return h
}

// resolveHeader works out the header name and value an entry refers to.
// ok is false when the entry names no header.
func resolveHeader(e Header) (name, value string, remove, ok bool) {
	if e.Name == "" || isNumeric(e.Name) {
		line, isString := e.Value.(string)
		if !isString {
			return "", "", false, false
		}
		left, right, found := strings.Cut(line, ":")
		if !found {
			return "", "", false, false
		}
		name = strings.TrimSpace(left)
		return name, strings.TrimLeft(right, " \t"), false, name != ""
	}

	name = strings.TrimSpace(e.Name)
	if e.Value == nil {
		return name, "", true, name != ""
	}

	value = formatScalar(e.Value)
	if left, right, found := strings.Cut(value, ":"); found {
		name = strings.TrimSpace(left)
		value = strings.TrimLeft(right, " \t")
	}
	return name, value, false, name != ""
}

// SetMap puts every pair of a plain map in sorted name order so the
// resulting store order is deterministic.
func (h *HeaderStore) SetMap(headers map[string]string) *HeaderStore {
	for _, name := range sortedKeys(headers) {
		h.Put(name, headers[name])
	}
	return h
}

// Remove deletes a header by its exact name.
func (h *HeaderStore) Remove(name string) *HeaderStore {
	h.entries.Delete(strings.TrimSpace(name))
	return h
}

// Reset clears the store.
func (h *HeaderStore) Reset() {
	h.entries = orderedmap.New[string, string]()
}

// Get returns the value stored under the exact name.
func (h *HeaderStore) Get(name string) (string, bool) {
	return h.entries.Get(name)
}

// Lookup returns the first value whose name matches case-insensitively.
func (h *HeaderStore) Lookup(name string) (string, bool) {
	for pair := h.entries.Oldest(); pair != nil; pair = pair.Next() {
		if strings.EqualFold(pair.Key, name) {
			return pair.Value, true
		}
	}
	return "", false
}

// Len returns the number of headers.
func (h *HeaderStore) Len() int {
	return h.entries.Len()
}

// Names returns header names in order.
func (h *HeaderStore) Names() []string {
	names := make([]string, 0, h.entries.Len())
	for pair := h.entries.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// Map returns a copy of the headers as a plain map.
func (h *HeaderStore) Map() map[string]string {
	m := make(map[string]string, h.entries.Len())
	for pair := h.entries.Oldest(); pair != nil; pair = pair.Next() {
		m[pair.Key] = pair.Value
	}
	return m
}

// Lines renders each header as "Name: Value" in store order, the form handed
// to the transport.
func (h *HeaderStore) Lines() []string {
	lines := make([]string, 0, h.entries.Len())
	for pair := h.entries.Oldest(); pair != nil; pair = pair.Next() {
		lines = append(lines, pair.Key+": "+strings.TrimSpace(pair.Value))
	}
	return lines
}

// Clone returns an independent copy.
func (h *HeaderStore) Clone() *HeaderStore {
	c := NewHeaderStore()
	for pair := h.entries.Oldest(); pair != nil; pair = pair.Next() {
		c.entries.Set(pair.Key, pair.Value)
	}
	return c
}
