// Package codec decodes response bodies according to the type the caller
// expects. Decoders are looked up by a normalized type key; unknown keys fall
// back to the raw decoder, which returns the body unchanged.
package codec

import (
	"bytes"
	"strings"
	"sync"
)

// Codec parses and serializes one body format.
type Codec interface {
	// Name is the canonical key the codec is registered under.
	Name() string
	// Parse decodes body into the codec's natural representation.
	Parse(body []byte) (any, error)
	// ToArray decodes body into plain maps, slices and scalars.
	ToArray(body []byte) (any, error)
	// Serialize renders v in the codec's format.
	Serialize(v any) ([]byte, error)
}

// Registry maps normalized type keys to codecs.
type Registry struct {
	mu       sync.RWMutex
	codecs   map[string]Codec
	fallback Codec
}

// NewRegistry returns a registry holding the raw, JSON and XML codecs.
func NewRegistry() *Registry {
	r := &Registry{
		codecs:   make(map[string]Codec),
		fallback: Raw{},
	}
	r.Register(JSON{}, "json", "application/json")
	r.Register(NewXML(), "xml", "text/xml", "application/xml")
	return r
}

// Register binds c to each key. Keys are normalized first.
func (r *Registry) Register(c Codec, keys ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range keys {
		if k = Normalize(k); k != "" {
			r.codecs[k] = c
		}
	}
}

// For returns the codec registered for expected, or the raw codec.
func (r *Registry) For(expected string) Codec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.codecs[Normalize(expected)]; ok {
		return c
	}
	return r.fallback
}

// Default is the registry used by For.
var Default = NewRegistry()

// For looks up expected in the default registry.
func For(expected string) Codec {
	return Default.For(expected)
}

// Normalize lower-cases and trims a type key and drops media type
// parameters such as "; charset=utf-8".
func Normalize(t string) string {
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = t[:i]
	}
	return strings.ToLower(strings.TrimSpace(t))
}

var boms = [][]byte{
	{0xEF, 0xBB, 0xBF},
	// UTF-32 must be checked before UTF-16: FF FE is a prefix of FF FE 00 00.
	{0xFF, 0xFE, 0x00, 0x00},
	{0x00, 0x00, 0xFE, 0xFF},
	{0xFF, 0xFE},
	{0xFE, 0xFF},
}

// StripBOM removes a leading byte order mark.
func StripBOM(body []byte) []byte {
	for _, bom := range boms {
		if bytes.HasPrefix(body, bom) {
			return body[len(bom):]
		}
	}
	return body
}
