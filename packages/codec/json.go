package codec

import (
	"bytes"
	"encoding/json"

	"github.com/tidwall/gjson"
)

// JSON is a lenient decoder: malformed documents decode to nil without an
// error.
type JSON struct{}

func (JSON) Name() string { return "json" }

// Parse decodes body into maps, slices and scalars. Numbers are kept as
// json.Number so that large integers survive a round trip.
func (JSON) Parse(body []byte) (any, error) {
	return decodeJSON(body), nil
}

// ToArray is Parse: JSON documents already decode to plain values.
func (j JSON) ToArray(body []byte) (any, error) {
	return j.Parse(body)
}

// Serialize re-encodes v canonically: object keys sorted, no insignificant
// whitespace, HTML characters left unescaped. A string or byte slice is
// treated as a JSON document and decoded first; malformed input serializes
// to nil.
func (JSON) Serialize(v any) ([]byte, error) {
	switch val := v.(type) {
	case []byte:
		v = decodeJSON(val)
		if v == nil {
			return nil, nil
		}
	case string:
		v = decodeJSON([]byte(val))
		if v == nil {
			return nil, nil
		}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func decodeJSON(body []byte) any {
	body = StripBOM(body)
	if !gjson.ValidBytes(body) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil
	}
	return out
}
