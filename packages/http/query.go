package http

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// queryValues is an insertion-ordered set of decoded query pairs.
type queryValues = orderedmap.OrderedMap[string, string]

// parseQuery splits a query fragment into decoded key/value pairs. A key that
// appears more than once keeps the position of its first occurrence and the
// value of its last one. Pairs with an empty key are dropped.
func parseQuery(query string) *queryValues {
	values := orderedmap.New[string, string]()
	for _, part := range strings.Split(query, "&") {
		if part == "" {
			continue
		}
		rawKey, rawValue, _ := strings.Cut(part, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			key = rawKey
		}
		if key == "" {
			continue
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			value = rawValue
		}
		values.Set(key, value)
	}
	return values
}

// buildQuery renders values as key=value joined by '&', escaping both sides.
func buildQuery(values *queryValues) string {
	var b strings.Builder
	for pair := values.Oldest(); pair != nil; pair = pair.Next() {
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(pair.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(pair.Value))
	}
	return b.String()
}

// trimFragment strips leading and trailing '&' and '?' characters.
func trimFragment(s string) string {
	return strings.Trim(s, "&?")
}

// isNumeric reports whether s reads as a decimal number, the way list
// indexes look when a collection is flattened into key/value entries.
func isNumeric(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

// formatScalar renders a scalar parameter or header value as text.
// Booleans become "1" and "0" so that form encodings stay compatible with
// servers expecting integer flags.
func formatScalar(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	case bool:
		if val {
			return "1"
		}
		return "0"
	case int:
		return strconv.Itoa(val)
	case int8:
		return strconv.FormatInt(int64(val), 10)
	case int16:
		return strconv.FormatInt(int64(val), 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint:
		return strconv.FormatUint(uint64(val), 10)
	case uint8:
		return strconv.FormatUint(uint64(val), 10)
	case uint16:
		return strconv.FormatUint(uint64(val), 10)
	case uint32:
		return strconv.FormatUint(uint64(val), 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float32:
		return formatFloat(float64(val), 32)
	case float64:
		return formatFloat(val, 64)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(v)
	}
}

func formatFloat(f float64, bits int) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, bits)
}
