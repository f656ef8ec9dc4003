package codec

import "fmt"

// Raw passes bodies through untouched.
type Raw struct{}

func (Raw) Name() string { return "raw" }

// Parse returns the body as a string.
func (Raw) Parse(body []byte) (any, error) {
	return string(body), nil
}

// ToArray wraps the body in a single element list.
func (Raw) ToArray(body []byte) (any, error) {
	return []any{string(body)}, nil
}

// Serialize returns strings and byte slices as is and formats anything else
// with fmt.
func (Raw) Serialize(v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case []byte:
		return val, nil
	case string:
		return []byte(val), nil
	default:
		return []byte(fmt.Sprint(val)), nil
	}
}
