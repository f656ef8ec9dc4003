package codec

import (
	"errors"
	"fmt"
)

// ErrXMLParse is wrapped by every XML decoding failure.
var ErrXMLParse = errors.New("codec: unable to parse body as XML document")

// DecodeError reports a body a strict codec refused.
type DecodeError struct {
	Codec string
	Err   error
	Cause error
}

func (e *DecodeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v: %v", e.Codec, e.Err, e.Cause)
	}
	return fmt.Sprintf("%s: %v", e.Codec, e.Err)
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *DecodeError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}
