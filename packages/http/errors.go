package http

import (
	"errors"
	"fmt"
)

// Sentinel errors wrapped by *Error.
var (
	ErrInvalidURL      = errors.New("hitclient: invalid url")
	ErrInvalidMethod   = errors.New("hitclient: invalid method")
	ErrNoTransport     = errors.New("hitclient: no transport")
	ErrNoRequest       = errors.New("hitclient: no request builder")
	ErrFileUnavailable = errors.New("hitclient: file attachment unavailable")
)

// ErrorKind classifies errors returned synchronously by the client.
type ErrorKind string

const (
	// KindConfiguration covers invalid input detected before any I/O.
	KindConfiguration ErrorKind = "configuration"
	// KindTransportInit means the transport could not start the call.
	KindTransportInit ErrorKind = "transport_init"
)

// Error is returned for configuration and transport-init failures.
// Failures during a transfer are reported on the Response instead.
type Error struct {
	Kind    ErrorKind
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := string(e.Kind) + ": " + e.Message
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s (%v)", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is matches another *Error of the same kind.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

func configError(op, message string, cause error) *Error {
	return &Error{Kind: KindConfiguration, Op: op, Message: message, Cause: cause}
}

func transportInitError(op string, cause error) *Error {
	return &Error{Kind: KindTransportInit, Op: op, Message: "transport could not start", Cause: cause}
}

// IsConfiguration reports whether err is a configuration error.
func IsConfiguration(err error) bool {
	return errors.Is(err, &Error{Kind: KindConfiguration})
}

// IsTransportInit reports whether err is a transport-init error.
func IsTransportInit(err error) bool {
	return errors.Is(err, &Error{Kind: KindTransportInit})
}

// Transfer error codes reported in Response.Errno. Values match libcurl.
const (
	ErrnoOK                  = 0
	ErrnoUnsupportedProtocol = 1
	ErrnoURLMalformat        = 3
	ErrnoCouldNotResolveHost = 6
	ErrnoCouldNotConnect     = 7
	ErrnoTimedOut            = 28
	ErrnoSSLConnect          = 35
	ErrnoAborted             = 42
	ErrnoTooManyRedirects    = 47
	ErrnoSendError           = 55
	ErrnoRecv                = 56
	ErrnoPeerCertificate     = 60
	ErrnoFileSizeExceeded    = 63
)
