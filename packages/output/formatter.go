package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/abdul-hamid-achik/hitclient/packages/capture"
	"github.com/abdul-hamid-achik/hitclient/packages/http"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Formatter renders a response or a failure that prevented one.
type Formatter interface {
	FormatResponse(resp *http.Response, captures []capture.Value) error
	FormatError(err error) error
}

// Options selects what a formatter prints.
type Options struct {
	Writer  io.Writer
	Verbose bool
	Include bool
	NoColor bool
}

// New returns the formatter registered under format.
func New(format string, opts Options) (Formatter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatConsole:
		consoleOpts := []ConsoleOption{
			WithVerbose(opts.Verbose),
			WithInclude(opts.Include),
			WithNoColor(opts.NoColor),
		}
		if opts.Writer != nil {
			consoleOpts = append(consoleOpts, WithWriter(opts.Writer))
		}
		return NewConsoleFormatter(consoleOpts...), nil
	case FormatJSON:
		jsonOpts := []JSONOption{JSONWithVerbose(opts.Verbose)}
		if opts.Writer != nil {
			jsonOpts = append(jsonOpts, JSONWithWriter(opts.Writer))
		}
		return NewJSONFormatter(jsonOpts...), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (expected %s or %s)", format, FormatConsole, FormatJSON)
	}
}
