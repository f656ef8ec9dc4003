package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"

	"github.com/abdul-hamid-achik/hitclient/packages/capture"
	"github.com/abdul-hamid-achik/hitclient/packages/http"
)

// maxErrorBody caps how much of a body is echoed next to a transfer error.
const maxErrorBody = 200

// truncate shortens s to maxLen bytes, marking the cut.
func truncate(s string, maxLen int) string {
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}

type ConsoleFormatter struct {
	writer  io.Writer
	verbose bool
	include bool
	noColor bool
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

// WithVerbose prints the outgoing request headers and the response headers.
func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

// WithInclude prints the response headers before the body.
func WithInclude(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.include = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

// statusColor picks the color for a status code class.
func statusColor(code int) *color.Color {
	switch {
	case code >= 500:
		return color.New(color.FgRed, color.Bold)
	case code >= 400:
		return color.New(color.FgYellow, color.Bold)
	case code >= 300:
		return color.New(color.FgCyan, color.Bold)
	case code >= 200:
		return color.New(color.FgGreen, color.Bold)
	default:
		return color.New(color.FgMagenta, color.Bold)
	}
}

func (f *ConsoleFormatter) FormatResponse(resp *http.Response, captures []capture.Value) error {
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	faint := color.New(color.Faint).SprintFunc()

	if f.verbose {
		for _, line := range resp.RequestHeaderLines() {
			fmt.Fprintf(f.writer, "%s %s\n", faint(">"), line)
		}
		if len(resp.RequestHeaderLines()) > 0 {
			fmt.Fprintln(f.writer)
		}
	}

	if resp.Errno() != http.ErrnoOK {
		fmt.Fprintf(f.writer, "%s %s\n", red("x"), red(fmt.Sprintf("transfer failed (errno %d): %s", resp.Errno(), resp.ErrorMessage())))
		if url := resp.Info().URL; url != "" {
			fmt.Fprintf(f.writer, "  URL: %s\n", url)
		}
		if body := resp.BodyString(); body != "" {
			fmt.Fprintf(f.writer, "  Body: %s\n", truncate(body, maxErrorBody))
		}
		return nil
	}

	status := resp.StatusLine()
	if status == "" {
		status = fmt.Sprintf("HTTP %d", resp.StatusCode())
	}
	fmt.Fprintf(f.writer, "%s %s\n",
		statusColor(resp.StatusCode()).Sprint(status),
		cyan(fmt.Sprintf("(%dms, %d bytes)", resp.TotalTime().Milliseconds(), len(resp.Body()))))

	if f.verbose && resp.RedirectCount() > 0 {
		fmt.Fprintf(f.writer, "%s\n", faint(fmt.Sprintf("followed %d redirect(s)", resp.RedirectCount())))
	}

	if f.verbose || f.include {
		for _, line := range resp.HeaderLines() {
			name, value, _ := strings.Cut(line, ":")
			fmt.Fprintf(f.writer, "%s:%s\n", cyan(name), value)
		}
	}

	if body := resp.Body(); len(body) > 0 {
		fmt.Fprintln(f.writer)
		fmt.Fprintln(f.writer, strings.TrimRight(string(f.formatBody(resp, body)), "\n"))
	}

	if len(captures) > 0 {
		fmt.Fprintln(f.writer)
	}
	for _, c := range captures {
		if !c.Found {
			fmt.Fprintf(f.writer, "%s %s\n", yellow(c.Name), faint("(not found)"))
			continue
		}
		fmt.Fprintf(f.writer, "%s = %s\n", cyan(c.Name), c.Value)
	}
	return nil
}

// formatBody pretty prints JSON bodies and leaves everything else alone.
func (f *ConsoleFormatter) formatBody(resp *http.Response, body []byte) []byte {
	isJSON := strings.HasSuffix(resp.ContentType(), "json") ||
		strings.EqualFold(resp.ExpectedType(), "json")
	if !isJSON || !gjson.ValidBytes(body) {
		return body
	}
	out := pretty.Pretty(body)
	if !color.NoColor {
		out = pretty.Color(out, nil)
	}
	return out
}

func (f *ConsoleFormatter) FormatError(err error) error {
	red := color.New(color.FgRed).SprintFunc()
	_, werr := fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
	return werr
}

func (f *ConsoleFormatter) FormatHeader(version string) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(f.writer, "%s %s\n", bold("hitclient"), version)
}
