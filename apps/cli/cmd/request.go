package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/abdul-hamid-achik/hitclient/packages/capture"
	"github.com/abdul-hamid-achik/hitclient/packages/core/config"
	"github.com/abdul-hamid-achik/hitclient/packages/core/env"
	"github.com/abdul-hamid-achik/hitclient/packages/http"
	hlog "github.com/abdul-hamid-achik/hitclient/packages/log"
	"github.com/abdul-hamid-achik/hitclient/packages/output"
)

// requestFlags holds the flags shared by "request" and the verb shortcuts.
type requestFlags struct {
	params    []string
	headers   []string
	files     []string
	vars      []string
	options   []string
	expect    string
	baseURL   string
	timeout   string
	insecure  bool
	proxy     string
	userAgent string
	user      string
	digest    bool
	awsSigV4  string
	envFile   string
	config    string

	verbose  bool
	include  bool
	noColor  bool
	logLevel string
	output   string

	captures     []string
	saveCaptures string

	repeat      int
	rate        float64
	metricsFile string
}

func addRequestFlags(cmd *cobra.Command, f *requestFlags) {
	flags := cmd.Flags()

	// Request flags
	flags.StringArrayVarP(&f.params, "param", "p", nil, "Request parameter: key=value, a raw query fragment (a=1&b=2) or @file (repeatable)")
	flags.StringArrayVarP(&f.headers, "header", "H", nil, "Request header \"Name: Value\" (repeatable)")
	flags.StringArrayVarP(&f.files, "file", "F", nil, "File to upload: name=path or path (repeatable)")
	flags.StringVar(&f.expect, "expect", getEnvString("HITCLIENT_EXPECT", ""), "Expected response type: json, xml or raw (env: HITCLIENT_EXPECT)")
	flags.StringVar(&f.baseURL, "base-url", getEnvString("HITCLIENT_BASE_URL", ""), "Prefix joined to the request URL (env: HITCLIENT_BASE_URL)")

	// Variable flags
	flags.StringArrayVar(&f.vars, "var", nil, "Value for a {{name}} placeholder: name=value (repeatable)")
	flags.StringVar(&f.envFile, "env-file", getEnvString("HITCLIENT_ENV_FILE", ""), "Path to .env file for variable interpolation (env: HITCLIENT_ENV_FILE)")
	flags.StringVar(&f.config, "config", getEnvString("HITCLIENT_CONFIG", ""), "Path to config file (env: HITCLIENT_CONFIG)")

	// Network flags
	flags.StringVar(&f.timeout, "timeout", getEnvString("HITCLIENT_TIMEOUT", ""), "Request timeout (e.g., 30s, 1m) (env: HITCLIENT_TIMEOUT)")
	flags.BoolVarP(&f.insecure, "insecure", "k", getEnvBool("HITCLIENT_INSECURE", false), "Disable SSL certificate validation (env: HITCLIENT_INSECURE)")
	flags.StringVar(&f.proxy, "proxy", getEnvString("HITCLIENT_PROXY", ""), "Proxy URL for HTTP requests (env: HITCLIENT_PROXY)")
	flags.StringVarP(&f.userAgent, "user-agent", "A", "", "User-Agent to send")
	flags.StringArrayVar(&f.options, "option", nil, "Transport option name=value, e.g. max_redirects=3 (repeatable)")

	// Auth flags
	flags.StringVarP(&f.user, "user", "u", "", "Credentials user:password (basic auth unless --digest or --aws-sigv4)")
	flags.BoolVar(&f.digest, "digest", false, "Use Digest authentication")
	flags.StringVar(&f.awsSigV4, "aws-sigv4", "", "Sign with AWS Signature V4: provider1[:provider2[:region[:service]]]")

	// Output flags
	flags.BoolVarP(&f.verbose, "verbose", "v", false, "Print request and response headers and debug logs")
	flags.BoolVarP(&f.include, "include", "i", false, "Print response headers")
	flags.BoolVar(&f.noColor, "no-color", getEnvBool("HITCLIENT_NO_COLOR", false), "Disable colored output (env: HITCLIENT_NO_COLOR)")
	flags.StringVar(&f.logLevel, "log-level", getEnvString("HITCLIENT_LOG_LEVEL", ""), "Log level: debug, info, warn, error (env: HITCLIENT_LOG_LEVEL)")
	flags.StringVarP(&f.output, "output", "o", getEnvString("HITCLIENT_OUTPUT", output.FormatConsole), "Output format: console, json (env: HITCLIENT_OUTPUT)")

	// Capture flags
	flags.StringArrayVar(&f.captures, "capture", nil, "Extract a value: name=body.path, name=header.Name, name=status or name=duration (repeatable)")
	flags.StringVar(&f.saveCaptures, "save-captures", "", "Write captured values to this file in .env format")

	// Repetition flags
	flags.IntVar(&f.repeat, "repeat", 1, "Send the request this many times")
	flags.Float64Var(&f.rate, "rate", getEnvFloat("HITCLIENT_RATE", 0), "Maximum requests per second when repeating (env: HITCLIENT_RATE)")
	flags.StringVar(&f.metricsFile, "metrics-file", getEnvString("HITCLIENT_METRICS_FILE", ""), "Write Prometheus metrics to this file after the run (env: HITCLIENT_METRICS_FILE)")
}

func newRequestCmd() *cobra.Command {
	f := &requestFlags{}
	cmd := &cobra.Command{
		Use:   "request <method> <url>",
		Short: "Send a request with any method",
		Long: `Send one HTTP request and print the response.

Examples:
  hitclient request GET https://api.example.com/users -p page=2
  hitclient request PROPFIND https://dav.example.com/files
  hitclient request POST /upload --base-url https://api.example.com -F avatar=me.png
  hitclient request GET https://api.example.com/me -H "Authorization: Bearer {{$TOKEN}}"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRequest(cmd, f, args[0], args[1])
		},
	}
	addRequestFlags(cmd, f)
	return cmd
}

func newVerbCmd(method string) *cobra.Command {
	f := &requestFlags{}
	name := strings.ToLower(method)
	cmd := &cobra.Command{
		Use:   name + " <url>",
		Short: fmt.Sprintf("Send a %s request", method),
		Long: fmt.Sprintf(`Send a %s request and print the response.

Examples:
  hitclient %s https://api.example.com/items -p q=widgets --expect json
  hitclient %s /items --base-url https://api.example.com -o json`, method, name, name),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRequest(cmd, f, method, args[0])
		},
	}
	addRequestFlags(cmd, f)
	return cmd
}

func runRequest(cmd *cobra.Command, f *requestFlags, method, rawURL string) error {
	cfg, err := config.LoadConfig(f.config)
	if err != nil {
		return exitWith(ExitConfigError, err)
	}
	if err := applyFlags(cfg, f); err != nil {
		return exitWith(ExitUsageError, err)
	}
	if f.repeat < 1 {
		return exitWith(ExitUsageError, fmt.Errorf("--repeat must be at least 1, got %d", f.repeat))
	}

	captures, err := capture.ParseAll(f.captures)
	if err != nil {
		return exitWith(ExitUsageError, err)
	}

	formatter, err := output.New(f.output, output.Options{
		Writer:  cmd.OutOrStdout(),
		Verbose: f.verbose,
		Include: f.include,
		NoColor: cfg.GetNoColor(),
	})
	if err != nil {
		return exitWith(ExitUsageError, err)
	}
	fail := func(code int, err error) error {
		_ = formatter.FormatError(err)
		return &ExitError{Code: code, Err: err, Silent: true}
	}

	logger := newLogger(cmd, cfg)

	resolver := env.NewResolver()
	resolver.SetLogger(logger)
	if f.envFile != "" {
		vars, err := env.LoadAndExportDotEnv(f.envFile)
		if err != nil {
			return fail(ExitConfigError, err)
		}
		resolver.SetVariables(vars)
	}
	for _, kv := range f.vars {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return fail(ExitUsageError, fmt.Errorf("invalid --var %q (expected name=value)", kv))
		}
		resolver.SetVariable(strings.TrimSpace(name), value)
	}

	var (
		registry *prometheus.Registry
		metrics  *http.MetricsCollector
	)
	if f.metricsFile != "" {
		registry = prometheus.NewRegistry()
		metrics = http.NewMetricsCollectorWithRegistry(registry)
	}

	clientOpts, err := clientOptions(cfg, f, resolver)
	if err != nil {
		return fail(ExitUsageError, err)
	}
	clientOpts = append(clientOpts, http.WithLogger(logger), http.WithMetrics(metrics))
	client := http.NewClient(clientOpts...)

	client.Params().Apply(paramEntries(resolver.ResolveAll(f.params))...)
	headers, err := headerEntries(resolver.ResolveAll(f.headers))
	if err != nil {
		return fail(ExitUsageError, err)
	}
	client.Headers().Apply(headers...)
	files, err := fileEntries(resolver.ResolveAll(f.files))
	if err != nil {
		return fail(ExitUsageError, err)
	}
	client.SetFiles(files...)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	url := resolver.Resolve(rawURL)
	code := ExitSuccess
	var captured []capture.Value
	for i := 0; i < f.repeat; i++ {
		resp, err := client.Execute(ctx, url, method)
		if err != nil {
			code = errorExitCode(err)
			_ = formatter.FormatError(err)
			break
		}
		if len(captures) > 0 {
			captured = capture.ExtractAll(resp, captures)
		}
		if err := formatter.FormatResponse(resp, captured); err != nil {
			return exitWith(ExitUsageError, fmt.Errorf("error writing output: %w", err))
		}
		if c := responseExitCode(resp); code == ExitSuccess {
			code = c
		}
	}

	if f.saveCaptures != "" && captured != nil {
		if err := capture.Save(f.saveCaptures, captured); err != nil {
			return fail(ExitConfigError, fmt.Errorf("save captures: %w", err))
		}
	}

	if registry != nil {
		if err := prometheus.WriteToTextfile(f.metricsFile, registry); err != nil {
			logger.Warn("failed to write metrics", "path", f.metricsFile, "error", err)
		}
	}

	if code != ExitSuccess {
		return &ExitError{Code: code, Silent: true}
	}
	return nil
}

// applyFlags lays the command line over the loaded configuration.
func applyFlags(cfg *config.Config, f *requestFlags) error {
	if f.baseURL != "" {
		cfg.BaseURL = f.baseURL
	}
	if f.expect != "" {
		cfg.Expect = f.expect
	}
	if f.userAgent != "" {
		cfg.UserAgent = f.userAgent
	}
	if f.proxy != "" {
		cfg.Proxy = f.proxy
	}
	if f.insecure {
		cfg.ValidateSSL = config.BoolPtr(false)
	}
	if f.noColor {
		cfg.NoColor = config.BoolPtr(true)
	}
	if f.rate > 0 {
		cfg.RateLimit = f.rate
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	} else if f.verbose {
		cfg.LogLevel = "debug"
	}
	if f.timeout != "" {
		timeout, err := time.ParseDuration(f.timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout value %q: %w (use format like 30s, 1m, 500ms)", f.timeout, err)
		}
		cfg.Timeout = int(timeout.Milliseconds())
	}
	return nil
}

func newLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	logger := hlog.New(&hlog.Config{
		Level:  cfg.LogLevel,
		Format: hlog.Format(strings.ToLower(cfg.LogFormat)),
		Output: cmd.ErrOrStderr(),
	})
	return hlog.WithComponent(logger, "cli")
}

// clientOptions turns the configuration into client options. Placeholders
// in the base URL, default headers, default params and credentials are
// resolved.
func clientOptions(cfg *config.Config, f *requestFlags, resolver *env.Resolver) ([]http.ClientOption, error) {
	opts := []http.ClientOption{
		http.WithBaseURL(resolver.Resolve(cfg.BaseURL)),
		http.WithUserAgent(cfg.UserAgent),
		http.WithExpectedType(cfg.Expect),
		http.WithTimeout(time.Duration(cfg.Timeout) * time.Millisecond),
		http.WithFollowRedirects(cfg.GetFollowRedirects()),
		http.WithMaxRedirects(cfg.MaxRedirects),
		http.WithValidateSSL(cfg.GetValidateSSL()),
		http.WithProxy(resolver.Resolve(cfg.Proxy)),
		http.WithDefaultHeaders(resolveMap(resolver, cfg.Headers)),
		http.WithDefaultParams(resolveMap(resolver, cfg.Params)),
	}
	if cfg.ConnectTimeout > 0 {
		opts = append(opts, http.WithConnectTimeout(time.Duration(cfg.ConnectTimeout)*time.Millisecond))
	}
	if cfg.RateLimit > 0 {
		opts = append(opts, http.WithRateLimit(rate.Limit(cfg.RateLimit), 1))
	}
	if cfg.RequestIDHeader != "" {
		opts = append(opts, http.WithRequestID(cfg.RequestIDHeader))
	}
	if f.verbose {
		opts = append(opts, http.WithTransportOption(http.OptVerbose, true))
	}

	options := make(map[string]string, len(cfg.Options)+len(f.options))
	for name, value := range cfg.Options {
		options[name] = value
	}
	for _, kv := range f.options {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --option %q (expected name=value)", kv)
		}
		options[name] = value
	}
	for name, value := range options {
		opt, ok := http.ParseOpt(name)
		if !ok {
			return nil, fmt.Errorf("unknown transport option %q", name)
		}
		opts = append(opts, http.WithTransportOption(opt, optionValue(resolver.Resolve(value))))
	}

	if f.user != "" {
		creds := resolver.Resolve(f.user)
		user, password, _ := strings.Cut(creds, ":")
		switch {
		case f.awsSigV4 != "":
			opts = append(opts,
				http.WithTransportOption(http.OptAWSSigV4, f.awsSigV4),
				http.WithTransportOption(http.OptUserPwd, creds))
		case f.digest:
			opts = append(opts, http.WithDigestAuth(user, password))
		default:
			opts = append(opts, http.WithBasicAuth(user, password))
		}
	} else if f.awsSigV4 != "" {
		return nil, fmt.Errorf("--aws-sigv4 needs --user access_key:secret_key")
	}
	return opts, nil
}

// optionValue types a textual option value: integers and booleans are
// converted, everything else stays a string.
func optionValue(value string) any {
	if n, err := strconv.ParseInt(value, 10, 64); err == nil {
		return n
	}
	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}
	return value
}

func resolveMap(resolver *env.Resolver, m map[string]string) map[string]string {
	if len(m) == 0 {
		return m
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = resolver.Resolve(v)
	}
	return out
}

// paramEntries maps -p values to params. "key=value" sets a key; a fragment
// holding '&', an "@path" reference or a bare word is merged as a raw
// fragment.
func paramEntries(values []string) []http.Param {
	entries := make([]http.Param, 0, len(values))
	for _, v := range values {
		key, value, ok := strings.Cut(v, "=")
		if !ok || key == "" || strings.HasPrefix(v, "@") || strings.Contains(v, "&") {
			entries = append(entries, http.Fragment(v))
			continue
		}
		entries = append(entries, http.KV(key, value))
	}
	return entries
}

func headerEntries(values []string) ([]http.Header, error) {
	entries := make([]http.Header, 0, len(values))
	for _, v := range values {
		if !strings.Contains(v, ":") {
			return nil, fmt.Errorf("invalid header %q (expected \"Name: Value\")", v)
		}
		entries = append(entries, http.Line(v))
	}
	return entries, nil
}

// fileEntries maps -F values to attachments. "name=path" posts under name;
// a bare path posts as file<N>, with the file's base name as the filename.
func fileEntries(values []string) ([]http.FileEntry, error) {
	entries := make([]http.FileEntry, 0, len(values))
	for _, v := range values {
		name, path, ok := strings.Cut(v, "=")
		if !ok {
			path = v
		}
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("cannot attach %s: %w", path, err)
		}
		if ok {
			entries = append(entries, http.NamedFile(name, path))
		} else {
			entries = append(entries, http.File(path))
		}
	}
	return entries, nil
}

// errorExitCode maps an execute error to an exit code.
func errorExitCode(err error) int {
	if http.IsConfiguration(err) {
		return ExitConfigError
	}
	return ExitNetworkError
}

// responseExitCode maps a response to an exit code.
func responseExitCode(resp *http.Response) int {
	switch {
	case resp.Errno() != http.ErrnoOK:
		return ExitNetworkError
	case resp.IsError():
		return ExitHTTPError
	default:
		return ExitSuccess
	}
}
