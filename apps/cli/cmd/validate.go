package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hitclient/packages/core/config"
	"github.com/abdul-hamid-achik/hitclient/packages/core/env"
	"github.com/abdul-hamid-achik/hitclient/packages/http"
	hlog "github.com/abdul-hamid-achik/hitclient/packages/log"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [config-file...]",
		Short: "Validate hitclient config files",
		Long: `Validate hitclient config files without sending a request. With no
arguments the config file in the current directory is checked.

Examples:
  hitclient validate
  hitclient validate .hitclient.yaml ci/hitclient.json`,
		RunE: validateCommand,
	}
}

func validateCommand(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		args = []string{""}
	}

	hasErrors := false
	for _, file := range args {
		name := file
		if name == "" {
			name = "working directory"
		}

		cfg, err := config.LoadConfig(file)
		if err == nil {
			err = validateConfig(cfg)
		}
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error in %s: %v\n", name, err)
			hasErrors = true
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Valid: %s\n", name)
		}
	}

	if hasErrors {
		return &ExitError{Code: ExitConfigError, Err: errors.New("validation failed"), Silent: true}
	}
	return nil
}

// validateConfig checks the values LoadConfig cannot: URLs, option names,
// header names and log settings.
func validateConfig(cfg *config.Config) error {
	var errs []error

	// Placeholders are checked after substituting a dummy value.
	blank := env.NewResolver()
	if cfg.BaseURL != "" {
		base := cfg.BaseURL
		for _, name := range blank.Unresolved(base) {
			blank.SetVariable(strings.TrimPrefix(name, "$"), "x")
		}
		if err := http.ValidateURL(blank.Resolve(base)); err != nil {
			errs = append(errs, fmt.Errorf("baseUrl: %w", err))
		}
	}
	if cfg.Timeout < 0 || cfg.ConnectTimeout < 0 {
		errs = append(errs, errors.New("timeouts must not be negative"))
	}
	if cfg.MaxRedirects < 0 {
		errs = append(errs, errors.New("maxRedirects must not be negative"))
	}
	if cfg.RateLimit < 0 {
		errs = append(errs, errors.New("rateLimit must not be negative"))
	}
	for name := range cfg.Options {
		if _, ok := http.ParseOpt(name); !ok {
			errs = append(errs, fmt.Errorf("options: unknown transport option %q", name))
		}
	}
	for name := range cfg.Headers {
		if !http.IsToken(name) {
			errs = append(errs, fmt.Errorf("headers: invalid header name %q", name))
		}
	}
	switch hlog.Format(cfg.LogFormat) {
	case "", hlog.FormatJSON, hlog.FormatText:
	default:
		errs = append(errs, fmt.Errorf("logFormat: unknown format %q", cfg.LogFormat))
	}
	return errors.Join(errs...)
}
