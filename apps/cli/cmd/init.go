package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hitclient/packages/core/config"
)

const exampleEnv = `# Values for {{$NAME}} placeholders. Variables already set in the
# environment take precedence.
API_TOKEN=change-me
`

func newInitCmd() *cobra.Command {
	var (
		force  bool
		format string
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a hitclient config file",
		Long: `Create a hitclient configuration in the current directory.

This creates:
  - .hitclient.yaml  - Defaults applied to every request
  - .env.example     - Example variables for {{$NAME}} placeholders

Examples:
  hitclient init
  hitclient init --format json
  hitclient init --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return exitWith(ExitConfigError, err)
			}
			return initProject(cmd, cwd, format, force)
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing files")
	cmd.Flags().StringVar(&format, "format", "yaml", "Config file format: yaml or json")
	return cmd
}

func initProject(cmd *cobra.Command, dir, format string, force bool) error {
	var configFile string
	switch format {
	case "yaml", "yml":
		configFile = filepath.Join(dir, ".hitclient.yaml")
	case "json":
		configFile = filepath.Join(dir, ".hitclient.json")
	default:
		return exitWith(ExitUsageError, fmt.Errorf("unknown config format %q (expected yaml or json)", format))
	}
	envFile := filepath.Join(dir, ".env.example")

	if !force {
		for _, f := range []string{configFile, envFile} {
			if _, err := os.Stat(f); err == nil {
				return exitWith(ExitConfigError, fmt.Errorf("file already exists: %s (use --force to overwrite)", f))
			}
		}
	}

	cfg := config.DefaultConfig()
	cfg.BaseURL = "http://localhost:3000"
	cfg.Expect = "json"
	cfg.Headers = map[string]string{
		"Accept":        "application/json",
		"Authorization": "Bearer {{$API_TOKEN}}",
	}
	cfg.RequestIDHeader = "X-Request-Id"

	if err := cfg.SaveConfig(configFile); err != nil {
		return exitWith(ExitConfigError, fmt.Errorf("failed to create config file: %w", err))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", configFile)

	if err := os.WriteFile(envFile, []byte(exampleEnv), 0644); err != nil {
		return exitWith(ExitConfigError, fmt.Errorf("failed to create env file: %w", err))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", envFile)

	fmt.Fprintf(cmd.OutOrStdout(), "\nhitclient initialized!\n")
	fmt.Fprintf(cmd.OutOrStdout(), "Run 'hitclient get /health --env-file .env.example' to send a request.\n")
	return nil
}
