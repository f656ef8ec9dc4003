// Package cmd implements the hitclient CLI commands using Cobra.
//
// Available commands:
//   - request: Send a request with any method
//   - get, post, put, patch, delete, head, options: Verb shortcuts
//   - init: Create a config file and an example .env file
//   - validate: Check config files without sending a request
//   - version: Show hitclient version information
//   - completion: Generate shell completion scripts
//
// Request commands share flags for parameters, headers, file uploads,
// authentication, placeholders and output format. Exit codes are listed in
// exitcodes.go.
package cmd
