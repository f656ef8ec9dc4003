package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hitclient/packages/http"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

// verbs get a shortcut command each, e.g. "hitclient get URL".
var verbs = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
	http.MethodHead,
	http.MethodOptions,
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "hitclient",
		Short: "HTTP requests from the command line. No magic.",
		Long: `hitclient sends HTTP requests and prints the response, decoded by the
type you expect. Parameters, headers and file uploads are given as flags;
defaults come from a .hitclient.json or .hitclient.yaml file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newRequestCmd())
	for _, method := range verbs {
		root.AddCommand(newVerbCmd(method))
	}
	root.AddCommand(newInitCmd())
	root.AddCommand(newValidateCmd())
	root.AddCommand(newVersionCmd())
	root.AddCommand(newCompletionCmd())
	return root
}

func Execute(v, bt string) {
	version = v
	buildTime = bt
	err := newRootCmd().Execute()
	if err == nil {
		return
	}

	var exitErr *ExitError
	if !errors.As(err, &exitErr) || !exitErr.Silent {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(ExitCode(err))
}
