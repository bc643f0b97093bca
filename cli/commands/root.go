// Package commands implements the CLI commands.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/clinicdesk/localbase/cli/internal/version"
	"github.com/clinicdesk/localbase/internal/debug"
)

var (
	flagDir     string
	flagVerbose bool
)

// Execute is the main entry point for the CLI
func Execute() error {
	return newRootCommand().Execute()
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:     "localbase",
		Short:   "Local clinic data store and query layer",
		Long:    "localbase keeps clinic data in an embedded single-file database and answers PostgREST-style queries against it, from the terminal or over a local HTTP surface.",
		Version: version.Get().String(),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			debug.Init(flagVerbose)
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagDir, "dir", "", "app-data directory (default ~/.config/localbase)")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(NewInitCommand())
	root.AddCommand(NewQueryCommand())
	root.AddCommand(NewServeCommand())
	root.AddCommand(NewTablesCommand())
	root.AddCommand(NewVersionCommand())

	return root
}
