package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clinicdesk/localbase/cli/internal/version"
)

// NewVersionCommand creates the version command.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version.Get().FullString())
		},
	}
}
