package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/clinicdesk/localbase/cli/internal/ui"
	"github.com/clinicdesk/localbase/cli/internal/watch"
	"github.com/clinicdesk/localbase/query/descriptor"
)

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	var watchFlag bool

	cmd := &cobra.Command{
		Use:   "query <file.json>",
		Short: "Run a query descriptor from a file",
		Long:  "Read a JSON query descriptor (table, op, filters, relations) from a file, run it against the database, and render the result.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(args[0], watchFlag)
		},
	}

	cmd.Flags().BoolVar(&watchFlag, "watch", false, "re-run when the file changes")

	return cmd
}

func runQuery(file string, watchMode bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	app, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	runOnce := func() error {
		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read descriptor: %w", err)
		}
		d, err := descriptor.DecodeWire(data)
		if err != nil {
			return fmt.Errorf("invalid descriptor: %w", err)
		}
		ui.RenderResult(app.client.Run(context.Background(), d))
		return nil
	}

	if !watchMode {
		return runOnce()
	}

	// In watch mode a broken descriptor is a state to recover from, not a
	// reason to exit.
	rerun := func() error {
		ui.PrintWatch("%s changed", file)
		if err := runOnce(); err != nil {
			ui.PrintError("%v", err)
		}
		return nil
	}

	if err := runOnce(); err != nil {
		ui.PrintError("%v", err)
	}

	watcher, err := watch.NewWatcher(file, rerun)
	if err != nil {
		return err
	}
	defer watcher.Stop()
	watcher.Start()

	ui.PrintWatch("watching %s (ctrl-c to stop)", file)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	fmt.Println()

	return nil
}
