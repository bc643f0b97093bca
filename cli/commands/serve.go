package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/clinicdesk/localbase/auth"
	"github.com/clinicdesk/localbase/cli/internal/ui"
	"github.com/clinicdesk/localbase/server"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the local HTTP surface",
		Long:  "Serve POST /rest/query, POST /auth/token, GET /healthz, and GET /metrics for same-machine companion tools.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default "+server.DefaultAddr+")")

	return cmd
}

func runServe(addr string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.ServerAddr = addr
	}

	app, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	secret := cfg.TokenSecret
	if secret == "" {
		if secret, err = randomSecret(); err != nil {
			return err
		}
		ui.PrintWarning("no auth.token_secret configured; sessions will not survive a restart")
	}

	srv := server.New(app.client, auth.New(app.client, secret))

	listen := cfg.ServerAddr
	if listen == "" {
		listen = server.DefaultAddr
	}
	ui.PrintInfo("serving on http://%s (ctrl-c to stop)", listen)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run(cfg.ServerAddr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-quit:
		ui.PrintInfo("shutting down")
		return nil
	}
}
