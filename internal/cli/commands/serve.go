package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/macrodesk-labs/macrodesk/internal/server"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the workspace over HTTP",
		Long: `Start a local HTTP server around a long-lived session.

The server exposes a JSON API for bindings, tables, and the template
catalog, plus a server-sent-events stream that fires after each binding
change settles. With watching enabled, data files dropped into the drop
directory are loaded and role-bound automatically.`,
		Example: `  # Serve on the default port
  macrodesk serve

  # Custom port, no drop-directory watching
  macrodesk serve --port 9000 --watch=false`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd)
		},
	}
}

func runServe(cmd *cobra.Command) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	srvCfg := cmdCtx.Cfg.GetServerConfig()

	dropDir := cmdCtx.Cfg.DropDir
	if srvCfg.Watch && dropDir != "" {
		if err := os.MkdirAll(dropDir, 0750); err != nil {
			return fmt.Errorf("failed to create drop directory: %w", err)
		}
	}

	srv := server.New(server.Config{
		Session: cmdCtx.Session,
		Port:    srvCfg.Port,
		DropDir: dropDir,
		Watch:   srvCfg.Watch,
		Logger:  cmdCtx.Logger,
	})

	r := cmdCtx.Renderer
	r.Printf("Serving on http://localhost:%d\n", srvCfg.Port)
	r.Println("Press Ctrl+C to stop")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return srv.Serve(ctx)
}
