// Package commands implements the macrodesk subcommands. Each command
// builds a CommandContext from the cobra context, runs its work against
// the session, and renders through the shared output renderer.
package commands

import (
	"context"
	"log/slog"

	"github.com/macrodesk-labs/macrodesk/internal/cli/config"
	"github.com/macrodesk-labs/macrodesk/internal/cli/output"
	"github.com/macrodesk-labs/macrodesk/internal/session"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Session  *session.Session
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext with an open session.
// Returns the context and a cleanup function that must be called
// (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cmdCtx := NewCommandContextWithoutSession(cmd)

	sess, err := session.Open(cmd.Context(), session.Config{
		CatalogDir:   cmdCtx.Cfg.CatalogDir,
		DatabasePath: cmdCtx.Cfg.DatabasePath,
		Logger:       cmdCtx.Logger,
	})
	if err != nil {
		return nil, nil, err
	}
	cmdCtx.Session = sess

	cleanup := func() {
		_ = sess.Close(context.Background())
	}

	return cmdCtx, cleanup, nil
}

// NewCommandContextWithoutSession creates a CommandContext without opening
// the engine. Useful for commands that only need config and rendering.
func NewCommandContextWithoutSession(cmd *cobra.Command) *CommandContext {
	cfg := config.GetConfig(cmd.Context())
	logger := config.GetLogger(cmd.Context())
	mode := output.Mode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}
