package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// NewRmCommand creates the rm command.
func NewRmCommand() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "rm [table]",
		Short: "Remove workspace tables",
		Long: `Drop a workspace table. The role bound to it (if any) is unbound and the
templates that depended on that role deactivate.`,
		Example: `  # Remove one table
  macrodesk rm q2_orders

  # Clear the whole workspace
  macrodesk rm --all`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) == 1) {
				return fmt.Errorf("specify a table name or --all, not both")
			}

			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if all {
				return runRmAll(cmd.Context(), cmdCtx)
			}
			return runRm(cmd.Context(), cmdCtx, args[0])
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Remove every workspace table and clear all bindings")

	return cmd
}

func runRm(ctx context.Context, cmdCtx *CommandContext, table string) error {
	s := cmdCtx.Session
	r := cmdCtx.Renderer

	role, err := s.Workspace.Remove(ctx, table)
	if err != nil {
		return err
	}
	s.Activation.Wait()

	r.Printf("Dropped %s\n", table)
	if role != "" {
		r.Println(r.Styles().Muted.Render(fmt.Sprintf("  unbound role %s", role)))
	}
	return nil
}

func runRmAll(ctx context.Context, cmdCtx *CommandContext) error {
	s := cmdCtx.Session
	r := cmdCtx.Renderer

	n, err := s.Workspace.RemoveAll(ctx)
	if err != nil {
		return err
	}
	s.Activation.Wait()

	r.Printf("Dropped %d table(s), cleared all bindings\n", n)
	return nil
}
