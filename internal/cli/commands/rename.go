package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// NewRenameCommand creates the rename command.
func NewRenameCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <old> <new>",
		Short: "Rename a workspace table",
		Long: `Rename a workspace table. A role bound to the old name follows the table,
so dependent templates stay runnable against the new name.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			return runRename(cmd.Context(), cmdCtx, args[0], args[1])
		},
	}
}

func runRename(ctx context.Context, cmdCtx *CommandContext, oldName, newName string) error {
	s := cmdCtx.Session
	r := cmdCtx.Renderer

	role, err := s.Workspace.Rename(ctx, oldName, newName)
	if err != nil {
		return err
	}
	s.Activation.Wait()

	r.Printf("Renamed %s to %s\n", oldName, newName)
	if role != "" {
		r.Println(r.Styles().Muted.Render(fmt.Sprintf("  role %s follows the table", role)))
	}
	return nil
}
