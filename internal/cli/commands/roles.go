package commands

import (
	"fmt"
	"strings"

	"github.com/macrodesk-labs/macrodesk/internal/cli/output"
	"github.com/spf13/cobra"
)

// NewRolesCommand creates the roles command.
func NewRolesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "roles",
		Short: "List catalog roles and their bindings",
		Long: `List the abstract table roles the catalog's templates depend on, which
table each role is bound to, and how many templates each role unlocks.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			return runRoles(cmdCtx)
		},
	}
}

func runRoles(cmdCtx *CommandContext) error {
	s := cmdCtx.Session
	r := cmdCtx.Renderer

	usages := s.View.RoleUsages(s.Snapshot())

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(usages)
	}

	if len(usages) == 0 {
		r.Println("The catalog declares no roles.")
		return nil
	}

	header := []string{"role", "bound table", "templates", "columns"}
	rows := make([][]string, 0, len(usages))
	for _, u := range usages {
		bound := u.BoundTable
		if !u.Bound {
			bound = "-"
		}
		rows = append(rows, []string{
			u.Role.Name,
			bound,
			fmt.Sprintf("%d", u.MacroCount),
			strings.Join(u.Role.Columns, ", "),
		})
	}

	if r.EffectiveMode() == output.ModeMarkdown {
		r.MarkdownTable(header, rows)
		return nil
	}
	r.Table(header, rows)

	sum := s.View.Summary(s.Snapshot())
	r.Printf("%d of %d templates runnable (%d%%)\n", sum.Satisfied, sum.Total, sum.Percent)
	return nil
}
