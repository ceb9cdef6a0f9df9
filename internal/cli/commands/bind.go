package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewBindCommand creates the bind command.
func NewBindCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "bind <role> <table>",
		Short: "Bind a catalog role to a workspace table",
		Long: `Bind an abstract table role to a concrete workspace table.

Templates whose roles are all bound activate in the background and become
runnable. Rebinding a role regenerates its dependent templates against the
new table; binding a table that already serves another role steals it from
that role first.`,
		Example: `  # Make the orders templates run against q2_orders
  macrodesk bind orders q2_orders`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			return runBind(cmd.Context(), cmdCtx, args[0], args[1])
		},
	}
}

// NewUnbindCommand creates the unbind command.
func NewUnbindCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unbind <role>",
		Short: "Remove a role's table binding",
		Long: `Unbind a catalog role. Templates that depended on the role deactivate and
drop out of the runnable set until the role is bound again.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			return runUnbind(cmdCtx, args[0])
		},
	}
}

func runBind(ctx context.Context, cmdCtx *CommandContext, role, table string) error {
	s := cmdCtx.Session
	r := cmdCtx.Renderer

	if !s.Catalog.HasRole(role) {
		return fmt.Errorf("unknown role %q (roles: %s)", role, strings.Join(roleNames(cmdCtx), ", "))
	}

	// Bindings do not require the table to exist, but a typo is the common
	// case on the command line.
	if exists, err := s.DB.TableExists(ctx, table); err == nil && !exists {
		r.Warnf("table %s does not exist yet; templates will fail until it is loaded", table)
	}

	before := activeSet(cmdCtx)
	s.Bindings.Bind(role, table)
	s.Activation.Wait()

	r.Printf("Bound %s -> %s\n", role, table)
	reportNewlyActive(cmdCtx, before)
	return nil
}

func runUnbind(cmdCtx *CommandContext, role string) error {
	s := cmdCtx.Session
	r := cmdCtx.Renderer

	if !s.Catalog.HasRole(role) {
		return fmt.Errorf("unknown role %q (roles: %s)", role, strings.Join(roleNames(cmdCtx), ", "))
	}

	if !s.Bindings.Unbind(role) {
		r.Printf("Role %s was not bound\n", role)
		return nil
	}
	s.Activation.Wait()

	sum := s.View.Summary(s.Snapshot())
	r.Printf("Unbound %s\n", role)
	r.Printf("%d of %d templates runnable\n", sum.Satisfied, sum.Total)
	return nil
}

func roleNames(cmdCtx *CommandContext) []string {
	roles := cmdCtx.Session.Catalog.Roles()
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, role.Name)
	}
	return names
}

func activeSet(cmdCtx *CommandContext) map[string]bool {
	out := make(map[string]bool)
	for _, id := range cmdCtx.Session.Activation.ActiveIDs() {
		out[id] = true
	}
	return out
}

func reportNewlyActive(cmdCtx *CommandContext, before map[string]bool) {
	r := cmdCtx.Renderer
	var fresh []string
	for _, id := range cmdCtx.Session.Activation.ActiveIDs() {
		if !before[id] {
			fresh = append(fresh, id)
		}
	}
	if len(fresh) > 0 {
		r.Println(r.Styles().Muted.Render("  now runnable: " + strings.Join(fresh, ", ")))
	}
}
