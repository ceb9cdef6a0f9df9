package commands

import (
	"fmt"
	"strings"

	"github.com/macrodesk-labs/macrodesk/internal/cli/output"
	"github.com/macrodesk-labs/macrodesk/internal/view"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// TemplatesOptions holds options for the templates command.
type TemplatesOptions struct {
	All    bool   // include templates whose roles are not bound
	Search string // substring filter over id, title, description, category
}

// NewTemplatesCommand creates the templates command.
func NewTemplatesCommand() *cobra.Command {
	opts := &TemplatesOptions{}

	cmd := &cobra.Command{
		Use:   "templates",
		Short: "List catalog templates",
		Long: `List the query templates in the catalog, grouped by category.

By default only runnable templates are shown (those whose table roles are
all bound). Use --all to include the rest along with the roles they are
waiting for.`,
		Example: `  # Runnable templates
  macrodesk templates

  # Everything, including templates waiting on unbound roles
  macrodesk templates --all

  # Filter by keyword
  macrodesk templates -q revenue --all`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			return runTemplates(cmdCtx, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.All, "all", "a", false, "Include templates with unbound roles")
	cmd.Flags().StringVarP(&opts.Search, "search", "q", "", "Filter templates by keyword")

	return cmd
}

func runTemplates(cmdCtx *CommandContext, opts *TemplatesOptions) error {
	s := cmdCtx.Session
	r := cmdCtx.Renderer
	bindings := s.Snapshot()

	if opts.Search != "" {
		statuses := s.View.Search(opts.Search, bindings, opts.All)
		return renderTemplateList(r, statuses, opts)
	}

	groups := s.View.ByCategory(bindings, opts.All)

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(groups)
	case output.ModeMarkdown:
		return renderTemplateGroupsMarkdown(r, groups, s.View.Summary(bindings))
	default:
		return renderTemplateGroupsText(r, groups, s.View.Summary(bindings), opts)
	}
}

func renderTemplateGroupsText(r *output.Renderer, groups []view.CategoryGroup, sum view.Availability, opts *TemplatesOptions) error {
	styles := r.Styles()

	if len(groups) == 0 {
		r.Println("No templates are runnable yet. Load data or bind roles, or use --all to see the catalog.")
		return nil
	}

	titleCaser := cases.Title(language.English)
	for _, g := range groups {
		r.Println()
		r.Println(styles.Header2.Render(titleCaser.String(g.Category)))
		for _, st := range g.Templates {
			marker := styles.StatusActive.String()
			if !st.Satisfied {
				marker = styles.StatusInactive.String()
			}
			line := fmt.Sprintf("  %s %s", marker, styles.Bold.Render(st.Macro.ID))
			if st.Macro.Title != "" {
				line += "  " + st.Macro.Title
			}
			r.Println(line)
			if !st.Satisfied {
				r.Println(styles.Muted.Render("      needs: " + strings.Join(st.Missing, ", ")))
			}
		}
	}

	r.Println()
	r.Println(styles.Muted.Render(fmt.Sprintf("%d of %d templates runnable (%d%%)", sum.Satisfied, sum.Total, sum.Percent)))
	if !opts.All && sum.Satisfied < sum.Total {
		r.Println(styles.Muted.Render("Use --all to see what the rest are waiting for"))
	}
	return nil
}

func renderTemplateGroupsMarkdown(r *output.Renderer, groups []view.CategoryGroup, sum view.Availability) error {
	r.Println(output.FormatHeader(1, fmt.Sprintf("Templates (%d of %d runnable)", sum.Satisfied, sum.Total)))
	r.Println()

	for _, g := range groups {
		r.Println(output.FormatHeader(2, g.Category))
		r.Println()
		for _, st := range g.Templates {
			state := "ready"
			if !st.Satisfied {
				state = "needs: " + strings.Join(st.Missing, ", ")
			}
			title := st.Macro.Title
			if title == "" {
				title = st.Macro.Description
			}
			r.Printf("- **%s** (%s): %s\n", st.Macro.ID, state, title)
		}
		r.Println()
	}
	return nil
}

// renderTemplateList renders the flat result of a keyword search.
func renderTemplateList(r *output.Renderer, statuses []view.TemplateStatus, opts *TemplatesOptions) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(statuses)
	}

	if len(statuses) == 0 {
		r.Printf("No templates match %q", opts.Search)
		if !opts.All {
			r.Printf(" (runnable only; try --all)")
		}
		r.Println()
		return nil
	}

	styles := r.Styles()
	for _, st := range statuses {
		marker := styles.StatusActive.String()
		if !st.Satisfied {
			marker = styles.StatusInactive.String()
		}
		line := fmt.Sprintf("%s %s", marker, styles.Bold.Render(st.Macro.ID))
		if st.Macro.Title != "" {
			line += "  " + st.Macro.Title
		}
		r.Println(line)
		if !st.Satisfied {
			r.Println(styles.Muted.Render("    needs: " + strings.Join(st.Missing, ", ")))
		}
	}
	return nil
}
