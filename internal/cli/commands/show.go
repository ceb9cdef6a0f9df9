package commands

import (
	"fmt"
	"strings"

	"github.com/macrodesk-labs/macrodesk/internal/cli/output"
	"github.com/macrodesk-labs/macrodesk/internal/sqlgen"
	"github.com/macrodesk-labs/macrodesk/internal/view"
	"github.com/spf13/cobra"
)

// NewShowCommand creates the show command.
func NewShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <template-id>",
		Short: "Show a template's details",
		Long: `Show one template in full: description, parameters, the roles it needs
and their bindings, and (when runnable) the generated macro definition and a
ready-to-edit invocation.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			return runShow(cmdCtx, args[0])
		},
	}
}

// templateDetail is the JSON shape of a show.
type templateDetail struct {
	view.TemplateStatus
	Invocation string `json:"invocation,omitempty"`
	Definition string `json:"definition,omitempty"`
}

func runShow(cmdCtx *CommandContext, id string) error {
	s := cmdCtx.Session
	r := cmdCtx.Renderer
	bindings := s.Snapshot()

	st, ok := s.View.Status(id, bindings)
	if !ok {
		return fmt.Errorf("unknown template %q", id)
	}

	detail := templateDetail{TemplateStatus: st}
	if st.Satisfied {
		detail.Invocation = sqlgen.InvocationSQL(st.Macro)
		if def, err := sqlgen.DefinitionSQL(st.Macro, bindings); err == nil {
			detail.Definition = def
		}
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(detail)
	case output.ModeMarkdown:
		return renderShowMarkdown(r, detail, bindings)
	default:
		return renderShowText(r, detail, bindings)
	}
}

func renderShowText(r *output.Renderer, d templateDetail, bindings map[string]string) error {
	styles := r.Styles()
	m := d.Macro

	r.Println()
	title := m.ID
	if m.Title != "" {
		title += " - " + m.Title
	}
	r.Println(styles.Header1.Render(title))
	if m.Description != "" {
		r.Println(styles.Muted.Render(m.Description))
	}
	r.Println()

	if m.Category != "" {
		r.Printf("  %s: %s\n", styles.Bold.Render("Category"), m.Category)
	}

	if len(m.Needs) > 0 {
		r.Println("  " + styles.Bold.Render("Needs"))
		for _, role := range m.Needs {
			if table, ok := bindings[role]; ok {
				r.Printf("    %s -> %s\n", role, table)
			} else {
				r.Printf("    %s %s\n", role, styles.Warning.Render("(unbound)"))
			}
		}
	}

	if len(m.Params) > 0 {
		r.Println("  " + styles.Bold.Render("Parameters"))
		for _, p := range m.Params {
			line := fmt.Sprintf("    %s", p.Name)
			if p.Type != "" {
				line += " " + styles.Muted.Render(p.Type)
			}
			if p.HasDefault() {
				line += styles.Muted.Render(fmt.Sprintf(" (default %s)", *p.Default))
			} else {
				line += styles.Muted.Render(" (required)")
			}
			r.Println(line)
		}
	}
	r.Println()

	if !d.Satisfied {
		r.Println(styles.Warning.Render("Not runnable: needs " + strings.Join(d.Missing, ", ")))
		return nil
	}

	r.Println("  " + styles.Bold.Render("Invocation"))
	r.Println("    " + d.Invocation)
	r.Println()
	r.Println("  " + styles.Bold.Render("Definition"))
	for _, line := range strings.Split(d.Definition, "\n") {
		r.Println(styles.Muted.Render("    " + line))
	}
	return nil
}

func renderShowMarkdown(r *output.Renderer, d templateDetail, bindings map[string]string) error {
	m := d.Macro

	title := m.ID
	if m.Title != "" {
		title += " - " + m.Title
	}
	r.Println(output.FormatHeader(1, title))
	r.Println()
	if m.Description != "" {
		r.Println(m.Description)
		r.Println()
	}

	if m.Category != "" {
		r.Println(output.FormatKeyValue("Category", m.Category))
	}
	for _, role := range m.Needs {
		if table, ok := bindings[role]; ok {
			r.Println(output.FormatKeyValue("Needs "+role, table))
		} else {
			r.Println(output.FormatKeyValue("Needs "+role, "(unbound)"))
		}
	}
	for _, p := range m.Params {
		val := "required"
		if p.HasDefault() {
			val = "default " + *p.Default
		}
		r.Println(output.FormatKeyValue("Param "+p.Name, val))
	}
	r.Println()

	if !d.Satisfied {
		r.Printf("Not runnable: needs %s\n", strings.Join(d.Missing, ", "))
		return nil
	}

	r.Println("## Invocation")
	r.Println()
	r.Println("```sql")
	r.Println(d.Invocation)
	r.Println("```")
	r.Println()
	r.Println("## Definition")
	r.Println()
	r.Println("```sql")
	r.Println(d.Definition)
	r.Println("```")
	return nil
}
