// Package sqlgen turns catalog macros plus a bindings snapshot into the SQL
// statements the query engine consumes. Everything here is a pure function;
// nothing touches the engine or the binding table.
//
// Two placeholder syntaxes appear in macro bodies: {{role}} marks a table
// role to be replaced with its bound concrete table, and [[param]] marks a
// formal parameter. Parameter placeholders are replaced with the bare
// parameter name in definitions, so the generated macro stays parameterized
// instead of baking in a value.
package sqlgen

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/macrodesk-labs/macrodesk/internal/catalog"
)

var (
	tablePattern = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)
	paramPattern = regexp.MustCompile(`\[\[\s*([A-Za-z_][A-Za-z0-9_]*)\s*\]\]`)
)

// Placeholders returns the unique table role names referenced by a SQL body,
// in order of first appearance.
func Placeholders(body string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, m := range tablePattern.FindAllStringSubmatch(body, -1) {
		name := m[1]
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// Satisfaction reports whether a macro's role dependencies are covered by a
// bindings snapshot, and which roles are missing if not.
type Satisfaction struct {
	Satisfied bool
	Missing   []string
}

// Validate checks every dependency role of the macro against the bindings
// snapshot. Missing roles are listed in the macro's declaration order.
func Validate(m catalog.Macro, bindings map[string]string) Satisfaction {
	var missing []string
	for _, need := range m.Needs {
		if _, ok := bindings[need]; !ok {
			missing = append(missing, need)
		}
	}
	return Satisfaction{Satisfied: len(missing) == 0, Missing: missing}
}

// DefinitionSQL builds the statement that defines the macro against the
// engine: comment-only lines are stripped from the body, every {{role}}
// occurrence is replaced with its bound table, every [[param]] occurrence is
// replaced with the bare parameter name, and the result is wrapped in a
// CREATE OR REPLACE MACRO ... AS TABLE statement.
//
// Callers are expected to have validated satisfaction first; a body that
// still references an unbound role after substitution is a caller error and
// is returned as one.
func DefinitionSQL(m catalog.Macro, bindings map[string]string) (string, error) {
	body := stripCommentLines(m.Body)

	body = tablePattern.ReplaceAllStringFunc(body, func(tok string) string {
		name := tablePattern.FindStringSubmatch(tok)[1]
		if table, ok := bindings[name]; ok {
			return table
		}
		return tok
	})

	if leftover := Placeholders(body); len(leftover) > 0 {
		sort.Strings(leftover)
		return "", fmt.Errorf("macro %q: unresolved table placeholders: %s",
			m.ID, strings.Join(leftover, ", "))
	}

	body = paramPattern.ReplaceAllString(body, "$1")

	return fmt.Sprintf("CREATE OR REPLACE MACRO %s(%s) AS TABLE %s",
		m.ID, definitionParams(m.Params), strings.TrimSpace(body)), nil
}

// InvocationSQL builds a ready-to-edit sample call for the macro. Parameters
// with declared defaults are filled in; parameters without one appear as an
// editable [[name]] token for the user to replace.
func InvocationSQL(m catalog.Macro) string {
	args := make([]string, 0, len(m.Params))
	for _, p := range m.Params {
		if p.Default != nil {
			args = append(args, *p.Default)
		} else {
			args = append(args, "[["+p.Name+"]]")
		}
	}
	return fmt.Sprintf("SELECT * FROM %s(%s)", m.ID, strings.Join(args, ", "))
}

// CallSQL builds the invocation for a macro with concrete argument
// expressions, positionally. Arguments beyond those given fall back to the
// parameter defaults; a missing argument for a parameter without a default
// is an error, as is an argument surplus.
func CallSQL(m catalog.Macro, args []string) (string, error) {
	if len(args) > len(m.Params) {
		return "", fmt.Errorf("%s takes %d argument(s), got %d", m.ID, len(m.Params), len(args))
	}

	filled := make([]string, 0, len(m.Params))
	for i, p := range m.Params {
		switch {
		case i < len(args):
			filled = append(filled, args[i])
		case p.Default != nil:
			filled = append(filled, *p.Default)
		default:
			return "", fmt.Errorf("%s: missing argument for parameter %q", m.ID, p.Name)
		}
	}
	return fmt.Sprintf("SELECT * FROM %s(%s)", m.ID, strings.Join(filled, ", ")), nil
}

// DropSQL is the drop statement for a table-returning macro.
func DropSQL(id string) string {
	return fmt.Sprintf("DROP MACRO TABLE IF EXISTS %s", id)
}

// DropSQLFallback is the generic drop form, used when the engine rejects the
// table-macro drop syntax.
func DropSQLFallback(id string) string {
	return fmt.Sprintf("DROP MACRO IF EXISTS %s", id)
}

// definitionParams renders the formal parameter list for a definition.
// Defaults use the engine's named-default syntax: "name := value".
func definitionParams(params []catalog.Param) string {
	parts := make([]string, 0, len(params))
	for _, p := range params {
		if p.Default != nil {
			parts = append(parts, fmt.Sprintf("%s := %s", p.Name, *p.Default))
		} else {
			parts = append(parts, p.Name)
		}
	}
	return strings.Join(parts, ", ")
}

// stripCommentLines drops lines whose first non-blank characters are the SQL
// line-comment marker. This is a line-prefix heuristic: a "--" inside a
// string literal mid-line is left alone, but a literal spanning lines that
// start with "--" would be mangled.
func stripCommentLines(body string) string {
	lines := strings.Split(body, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
