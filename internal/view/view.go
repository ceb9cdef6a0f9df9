// Package view provides the read-only template catalog projections consumed
// by the CLI and HTTP layers: which templates are runnable against the
// current bindings, what is missing for the rest, grouping, search, and
// availability counts. Every method is a pure function of the catalog and a
// bindings snapshot, safe to call at arbitrary frequency.
package view

import (
	"math"
	"sort"
	"strings"

	"github.com/macrodesk-labs/macrodesk/internal/catalog"
	"github.com/macrodesk-labs/macrodesk/internal/sqlgen"
)

// OtherCategory is the bucket for macros with no category tag.
const OtherCategory = "other"

// View answers presentation-layer queries over one immutable catalog.
type View struct {
	catalog *catalog.Catalog
}

// New creates a view over the catalog.
func New(cat *catalog.Catalog) *View {
	return &View{catalog: cat}
}

// RunnableTemplate is a satisfied macro paired with a ready-to-edit
// invocation statement.
type RunnableTemplate struct {
	Macro      catalog.Macro `json:"macro"`
	Invocation string        `json:"invocation"`
}

// TemplateStatus annotates a macro with its satisfaction state. Missing is
// nil for satisfied macros and lists the unbound roles, in the macro's
// dependency order, otherwise.
type TemplateStatus struct {
	Macro     catalog.Macro `json:"macro"`
	Satisfied bool          `json:"satisfied"`
	Missing   []string      `json:"missing,omitempty"`
}

// Runnable returns every macro whose dependency roles are all bound, with
// its invocation SQL, in catalog declaration order.
func (v *View) Runnable(bindings map[string]string) []RunnableTemplate {
	var out []RunnableTemplate
	for _, m := range v.catalog.Macros() {
		if !sqlgen.Validate(m, bindings).Satisfied {
			continue
		}
		out = append(out, RunnableTemplate{
			Macro:      m,
			Invocation: sqlgen.InvocationSQL(m),
		})
	}
	return out
}

// Statuses returns every macro with its satisfaction state, in catalog
// declaration order.
func (v *View) Statuses(bindings map[string]string) []TemplateStatus {
	macros := v.catalog.Macros()
	out := make([]TemplateStatus, 0, len(macros))
	for _, m := range macros {
		out = append(out, status(m, bindings))
	}
	return out
}

// Status returns the satisfaction state for a single macro.
func (v *View) Status(id string, bindings map[string]string) (TemplateStatus, bool) {
	m, ok := v.catalog.Macro(id)
	if !ok {
		return TemplateStatus{}, false
	}
	return status(m, bindings), true
}

// CategoryGroup collects the template statuses sharing one category tag.
type CategoryGroup struct {
	Category  string           `json:"category"`
	Templates []TemplateStatus `json:"templates"`
}

// ByCategory groups templates by their category tag, category names sorted
// alphabetically with the "other" bucket (uncategorized macros) last. With
// includeUnsatisfied false, unsatisfied templates are dropped and categories
// left empty by the filter are omitted.
func (v *View) ByCategory(bindings map[string]string, includeUnsatisfied bool) []CategoryGroup {
	groups := make(map[string][]TemplateStatus)
	for _, m := range v.catalog.Macros() {
		st := status(m, bindings)
		if !st.Satisfied && !includeUnsatisfied {
			continue
		}
		cat := m.Category
		if cat == "" {
			cat = OtherCategory
		}
		groups[cat] = append(groups[cat], st)
	}

	names := make([]string, 0, len(groups))
	for name := range groups {
		if name == OtherCategory {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	if _, ok := groups[OtherCategory]; ok {
		names = append(names, OtherCategory)
	}

	out := make([]CategoryGroup, 0, len(names))
	for _, name := range names {
		out = append(out, CategoryGroup{Category: name, Templates: groups[name]})
	}
	return out
}

// Search filters templates by a case-insensitive substring match over title,
// description, category, and ID. An empty query returns the unfiltered set.
// With includeUnsatisfied false, unsatisfied templates are dropped before
// matching.
func (v *View) Search(query string, bindings map[string]string, includeUnsatisfied bool) []TemplateStatus {
	q := strings.ToLower(strings.TrimSpace(query))

	var out []TemplateStatus
	for _, m := range v.catalog.Macros() {
		st := status(m, bindings)
		if !st.Satisfied && !includeUnsatisfied {
			continue
		}
		if q != "" && !matches(m, q) {
			continue
		}
		out = append(out, st)
	}
	return out
}

// RoleUsage annotates a catalog role with its binding state and how many
// macros depend on it.
type RoleUsage struct {
	Role       catalog.Role `json:"role"`
	Bound      bool         `json:"bound"`
	BoundTable string       `json:"bound_table,omitempty"`
	MacroCount int          `json:"macro_count"`
}

// RoleUsages returns every catalog role with its usage count, in catalog
// declaration order. MacroCount drives "upload this to unlock N templates"
// messaging.
func (v *View) RoleUsages(bindings map[string]string) []RoleUsage {
	roles := v.catalog.Roles()
	out := make([]RoleUsage, 0, len(roles))
	for _, r := range roles {
		table, bound := bindings[r.Name]
		out = append(out, RoleUsage{
			Role:       r,
			Bound:      bound,
			BoundTable: table,
			MacroCount: len(v.catalog.MacrosNeeding(r.Name)),
		})
	}
	return out
}

// Availability counts satisfied macros against the catalog total.
type Availability struct {
	Satisfied int `json:"satisfied"`
	Total     int `json:"total"`
	Percent   int `json:"percent"`
}

// Summary reports how many templates are currently satisfied. Percent is
// rounded to the nearest integer; an empty catalog reports 0%.
func (v *View) Summary(bindings map[string]string) Availability {
	total := v.catalog.MacroCount()
	satisfied := 0
	for _, m := range v.catalog.Macros() {
		if sqlgen.Validate(m, bindings).Satisfied {
			satisfied++
		}
	}

	percent := 0
	if total > 0 {
		percent = int(math.Round(float64(satisfied) / float64(total) * 100))
	}
	return Availability{Satisfied: satisfied, Total: total, Percent: percent}
}

func status(m catalog.Macro, bindings map[string]string) TemplateStatus {
	sat := sqlgen.Validate(m, bindings)
	return TemplateStatus{Macro: m, Satisfied: sat.Satisfied, Missing: sat.Missing}
}

func matches(m catalog.Macro, q string) bool {
	for _, field := range []string{m.Title, m.Description, m.Category, m.ID} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}
