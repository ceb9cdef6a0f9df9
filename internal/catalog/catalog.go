// Package catalog holds the immutable template catalog: the abstract table
// roles macros depend on, and the macro definitions themselves. The catalog
// is built once at startup (by the loader or by tests) and is read-only for
// the rest of the process.
package catalog

import (
	"fmt"
)

// Role is an abstract table placeholder that macro templates depend on.
// Roles are declared once in the catalog; at runtime each role may be bound
// to a concrete table the engine can resolve.
type Role struct {
	Name        string   `koanf:"name"`
	Description string   `koanf:"description"`
	Columns     []string `koanf:"columns"`
	Category    string   `koanf:"category"`
}

// Param is a formal parameter of a macro template.
// Default is the SQL fragment used when the caller omits the argument;
// nil means the parameter has no default and must be supplied.
type Param struct {
	Name    string
	Type    string
	Default *string
}

// HasDefault reports whether the parameter declares a default value.
func (p Param) HasDefault() bool { return p.Default != nil }

// Macro is a parameterized, table-returning query template.
//
// The Body references dependency roles through {{role}} table placeholders
// and formal parameters through [[param]] placeholders. Needs lists the
// roles the macro depends on, in declaration order; every entry must name a
// role declared in the same catalog.
type Macro struct {
	ID          string
	Title       string
	Description string
	Category    string
	Params      []Param
	Needs       []string
	Body        string
}

// Catalog is the immutable set of roles and macros for one session.
type Catalog struct {
	roles  []Role
	macros []Macro

	roleIdx  map[string]int
	macroIdx map[string]int
	byRole   map[string][]int // role name -> indices of dependent macros
}

// New builds a catalog from role and macro definitions, preserving
// declaration order. It rejects duplicate role names, duplicate macro IDs,
// duplicate parameter names within a macro, and macros whose Needs reference
// undeclared roles.
func New(roles []Role, macros []Macro) (*Catalog, error) {
	c := &Catalog{
		roles:    make([]Role, len(roles)),
		macros:   make([]Macro, len(macros)),
		roleIdx:  make(map[string]int, len(roles)),
		macroIdx: make(map[string]int, len(macros)),
		byRole:   make(map[string][]int),
	}
	copy(c.roles, roles)
	copy(c.macros, macros)

	for i, r := range c.roles {
		if r.Name == "" {
			return nil, fmt.Errorf("role %d: name is required", i)
		}
		if _, dup := c.roleIdx[r.Name]; dup {
			return nil, fmt.Errorf("duplicate role %q", r.Name)
		}
		c.roleIdx[r.Name] = i
	}

	for i, m := range c.macros {
		if m.ID == "" {
			return nil, fmt.Errorf("macro %d: id is required", i)
		}
		if _, dup := c.macroIdx[m.ID]; dup {
			return nil, fmt.Errorf("duplicate macro %q", m.ID)
		}
		c.macroIdx[m.ID] = i

		seen := make(map[string]struct{}, len(m.Params))
		for _, p := range m.Params {
			if p.Name == "" {
				return nil, fmt.Errorf("macro %q: parameter name is required", m.ID)
			}
			if _, dup := seen[p.Name]; dup {
				return nil, fmt.Errorf("macro %q: duplicate parameter %q", m.ID, p.Name)
			}
			seen[p.Name] = struct{}{}
		}

		for _, need := range m.Needs {
			if _, ok := c.roleIdx[need]; !ok {
				return nil, fmt.Errorf("macro %q needs undeclared role %q", m.ID, need)
			}
			c.byRole[need] = append(c.byRole[need], i)
		}
	}

	return c, nil
}

// Roles returns the declared roles in declaration order.
func (c *Catalog) Roles() []Role {
	out := make([]Role, len(c.roles))
	copy(out, c.roles)
	return out
}

// Macros returns the declared macros in declaration order.
func (c *Catalog) Macros() []Macro {
	out := make([]Macro, len(c.macros))
	copy(out, c.macros)
	return out
}

// Role looks up a role by name.
func (c *Catalog) Role(name string) (Role, bool) {
	i, ok := c.roleIdx[name]
	if !ok {
		return Role{}, false
	}
	return c.roles[i], true
}

// Macro looks up a macro by ID.
func (c *Catalog) Macro(id string) (Macro, bool) {
	i, ok := c.macroIdx[id]
	if !ok {
		return Macro{}, false
	}
	return c.macros[i], true
}

// HasRole reports whether a role with the given name is declared.
func (c *Catalog) HasRole(name string) bool {
	_, ok := c.roleIdx[name]
	return ok
}

// MacrosNeeding returns the macros that depend on the given role, in
// declaration order. Unknown roles yield an empty slice.
func (c *Catalog) MacrosNeeding(role string) []Macro {
	idxs := c.byRole[role]
	out := make([]Macro, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, c.macros[i])
	}
	return out
}

// RoleCount returns the number of declared roles.
func (c *Catalog) RoleCount() int { return len(c.roles) }

// MacroCount returns the number of declared macros.
func (c *Catalog) MacroCount() int { return len(c.macros) }
