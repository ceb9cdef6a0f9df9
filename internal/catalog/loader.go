package catalog

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// RolesFileName is the role declaration file expected inside a catalog
// directory, next to the *.sql template files.
const RolesFileName = "roles.yaml"

// Loader reads a catalog directory: a roles.yaml declaring the table roles
// and any number of .sql template files with YAML frontmatter.
type Loader struct {
	dir    string
	logger *slog.Logger
}

// NewLoader creates a loader for the given catalog directory.
func NewLoader(dir string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Loader{dir: dir, logger: logger}
}

// Load reads the directory and builds a validated catalog.
func (l *Loader) Load() (*Catalog, error) {
	info, err := os.Stat(l.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to access catalog directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("catalog path is not a directory: %s", l.dir)
	}

	roles, err := l.loadRoles()
	if err != nil {
		return nil, err
	}

	macros, err := l.loadTemplates()
	if err != nil {
		return nil, err
	}

	cat, err := New(roles, macros)
	if err != nil {
		return nil, fmt.Errorf("invalid catalog in %s: %w", l.dir, err)
	}

	l.logger.Info("catalog loaded",
		"dir", l.dir,
		"roles", cat.RoleCount(),
		"templates", cat.MacroCount())

	return cat, nil
}

// rolesFile mirrors the structure of roles.yaml.
type rolesFile struct {
	Roles []Role `koanf:"roles"`
}

// loadRoles reads roles.yaml. A missing file yields an empty role list,
// which is only useful for catalogs whose templates need no roles.
func (l *Loader) loadRoles() ([]Role, error) {
	path := filepath.Join(l.dir, RolesFileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		l.logger.Debug("no roles file found", "path", path)
		return nil, nil
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", RolesFileName, err)
	}

	var rf rolesFile
	if err := k.Unmarshal("", &rf); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", RolesFileName, err)
	}

	return rf.Roles, nil
}

// loadTemplates parses every .sql file in the directory into a macro.
func (l *Loader) loadTemplates() ([]Macro, error) {
	pattern := filepath.Join(l.dir, "*.sql")
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to scan catalog directory: %w", err)
	}

	var macros []Macro
	for _, path := range files {
		m, err := l.loadTemplate(path)
		if err != nil {
			return nil, err
		}
		macros = append(macros, m)
	}

	return macros, nil
}

// loadTemplate parses a single template file.
func (l *Loader) loadTemplate(path string) (Macro, error) {
	content, err := os.ReadFile(path) //nolint:gosec // G304: path comes from filepath.Glob within the catalog directory
	if err != nil {
		return Macro{}, &LoadError{File: path, Message: fmt.Sprintf("failed to read file: %v", err)}
	}

	result, err := ExtractFrontmatter(string(content))
	if err != nil {
		return Macro{}, &LoadError{File: path, Message: err.Error()}
	}

	base := filepath.Base(path)
	result.Config.ApplyDefaults(base)

	if err := validateMacroID(result.Config.ID); err != nil {
		return Macro{}, &LoadError{File: path, Message: err.Error()}
	}
	if strings.TrimSpace(result.SQL) == "" {
		return Macro{}, &LoadError{File: path, Message: "template has no SQL body"}
	}

	l.logger.Debug("parsed template", "path", path, "id", result.Config.ID)

	return result.Config.Macro(result.SQL), nil
}

// validateMacroID checks that an ID is usable as a SQL macro name.
func validateMacroID(id string) error {
	if id == "" {
		return fmt.Errorf("macro id cannot be empty")
	}

	for i, r := range id {
		if i == 0 {
			if !isLetter(r) && r != '_' {
				return fmt.Errorf("macro id must start with letter or underscore: %s", id)
			}
		} else {
			if !isLetter(r) && !isDigit(r) && r != '_' {
				return fmt.Errorf("macro id contains invalid character: %s", id)
			}
		}
	}

	return nil
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// LoadError represents an error loading a catalog file.
type LoadError struct {
	File    string
	Message string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s", filepath.Base(e.File), e.Message)
}
