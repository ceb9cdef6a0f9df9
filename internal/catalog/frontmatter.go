package catalog

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Frontmatter represents the parsed YAML header of a template file.
// Unknown fields cause parse errors (use Meta for extensions).
type Frontmatter struct {
	ID          string         `yaml:"id"`
	Title       string         `yaml:"title"`
	Description string         `yaml:"description"`
	Category    string         `yaml:"category"`
	Needs       []string       `yaml:"needs"`
	Params      []ParamSpec    `yaml:"params"`
	Meta        map[string]any `yaml:"meta"` // Extension point for custom fields
}

// ParamSpec is the frontmatter form of a macro parameter. Default accepts
// any YAML scalar; it is rendered into SQL verbatim, so string defaults that
// are SQL string literals must carry their own quotes.
type ParamSpec struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	Default any    `yaml:"default"`
}

// FrontmatterResult holds the result of frontmatter extraction.
type FrontmatterResult struct {
	Config  *Frontmatter
	SQL     string // SQL body after frontmatter
	HasYAML bool   // Whether frontmatter was found
}

// frontmatterPattern matches /*--- ... ---*/ blocks
// The pattern allows optional content between the delimiters
var frontmatterPattern = regexp.MustCompile(`(?s)^\s*/\*---\s*\n(.*?)\s*---\*/`)

// ExtractFrontmatter extracts YAML frontmatter from template file content.
// Returns the parsed header, the remaining SQL body, and any error.
func ExtractFrontmatter(content string) (*FrontmatterResult, error) {
	result := &FrontmatterResult{
		Config:  &Frontmatter{},
		SQL:     content,
		HasYAML: false,
	}

	matches := frontmatterPattern.FindStringSubmatch(content)
	if matches == nil || len(matches) < 2 {
		// No frontmatter found, return content as-is
		return result, nil
	}

	result.HasYAML = true
	yamlContent := matches[1]

	// Remove the frontmatter block from the SQL body
	result.SQL = strings.TrimSpace(frontmatterPattern.ReplaceAllString(content, ""))

	// Parse YAML with strict mode to reject unknown fields
	config, err := parseFrontmatterYAML(yamlContent)
	if err != nil {
		return nil, err
	}

	result.Config = config
	return result, nil
}

// parseFrontmatterYAML parses YAML content with strict field validation.
func parseFrontmatterYAML(yamlContent string) (*Frontmatter, error) {
	// First, decode into a map to check for unknown fields
	var rawMap map[string]any
	if err := yaml.Unmarshal([]byte(yamlContent), &rawMap); err != nil {
		return nil, &FrontmatterParseError{
			Message: fmt.Sprintf("invalid YAML: %v", err),
		}
	}

	knownFields := map[string]bool{
		"id":          true,
		"title":       true,
		"description": true,
		"category":    true,
		"needs":       true,
		"params":      true,
		"meta":        true,
	}

	for field := range rawMap {
		if !knownFields[field] {
			return nil, &UnknownFieldError{
				Field: field,
			}
		}
	}

	// Now decode into the struct
	var config Frontmatter
	if err := yaml.Unmarshal([]byte(yamlContent), &config); err != nil {
		return nil, &FrontmatterParseError{
			Message: fmt.Sprintf("failed to parse frontmatter: %v", err),
		}
	}

	return &config, nil
}

// ApplyDefaults fills derivable fields from the file context:
// the macro ID falls back to the filename without its .sql extension.
func (f *Frontmatter) ApplyDefaults(filename string) {
	if f.ID == "" {
		f.ID = strings.TrimSuffix(filename, ".sql")
	}
}

// Macro converts the parsed frontmatter plus SQL body into a catalog macro.
func (f *Frontmatter) Macro(body string) Macro {
	params := make([]Param, 0, len(f.Params))
	for _, ps := range f.Params {
		params = append(params, Param{
			Name:    ps.Name,
			Type:    ps.Type,
			Default: renderDefault(ps.Default),
		})
	}
	return Macro{
		ID:          f.ID,
		Title:       f.Title,
		Description: f.Description,
		Category:    f.Category,
		Params:      params,
		Needs:       f.Needs,
		Body:        body,
	}
}

// renderDefault converts a YAML scalar default into its SQL spelling.
// nil stays nil, meaning the parameter is required.
func renderDefault(v any) *string {
	if v == nil {
		return nil
	}
	s := fmt.Sprint(v)
	return &s
}

// FrontmatterParseError represents a frontmatter parsing error.
type FrontmatterParseError struct {
	File    string
	Line    int
	Message string
}

func (e *FrontmatterParseError) Error() string {
	if e.File != "" {
		if e.Line > 0 {
			return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Message)
		}
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	}
	return e.Message
}

// UnknownFieldError represents an error for unknown frontmatter fields.
type UnknownFieldError struct {
	File  string
	Field string
}

func (e *UnknownFieldError) Error() string {
	msg := fmt.Sprintf("unknown field %q in frontmatter, use \"meta\" field for custom fields", e.Field)
	if e.File != "" {
		return fmt.Sprintf("%s: %s", e.File, msg)
	}
	return msg
}
