package output

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Results drains a result set and renders it in the effective mode.
// The caller keeps ownership of rows and must close them.
func (r *Renderer) Results(rows *sql.Rows) error {
	cols, err := rows.Columns()
	if err != nil {
		return err
	}

	results := []map[string]any{}
	for rows.Next() {
		values := make([]any, len(cols))
		valuePtrs := make([]any, len(cols))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return err
		}

		row := make(map[string]any)
		for i, col := range cols {
			val := values[i]
			// Convert []byte to string for readability
			if b, ok := val.([]byte); ok {
				val = string(b)
			}
			row[col] = val
		}
		results = append(results, row)
	}

	if err := rows.Err(); err != nil {
		return err
	}

	switch r.EffectiveMode() {
	case ModeJSON:
		return r.renderJSON(results)
	case ModeCSV:
		return r.renderCSV(cols, results)
	case ModeMarkdown:
		return r.renderMarkdown(cols, results)
	default:
		return r.renderTable(cols, results)
	}
}

// Table renders a static listing with the given header. Commands use it
// for catalog listings where rows are already strings.
func (r *Renderer) Table(header []string, rows [][]string) {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleLight)

	headerRow := make(table.Row, len(header))
	for i, col := range header {
		headerRow[i] = col
	}
	t.AppendHeader(headerRow)

	for _, row := range rows {
		tr := make(table.Row, len(row))
		for i, cell := range row {
			tr[i] = cell
		}
		t.AppendRow(tr)
	}

	t.Render()
}

// MarkdownTable renders a static listing as a markdown table.
func (r *Renderer) MarkdownTable(header []string, rows [][]string) {
	r.Printf("| %s |\n", strings.Join(header, " | "))
	seps := make([]string, len(header))
	for i := range seps {
		seps[i] = "---"
	}
	r.Printf("| %s |\n", strings.Join(seps, " | "))
	for _, row := range rows {
		r.Printf("| %s |\n", strings.Join(row, " | "))
	}
}

// JSON encodes v to the output stream with indentation.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (r *Renderer) renderTable(cols []string, results []map[string]any) error {
	if len(results) == 0 {
		r.Println("(0 rows)")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleLight)

	headerRow := make(table.Row, len(cols))
	for i, col := range cols {
		headerRow[i] = col
	}
	t.AppendHeader(headerRow)

	for _, result := range results {
		row := make(table.Row, len(cols))
		for i, col := range cols {
			row[i] = formatValue(result[col])
		}
		t.AppendRow(row)
	}

	t.Render()
	r.Printf("(%d rows)\n", len(results))
	return nil
}

func (r *Renderer) renderJSON(results []map[string]any) error {
	return r.JSON(results)
}

func (r *Renderer) renderCSV(cols []string, results []map[string]any) error {
	r.Println(strings.Join(cols, ","))

	for _, result := range results {
		values := make([]string, len(cols))
		for i, col := range cols {
			values[i] = escapeCSV(formatValue(result[col]))
		}
		r.Println(strings.Join(values, ","))
	}
	return nil
}

func (r *Renderer) renderMarkdown(cols []string, results []map[string]any) error {
	if len(results) == 0 {
		r.Println("(0 rows)")
		return nil
	}

	rows := make([][]string, 0, len(results))
	for _, result := range results {
		values := make([]string, len(cols))
		for i, col := range cols {
			values[i] = formatValue(result[col])
		}
		rows = append(rows, values)
	}
	r.MarkdownTable(cols, rows)
	return nil
}

func formatValue(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", v)
}

func escapeCSV(s string) string {
	if strings.ContainsAny(s, ",\"\n") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}
