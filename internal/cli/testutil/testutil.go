// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/macrodesk-labs/macrodesk/internal/cli/output"
)

// SetupTestProject creates a temporary project with a small catalog: two
// roles, one template needing both, and a seed CSV in the drop directory.
func SetupTestProject(t *testing.T) string {
	t.Helper()

	tmpDir := t.TempDir()

	dirs := []string{
		filepath.Join(tmpDir, "catalog"),
		filepath.Join(tmpDir, "drop"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("failed to create directory %s: %v", dir, err)
		}
	}

	roles := `roles:
  - name: orders
    description: One row per order line
    columns: [order_id, region, amount]
  - name: customers
    description: Customer master data
    columns: [customer_id, name]
`
	if err := os.WriteFile(filepath.Join(tmpDir, "catalog", "roles.yaml"),
		[]byte(roles), 0644); err != nil {
		t.Fatalf("failed to create roles.yaml: %v", err)
	}

	template := `/*---
id: order_totals
title: Order totals
category: sales
needs: [orders]
params:
  - name: min_total
    type: number
    default: 0
---*/
SELECT region, SUM(amount) AS total
FROM {{orders}}
GROUP BY region
HAVING SUM(amount) >= [[min_total]]
`
	if err := os.WriteFile(filepath.Join(tmpDir, "catalog", "order_totals.sql"),
		[]byte(template), 0644); err != nil {
		t.Fatalf("failed to create order_totals.sql: %v", err)
	}

	orders := `order_id,region,amount
1,east,100.00
2,west,50.00
3,east,25.00`
	if err := os.WriteFile(filepath.Join(tmpDir, "drop", "orders.csv"),
		[]byte(orders), 0644); err != nil {
		t.Fatalf("failed to create orders.csv: %v", err)
	}

	return tmpDir
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a test renderer with the specified mode and TTY
// state. Output is captured in buffers for inspection.
func NewTestRenderer(mode output.Mode, isTTY bool) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRendererWithTTY(out, errOut, isTTY, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// NewTestRendererTable creates a test renderer in table mode (simulated TTY).
func NewTestRendererTable() *TestRenderer {
	return NewTestRenderer(output.ModeTable, true)
}

// NewTestRendererMarkdown creates a test renderer in markdown mode.
func NewTestRendererMarkdown() *TestRenderer {
	return NewTestRenderer(output.ModeMarkdown, false)
}

// NewTestRendererJSON creates a test renderer in JSON mode.
func NewTestRendererJSON() *TestRenderer {
	return NewTestRenderer(output.ModeJSON, false)
}

// Output returns the captured stdout output.
func (tr *TestRenderer) Output() string {
	return tr.Out.String()
}

// ErrorOutput returns the captured stderr output.
func (tr *TestRenderer) ErrorOutput() string {
	return tr.ErrOut.String()
}

// Reset clears both output buffers.
func (tr *TestRenderer) Reset() {
	tr.Out.Reset()
	tr.ErrOut.Reset()
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}
