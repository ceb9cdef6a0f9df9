package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new macrodesk project",
		Long: `Initialize a macrodesk project with a starter catalog and configuration.

This creates:
  - macrodesk.yaml configuration file
  - catalog/ with role declarations and example templates
  - drop/ with sample CSV data to load

The starter catalog declares orders and customers roles and three templates
built on them, so the desk works end to end out of the box.`,
		Example: `  # Initialize in the current directory
  macrodesk init

  # Initialize in a new directory
  macrodesk init my-desk

  # Force overwrite existing files
  macrodesk init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			cmdCtx := NewCommandContextWithoutSession(cmd)
			return runInit(cmdCtx, dir, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files")

	return cmd
}

func runInit(cmdCtx *CommandContext, dir string, force bool) error {
	r := cmdCtx.Renderer

	// Create directory if specified and doesn't exist
	if dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	// Check if config already exists
	configPath := filepath.Join(dir, "macrodesk.yaml")
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("macrodesk.yaml already exists. Use --force to overwrite")
	}

	if err := copyScaffold("default", dir, force); err != nil {
		return fmt.Errorf("failed to initialize project: %w", err)
	}

	// List created files by category
	files, _ := listScaffoldFiles("default")
	groups := groupScaffoldFiles(files)

	r.Header(2, "Configuration")
	for _, f := range groups["config"] {
		r.StatusLine(f, "success", "")
	}

	r.Println()
	r.Header(2, "Catalog")
	for _, f := range groups["catalog"] {
		r.StatusLine(f, "success", "")
	}

	r.Println()
	r.Header(2, "Sample data")
	for _, f := range groups["data"] {
		r.StatusLine(f, "success", "")
	}

	r.Println()
	r.Success("macrodesk project initialized!")
	r.Println()
	r.Println("Next steps:")
	r.Println("  macrodesk load drop/orders.csv drop/customers.csv")
	r.Println("  macrodesk templates")
	r.Println("  macrodesk run top_customers")

	return nil
}
