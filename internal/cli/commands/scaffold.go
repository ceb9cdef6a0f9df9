package commands

import (
	"embed"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

//go:embed all:scaffold
var scaffoldFS embed.FS

// copyScaffold copies an embedded scaffold directory to the target path.
// It handles special file renames (e.g., "gitignore" -> ".gitignore").
func copyScaffold(name, targetDir string, force bool) error {
	root := filepath.Join("scaffold", name)

	return fs.WalkDir(scaffoldFS, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		// Calculate relative path from scaffold root
		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		// Skip root directory
		if relPath == "." {
			return nil
		}

		// Handle special file renames
		targetPath := filepath.Join(targetDir, renameSpecialFiles(relPath))

		if d.IsDir() {
			return os.MkdirAll(targetPath, 0750)
		}

		// Check if file exists
		if !force {
			if _, err := os.Stat(targetPath); err == nil {
				return nil // Skip existing files
			}
		}

		// Read and write file
		content, err := scaffoldFS.ReadFile(path)
		if err != nil {
			return err
		}

		return os.WriteFile(targetPath, content, 0600)
	})
}

// renameSpecialFiles handles files that need renaming (e.g., dotfiles).
func renameSpecialFiles(path string) string {
	// Rename "gitignore" to ".gitignore"
	base := filepath.Base(path)
	dir := filepath.Dir(path)

	switch base {
	case "gitignore":
		return filepath.Join(dir, ".gitignore")
	default:
		return path
	}
}

// listScaffoldFiles returns all files in a scaffold for display purposes.
func listScaffoldFiles(name string) ([]string, error) {
	var files []string
	root := filepath.Join("scaffold", name)

	err := fs.WalkDir(scaffoldFS, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			relPath, _ := filepath.Rel(root, path)
			files = append(files, renameSpecialFiles(relPath))
		}
		return nil
	})

	return files, err
}

// groupScaffoldFiles groups files by category for display.
func groupScaffoldFiles(files []string) map[string][]string {
	groups := map[string][]string{
		"config":  {},
		"catalog": {},
		"data":    {},
	}

	for _, f := range files {
		switch {
		case strings.HasPrefix(f, "catalog/") || strings.HasPrefix(f, "catalog\\"):
			groups["catalog"] = append(groups["catalog"], f)
		case strings.HasPrefix(f, "drop/") || strings.HasPrefix(f, "drop\\"):
			groups["data"] = append(groups["data"], f)
		default:
			groups["config"] = append(groups["config"], f)
		}
	}

	return groups
}
