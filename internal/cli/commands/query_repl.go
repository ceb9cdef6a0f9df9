package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"

	"github.com/macrodesk-labs/macrodesk/internal/duck"
)

func runQueryREPL(ctx context.Context, cmdCtx *CommandContext) error {
	r := cmdCtx.Renderer
	s := cmdCtx.Session

	completer := newReplCompleter(ctx, cmdCtx)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "macrodesk> ",
		HistoryFile:     replHistoryPath(cmdCtx),
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	// Print welcome message
	r.Printf("macrodesk query REPL (database: %s)\n", s.DB.Path())
	r.Println("Type .help for commands, .quit to exit")
	r.Println()

	// REPL loop
	var multiLineBuffer strings.Builder
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			multiLineBuffer.Reset()
			rl.SetPrompt("macrodesk> ")
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		// Handle dot-commands
		if strings.HasPrefix(line, ".") {
			if handled := handleDotCommand(ctx, cmdCtx, line); handled {
				if line == ".quit" || line == ".exit" {
					break
				}
				continue
			}
		}

		// Accumulate multi-line SQL until semicolon
		multiLineBuffer.WriteString(line)
		if !strings.HasSuffix(line, ";") {
			multiLineBuffer.WriteString(" ")
			rl.SetPrompt("      ...> ")
			continue
		}
		rl.SetPrompt("macrodesk> ")

		// Execute query
		query := strings.TrimSuffix(multiLineBuffer.String(), ";")
		multiLineBuffer.Reset()

		if err := executeAndRenderQuery(ctx, cmdCtx, query); err != nil {
			r.Errorf("Error: %v", err)
		}
		r.Println()
	}

	return nil
}

// replHistoryPath keeps history next to a file-backed database, or in the
// working directory for in-memory sessions.
func replHistoryPath(cmdCtx *CommandContext) string {
	path := cmdCtx.Cfg.DatabasePath
	if path == "" || path == duck.MemoryPath {
		return ".macrodesk_history"
	}
	return filepath.Join(filepath.Dir(path), ".macrodesk_history")
}

func handleDotCommand(ctx context.Context, cmdCtx *CommandContext, line string) bool {
	r := cmdCtx.Renderer
	parts := strings.Fields(line)
	command := strings.ToLower(parts[0])

	switch command {
	case ".quit", ".exit":
		return true

	case ".help":
		printREPLHelp(r.Writer())
		return true

	case ".tables":
		if err := executeAndRenderQuery(ctx, cmdCtx, rawTablesSQL); err != nil {
			r.Errorf("Error: %v", err)
		}
		return true

	case ".schema":
		if len(parts) < 2 {
			r.Errorf("Usage: .schema <table>")
			return true
		}
		if err := executeAndRenderQuery(ctx, cmdCtx, fmt.Sprintf("DESCRIBE %s", parts[1])); err != nil {
			r.Errorf("Error: %v", err)
		}
		return true

	case ".roles":
		if err := runRoles(cmdCtx); err != nil {
			r.Errorf("Error: %v", err)
		}
		return true

	case ".templates":
		if err := runTemplates(cmdCtx, &TemplatesOptions{All: true}); err != nil {
			r.Errorf("Error: %v", err)
		}
		return true

	case ".clear":
		fmt.Print("\033[H\033[2J")
		return true

	default:
		r.Errorf("Unknown command: %s (type .help for commands)", command)
		return true
	}
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  .help           Show this help message
  .tables         List tables in the database
  .schema <name>  Show the schema of a table
  .roles          Show role bindings and usage
  .templates      List the template catalog
  .clear          Clear the screen
  .quit / .exit   Exit the REPL

Tips:
  - SQL statements must end with a semicolon (;)
  - Activated templates are callable: SELECT * FROM <id>(args);
  - Use arrow keys to navigate history
  - Tab completion works for table names and template IDs
`
	_, _ = fmt.Fprintln(w, help)
}

// newReplCompleter creates a readline completer over table names, template
// IDs, and dot-commands.
func newReplCompleter(ctx context.Context, cmdCtx *CommandContext) *readline.PrefixCompleter {
	var items []readline.PrefixCompleterInterface

	// Table names are completion candidates, not critical; ignore errors.
	tables, err := cmdCtx.Session.DB.Tables(ctx)
	if err == nil {
		for _, name := range tables {
			items = append(items, readline.PcItem(name))
		}
	}

	for _, mac := range cmdCtx.Session.Catalog.Macros() {
		items = append(items, readline.PcItem(mac.ID))
	}

	// Add dot-commands
	items = append(items,
		readline.PcItem(".help"),
		readline.PcItem(".tables"),
		readline.PcItem(".schema"),
		readline.PcItem(".roles"),
		readline.PcItem(".templates"),
		readline.PcItem(".clear"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)

	return readline.NewPrefixCompleter(items...)
}
