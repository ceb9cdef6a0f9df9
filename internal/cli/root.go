// Package cli provides the command-line interface for macrodesk.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/macrodesk-labs/macrodesk/internal/cli/commands"
	"github.com/macrodesk-labs/macrodesk/internal/cli/config"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "macrodesk",
		Short: "macrodesk - SQL template desk",
		Long: `macrodesk keeps a catalog of parameterized SQL templates declared against
abstract table roles. Load data files, bind roles to concrete tables, and the
desk keeps every runnable template activated as a DuckDB table macro.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help and completion commands
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.Load(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			level := slog.LevelWarn
			if cfg.Verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

			// Store config and logger in context for the commands package
			ctx := context.WithValue(cmd.Context(), config.ConfigKey(), cfg)
			ctx = context.WithValue(ctx, config.LoggerKey(), logger)
			cmd.SetContext(ctx)

			if cfg.Verbose && cfg.ConfigFile != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Using config file: %s\n", cfg.ConfigFile)
			}

			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Set version template
	rootCmd.SetVersionTemplate(`{{.Name}} v{{.Version}}
SQL template desk built with Go and DuckDB
`)

	// Global persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./macrodesk.yaml)")
	rootCmd.PersistentFlags().String("catalog-dir", "", "Path to the template catalog directory")
	rootCmd.PersistentFlags().String("drop-dir", "", "Path to the drop directory watched by serve")
	rootCmd.PersistentFlags().String("database", "", "Path to the DuckDB database (default: in-memory)")
	rootCmd.PersistentFlags().String("project-dir", "", "Project root (default: nearest macrodesk.yaml)")
	rootCmd.PersistentFlags().Int("port", 0, "HTTP port for serve")
	rootCmd.PersistentFlags().Bool("watch", true, "Watch the drop directory for new files")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().StringP("output", "o", "", "Output format (auto|table|json|csv|md)")

	// Register completion for output flag
	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"auto", "table", "json", "csv", "md"}, cobra.ShellCompDirectiveNoFileComp
	})

	// Add subcommands
	rootCmd.AddCommand(commands.NewVersionCommand(Version))
	rootCmd.AddCommand(commands.NewInitCommand())
	rootCmd.AddCommand(commands.NewLoadCommand())
	rootCmd.AddCommand(commands.NewTablesCommand())
	rootCmd.AddCommand(commands.NewRmCommand())
	rootCmd.AddCommand(commands.NewRenameCommand())
	rootCmd.AddCommand(commands.NewBindCommand())
	rootCmd.AddCommand(commands.NewUnbindCommand())
	rootCmd.AddCommand(commands.NewRolesCommand())
	rootCmd.AddCommand(commands.NewTemplatesCommand())
	rootCmd.AddCommand(commands.NewShowCommand())
	rootCmd.AddCommand(commands.NewRunCommand())
	rootCmd.AddCommand(commands.NewExportCommand())
	rootCmd.AddCommand(commands.NewQueryCommand())
	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for macrodesk.

To load completions:

Bash:
  $ source <(macrodesk completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ macrodesk completion bash > /etc/bash_completion.d/macrodesk
  # macOS:
  $ macrodesk completion bash > $(brew --prefix)/etc/bash_completion.d/macrodesk

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. Execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ macrodesk completion zsh > "${fpath[1]}/_macrodesk"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ macrodesk completion fish | source

  # To load completions for each session, execute once:
  $ macrodesk completion fish > ~/.config/fish/completions/macrodesk.fish

PowerShell:
  PS> macrodesk completion powershell | Out-String | Invoke-Expression

  # To load completions for every new session, run:
  PS> macrodesk completion powershell > macrodesk.ps1
  # and source this file from your PowerShell profile.
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(os.Stdout)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
			}
			return nil
		},
	}
	return cmd
}
