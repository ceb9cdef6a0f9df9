package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// loggerKey is used to store the logger in the command context. Shared with
// the cli package via LoggerKey.
type loggerKey struct{}

// configKey is used to store the loaded config in the command context.
type configKey struct{}

// maxUpwardSearchLevels limits how far up the directory tree to search for
// config files.
const maxUpwardSearchLevels = 10

// configExistsIn checks if a macrodesk config file exists in the directory.
func configExistsIn(dir string) bool {
	for _, name := range []string{"macrodesk.yaml", "macrodesk.yml"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// findProjectRootUpward searches upward from startDir for a macrodesk config
// file. Returns empty string if not found within maxUpwardSearchLevels.
func findProjectRootUpward(startDir string) string {
	dir := startDir
	for i := 0; i < maxUpwardSearchLevels; i++ {
		if configExistsIn(dir) {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// inferProjectRoot determines the project root from CLI flags and the
// filesystem. Priority:
//  1. Explicit --project-dir flag
//  2. Infer from --catalog-dir (parent if it contains a config or is named
//     "catalog")
//  3. Search upward from CWD for macrodesk.yaml
//  4. Current working directory
func inferProjectRoot(flags *pflag.FlagSet) string {
	if flags != nil {
		if projectDir, _ := flags.GetString("project-dir"); projectDir != "" && flags.Changed("project-dir") {
			abs, err := filepath.Abs(projectDir)
			if err == nil {
				return abs
			}
			return filepath.Clean(projectDir)
		}

		if catalogDir, _ := flags.GetString("catalog-dir"); catalogDir != "" && flags.Changed("catalog-dir") {
			absCatalog, err := filepath.Abs(catalogDir)
			if err == nil {
				parent := filepath.Dir(absCatalog)
				if configExistsIn(parent) {
					return parent
				}
				if filepath.Base(absCatalog) == "catalog" {
					return parent
				}
			}
		}
	}

	if cwd, err := os.Getwd(); err == nil {
		if root := findProjectRootUpward(cwd); root != "" {
			return root
		}
	}

	cwd, _ := os.Getwd()
	if cwd == "" {
		cwd = "."
	}
	return cwd
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not
// absolute. Returns the path unchanged if it's empty or already absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// Load loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults.
// Every call builds a fresh koanf instance; the returned Config is the only
// output.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	projectRoot := inferProjectRoot(flags)

	// Paths given as flags are relative to the CWD, not the project root;
	// pin them to absolute before the resolution step below.
	var flagCatalogDir, flagDropDir, flagDatabase string
	if flags != nil {
		if flags.Changed("catalog-dir") {
			if v, _ := flags.GetString("catalog-dir"); v != "" {
				flagCatalogDir, _ = filepath.Abs(v)
			}
		}
		if flags.Changed("drop-dir") {
			if v, _ := flags.GetString("drop-dir"); v != "" {
				flagDropDir, _ = filepath.Abs(v)
			}
		}
		if flags.Changed("database") {
			if v, _ := flags.GetString("database"); v != "" {
				if v != ":memory:" {
					flagDatabase, _ = filepath.Abs(v)
				} else {
					flagDatabase = v
				}
			}
		}
	}

	// An explicit config file anchors the project at its directory unless a
	// flag gave a more specific hint.
	if cfgFile != "" && projectRoot == inferProjectRoot(nil) {
		if absPath, err := filepath.Abs(cfgFile); err == nil {
			projectRoot = filepath.Dir(absPath)
		}
	}

	// 1. Defaults.
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"catalog_dir":  DefaultCatalogDir,
		"drop_dir":     DefaultDropDir,
		"database":     DefaultDatabase,
		"verbose":      false,
		"output":       DefaultOutput,
		"server.port":  DefaultServerPort,
		"server.watch": true,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file, searched in the project root when not given.
	if cfgFile == "" {
		for _, name := range []string{"macrodesk.yaml", "macrodesk.yml"} {
			candidate := filepath.Join(projectRoot, name)
			if _, err := os.Stat(candidate); err == nil {
				cfgFile = candidate
				break
			}
		}
	}
	configFileUsed := ""
	if cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			configFileUsed = cfgFile
		}
	}
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// 3. Environment variables: MACRODESK_CATALOG_DIR -> catalog_dir,
	// MACRODESK_SERVER_PORT -> server.port.
	if err := k.Load(env.Provider("MACRODESK_", ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, "MACRODESK_"))
		if rest, ok := strings.CutPrefix(key, "server_"); ok {
			return "server." + rest
		}
		return key
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags (highest priority).
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", "_")

			// Server flags map into the nested section.
			switch key {
			case "port":
				return "server.port", posflag.FlagVal(flags, f)
			case "watch":
				return "server.watch", posflag.FlagVal(flags, f)
			}

			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 5. Unmarshal. The explicit decoder config keeps weak typing ("8765"
	// for a port) working for values arriving as env var strings.
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.TextUnmarshallerHookFunc(),
			),
			Result:           &cfg,
			WeaklyTypedInput: true,
		},
	}); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// 6. Anchor relative paths at the project root; flag-given paths were
	// already pinned to the CWD.
	cfg.ProjectRoot = projectRoot
	cfg.ConfigFile = configFileUsed

	if flagCatalogDir != "" {
		cfg.CatalogDir = flagCatalogDir
	} else {
		cfg.CatalogDir = resolvePathRelativeTo(cfg.CatalogDir, projectRoot)
	}
	if flagDropDir != "" {
		cfg.DropDir = flagDropDir
	} else {
		cfg.DropDir = resolvePathRelativeTo(cfg.DropDir, projectRoot)
	}
	if flagDatabase != "" {
		cfg.DatabasePath = flagDatabase
	} else if cfg.DatabasePath != ":memory:" {
		cfg.DatabasePath = resolvePathRelativeTo(cfg.DatabasePath, projectRoot)
	}

	return &cfg, nil
}

// LoggerKey returns the context key used for storing the logger. This allows
// the commands package to retrieve the logger from context without creating
// an import cycle with the cli package.
func LoggerKey() interface{} {
	return loggerKey{}
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}

// ConfigKey returns the context key used for storing the loaded config.
func ConfigKey() interface{} {
	return configKey{}
}

// GetConfig retrieves the config from the command context. Commands run
// outside the root command (tests, mostly) get bare defaults.
func GetConfig(ctx context.Context) *Config {
	if c, ok := ctx.Value(configKey{}).(*Config); ok {
		return c
	}
	return &Config{
		CatalogDir:   DefaultCatalogDir,
		DropDir:      DefaultDropDir,
		DatabasePath: DefaultDatabase,
		OutputFormat: DefaultOutput,
	}
}
