package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	root, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, DefaultCatalogDir), cfg.CatalogDir)
	assert.Equal(t, filepath.Join(root, DefaultDropDir), cfg.DropDir)
	assert.Equal(t, ":memory:", cfg.DatabasePath)
	assert.Equal(t, "auto", cfg.OutputFormat)
	assert.False(t, cfg.Verbose)
	assert.Empty(t, cfg.ConfigFile)

	srv := cfg.GetServerConfig()
	assert.Equal(t, DefaultServerPort, srv.Port)
	assert.True(t, srv.Watch)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "macrodesk.yaml")
	content := `catalog_dir: my_catalog
database: db/engine.duckdb
drop_dir: incoming
output: json
server:
  port: 9000
  watch: false
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0600))

	cfg, err := Load(cfgPath, nil)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "my_catalog"), cfg.CatalogDir)
	assert.Equal(t, filepath.Join(dir, "db", "engine.duckdb"), cfg.DatabasePath)
	assert.Equal(t, filepath.Join(dir, "incoming"), cfg.DropDir)
	assert.Equal(t, "json", cfg.OutputFormat)
	assert.Equal(t, cfgPath, cfg.ConfigFile)
	assert.Equal(t, dir, cfg.ProjectRoot)

	require.NotNil(t, cfg.Server)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.False(t, cfg.Server.Watch)
}

func TestLoad_UpwardSearch(t *testing.T) {
	dir := t.TempDir()
	root, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(
		filepath.Join(root, "macrodesk.yaml"),
		[]byte("catalog_dir: shared_catalog\n"), 0600))

	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))
	t.Chdir(nested)

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, root, cfg.ProjectRoot, "project root should be where the config file lives")
	assert.Equal(t, filepath.Join(root, "macrodesk.yaml"), cfg.ConfigFile)
	assert.Equal(t, filepath.Join(root, "shared_catalog"), cfg.CatalogDir,
		"relative paths anchor at the project root, not the CWD")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "macrodesk.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("catalog_dir: from_file\n"), 0600))

	t.Setenv("MACRODESK_CATALOG_DIR", "from_env")
	t.Setenv("MACRODESK_SERVER_PORT", "9100")

	cfg, err := Load(cfgPath, nil)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "from_env"), cfg.CatalogDir,
		"env var should override the config file")
	require.NotNil(t, cfg.Server)
	assert.Equal(t, 9100, cfg.Server.Port, "string env values decode into ints")
}

func TestLoad_FlagOverridesEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	root, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)

	t.Setenv("MACRODESK_CATALOG_DIR", "from_env")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("catalog-dir", "", "catalog directory")
	require.NoError(t, flags.Set("catalog-dir", "from_flag"))

	cfg, err := Load("", flags)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "from_flag"), cfg.CatalogDir,
		"flag value should override the env var")
}

func TestLoad_FlagNotSetFallsBack(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	root, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)

	t.Setenv("MACRODESK_CATALOG_DIR", "from_env")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("catalog-dir", "", "catalog directory")

	cfg, err := Load("", flags)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "from_env"), cfg.CatalogDir,
		"an unset flag must not mask the env var")
}

func TestLoad_ServerFlags(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("port", DefaultServerPort, "server port")
	flags.Bool("watch", true, "watch drop dir")
	require.NoError(t, flags.Set("port", "9999"))
	require.NoError(t, flags.Set("watch", "false"))

	cfg, err := Load("", flags)
	require.NoError(t, err)

	require.NotNil(t, cfg.Server)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.False(t, cfg.Server.Watch)
}

func TestLoad_MemoryDatabaseStaysUnresolved(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("database", "", "database path")
	require.NoError(t, flags.Set("database", ":memory:"))

	cfg, err := Load("", flags)
	require.NoError(t, err)
	assert.Equal(t, ":memory:", cfg.DatabasePath)
}

func TestLoad_DatabaseFlagResolvesToAbsolute(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	root, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("database", "", "database path")
	require.NoError(t, flags.Set("database", "work.duckdb"))

	cfg, err := Load("", flags)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "work.duckdb"), cfg.DatabasePath)
}

func TestLoad_ProjectDirFlag(t *testing.T) {
	dir := t.TempDir()
	root, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("project-dir", "", "project root")
	require.NoError(t, flags.Set("project-dir", root))

	cfg, err := Load("", flags)
	require.NoError(t, err)

	assert.Equal(t, root, cfg.ProjectRoot)
	assert.Equal(t, filepath.Join(root, DefaultCatalogDir), cfg.CatalogDir)
}

func TestGetServerConfig_FillsPort(t *testing.T) {
	cfg := &Config{Server: &ServerConfig{Watch: true}}
	srv := cfg.GetServerConfig()
	assert.Equal(t, DefaultServerPort, srv.Port)
	assert.True(t, srv.Watch)
}

func TestGetLogger(t *testing.T) {
	ctx := context.Background()
	logger := GetLogger(ctx)
	require.NotNil(t, logger, "missing logger falls back to discard")

	want := slog.New(slog.DiscardHandler)
	ctx = context.WithValue(ctx, LoggerKey(), want)
	assert.Same(t, want, GetLogger(ctx))
}
