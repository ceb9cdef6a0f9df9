// Package config provides configuration management for the macrodesk CLI.
//
// Configuration merges four layers, lowest to highest precedence: built-in
// defaults, a macrodesk.yaml file (searched upward from the working
// directory), MACRODESK_-prefixed environment variables, and command-line
// flags. Loading is a pure function of its inputs; nothing in this package
// holds state between calls.
package config

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Port  int  `koanf:"port"`
	Watch bool `koanf:"watch"`
}

// Config holds all CLI configuration options.
type Config struct {
	CatalogDir   string        `koanf:"catalog_dir"`
	DatabasePath string        `koanf:"database"`
	DropDir      string        `koanf:"drop_dir"`
	Verbose      bool          `koanf:"verbose"`
	OutputFormat string        `koanf:"output"`
	Server       *ServerConfig `koanf:"server"`

	// ProjectRoot anchors relative path resolution. Set by the loader from
	// the config file location or the working directory, never read from
	// the file itself.
	ProjectRoot string `koanf:"-"`
	// ConfigFile is the file the loader read, empty when none was found.
	ConfigFile string `koanf:"-"`
}

// Default configuration values.
const (
	DefaultCatalogDir = "catalog"
	DefaultDropDir    = "drop"
	DefaultDatabase   = ":memory:"
	DefaultOutput     = "auto" // TTY renders tables, pipes render markdown
	DefaultServerPort = 8765
)

// DefaultServerConfig returns a ServerConfig with default values.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:  DefaultServerPort,
		Watch: true,
	}
}

// GetServerConfig returns the server config with defaults applied for any
// unset values.
func (c *Config) GetServerConfig() *ServerConfig {
	if c.Server == nil {
		return DefaultServerConfig()
	}
	srv := c.Server
	if srv.Port == 0 {
		srv.Port = DefaultServerPort
	}
	return srv
}
