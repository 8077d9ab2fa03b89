// Package config builds the application configuration from viper.
// The resulting Config is constructed once at startup and passed into the
// components that need it; nothing below the cmd package reads the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Counter strategies for GitHubConfig.Counter.
const (
	CounterREST    = "rest"
	CounterGraphQL = "graphql"
)

// executable is swapped in tests.
var executable = os.Executable

// Config represents the complete application configuration.
type Config struct {
	// BaseDir anchors relative server.static_dir and info.content_dir.
	// Empty means the directory of the running binary.
	BaseDir   string          `mapstructure:"base_dir"`
	GitHub    GitHubConfig    `mapstructure:"github"`
	Aggregate AggregateConfig `mapstructure:"aggregate"`
	Server    ServerConfig    `mapstructure:"server"`
	Info      InfoConfig      `mapstructure:"info"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// GitHubConfig holds the upstream API settings.
type GitHubConfig struct {
	Token          string        `mapstructure:"token"`
	Org            string        `mapstructure:"org"`
	APIURL         string        `mapstructure:"api_url"`
	UserAgent      string        `mapstructure:"user_agent"`
	Counter        string        `mapstructure:"counter"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// AggregateConfig bounds a single aggregation run.
type AggregateConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	StaticDir       string        `mapstructure:"static_dir"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// InfoConfig locates the rotating display files.
type InfoConfig struct {
	ContentDir string `mapstructure:"content_dir"`
	ConfigFile string `mapstructure:"config_file"`
}

// LoggingConfig selects the zap logger flavour.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SetDefaults registers default values and environment bindings on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("base_dir", "")

	v.SetDefault("github.api_url", "")
	v.SetDefault("github.user_agent", "hackathon-dashboard")
	v.SetDefault("github.counter", CounterREST)
	v.SetDefault("github.request_timeout", "15s")

	v.SetDefault("aggregate.timeout", "2m")

	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.static_dir", "public")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("info.content_dir", ".")
	v.SetDefault("info.config_file", "config.json")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetEnvPrefix("COMMIT_BOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The well-known names used by the dashboard's .env file.
	_ = v.BindEnv("github.token", "GITHUB_TOKEN", "COMMIT_BOARD_GITHUB_TOKEN")
	_ = v.BindEnv("github.org", "GITHUB_ORG", "COMMIT_BOARD_GITHUB_ORG")
	_ = v.BindEnv("server.port", "PORT", "COMMIT_BOARD_SERVER_PORT")
}

// Load decodes v into a Config. Commands that talk to GitHub must call
// Validate on the result.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	baseDir, err := resolveBaseDir(cfg.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base_dir: %w", err)
	}
	cfg.BaseDir = baseDir
	cfg.Server.StaticDir = underBase(baseDir, cfg.Server.StaticDir)
	cfg.Info.ContentDir = underBase(baseDir, cfg.Info.ContentDir)
	return cfg, nil
}

func resolveBaseDir(dir string) (string, error) {
	if dir != "" {
		return filepath.Abs(dir)
	}
	exe, err := executable()
	if err != nil {
		return filepath.Abs(".")
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe), nil
}

func underBase(base, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(base, path)
}

// Validate reports missing required settings.
func (c *Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.GitHub.Token) == "" {
		missing = append(missing, "GITHUB_TOKEN")
	}
	if strings.TrimSpace(c.GitHub.Org) == "" {
		missing = append(missing, "GITHUB_ORG")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	switch c.GitHub.Counter {
	case CounterREST, CounterGraphQL:
	default:
		return fmt.Errorf("invalid github.counter %q (want %q or %q)", c.GitHub.Counter, CounterREST, CounterGraphQL)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	return nil
}

// InfoConfigPath returns the absolute path of the rotation config file.
func (c *Config) InfoConfigPath() string {
	if filepath.IsAbs(c.Info.ConfigFile) {
		return c.Info.ConfigFile
	}
	return filepath.Join(c.Info.ContentDir, c.Info.ConfigFile)
}
