package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/dustin/go-humanize"
	"github.com/jamesainslie/tend/pkg/tend/logging"
	"github.com/spf13/viper"
)

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSize    string `mapstructure:"max_size" yaml:"max_size"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	Daily      bool   `mapstructure:"daily" yaml:"daily"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level      string            `mapstructure:"level" yaml:"level"`
	Path       string            `mapstructure:"path" yaml:"path"`
	Rotation   RotationConfig    `mapstructure:"rotation" yaml:"rotation"`
	Components map[string]string `mapstructure:"components" yaml:"components"`
}

// ScanConfig configures path discovery for the filesystem and configs domains.
type ScanConfig struct {
	Filesystem []string `mapstructure:"filesystem" yaml:"filesystem"`
	Configs    []string `mapstructure:"configs" yaml:"configs"`
	Depth      int      `mapstructure:"depth" yaml:"depth"`
	Exclude    []string `mapstructure:"exclude" yaml:"exclude"`
}

// ProtectConfig adds user patterns to the built-in protected sets.
type ProtectConfig struct {
	Packages   []string `mapstructure:"packages" yaml:"packages"`
	Filesystem []string `mapstructure:"filesystem" yaml:"filesystem"`
	Configs    []string `mapstructure:"configs" yaml:"configs"`
}

// OwnershipConfig configures the ownership lookup cache.
type OwnershipConfig struct {
	Cache     bool          `mapstructure:"cache" yaml:"cache"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
	StaleDays int           `mapstructure:"stale_days" yaml:"stale_days"`
}

// Config represents the application configuration.
type Config struct {
	Manifest       string          `mapstructure:"manifest" yaml:"manifest"`
	StateDir       string          `mapstructure:"state_dir" yaml:"state_dir"`
	CommandTimeout time.Duration   `mapstructure:"command_timeout" yaml:"command_timeout"`
	UseTrash       bool            `mapstructure:"use_trash" yaml:"use_trash"`
	HistoryLimit   int             `mapstructure:"history_limit" yaml:"history_limit"`
	Scan           ScanConfig      `mapstructure:"scan" yaml:"scan"`
	Protect        ProtectConfig   `mapstructure:"protect" yaml:"protect"`
	Ownership      OwnershipConfig `mapstructure:"ownership" yaml:"ownership"`
	Logging        LoggingConfig   `mapstructure:"logging" yaml:"logging"`

	// Home is the resolved home directory used for "~" expansion.
	Home string `mapstructure:"-" yaml:"-"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("manifest", DefaultManifestPath)
	v.SetDefault("state_dir", "")
	v.SetDefault("command_timeout", DefaultCommandTimeout)
	v.SetDefault("use_trash", false)
	v.SetDefault("history_limit", DefaultHistoryLimit)

	v.SetDefault("scan.filesystem", DefaultFilesystemRoots)
	v.SetDefault("scan.configs", DefaultConfigRoots)
	v.SetDefault("scan.depth", 1)
	v.SetDefault("scan.exclude", DefaultScanExclude)

	v.SetDefault("protect.packages", []string{})
	v.SetDefault("protect.filesystem", []string{})
	v.SetDefault("protect.configs", []string{})

	v.SetDefault("ownership.cache", true)
	v.SetDefault("ownership.cache_ttl", DefaultOwnershipTTL)
	v.SetDefault("ownership.stale_days", DefaultStaleDays)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.path", "")
	v.SetDefault("logging.rotation.max_size", "5MB")
	v.SetDefault("logging.rotation.max_age", 30)
	v.SetDefault("logging.rotation.max_backups", 3)
	v.SetDefault("logging.rotation.daily", false)
	v.SetDefault("logging.components", map[string]string{})
}

// Load loads configuration from file and environment variables. When file
// is empty the search path is:
//   - $XDG_CONFIG_HOME/tend/config.yaml
//   - $HOME/.config/tend/config.yaml
//
// Environment variables are prefixed with TEND_ (e.g. TEND_USE_TRASH).
func Load(file string) (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user home directory: %w", err)
	}

	v := viper.New()
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
			v.AddConfigPath(filepath.Join(xdgConfigHome, AppName))
		}
		v.AddConfigPath(filepath.Join(homeDir, ".config", AppName))
	}

	v.SetEnvPrefix("TEND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Home = homeDir
	cfg.Manifest = expand(cfg.Manifest, homeDir)
	if cfg.StateDir == "" {
		cfg.StateDir = StateDir()
	}
	cfg.StateDir = expand(cfg.StateDir, homeDir)
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = DefaultCommandTimeout
	}
	return &cfg, nil
}

// LoggingSettings converts the logging section for logging.Init.
func (c *Config) LoggingSettings() (logging.Config, error) {
	out := logging.Config{
		Level:      c.Logging.Level,
		Path:       expand(c.Logging.Path, c.Home),
		Components: c.Logging.Components,
		Rotation: logging.RotationConfig{
			MaxAge:     c.Logging.Rotation.MaxAge,
			MaxBackups: c.Logging.Rotation.MaxBackups,
			Daily:      c.Logging.Rotation.Daily,
		},
	}
	if out.Path == "" {
		out.Path = filepath.Join(c.StateDir, AppName+".log")
	}
	if c.Logging.Rotation.MaxSize != "" {
		size, err := humanize.ParseBytes(c.Logging.Rotation.MaxSize)
		if err != nil {
			return out, fmt.Errorf("invalid logging.rotation.max_size %q: %w", c.Logging.Rotation.MaxSize, err)
		}
		out.Rotation.MaxSize = int64(size)
	}
	return out, nil
}

// HistoryPath returns the append-only history log location.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.StateDir, "history.jsonl")
}

// SnapshotPath returns the last-scan cache location.
func (c *Config) SnapshotPath() string {
	return filepath.Join(c.StateDir, "last-scan.json")
}

// OwnershipCacheDir returns the badger directory for ownership lookups.
func (c *Config) OwnershipCacheDir() string {
	return filepath.Join(CacheDir(), "ownership")
}

// ConfigDir returns the configuration directory.
func ConfigDir() (string, error) {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, AppName), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", AppName), nil
}

// WriteDefault writes a commented default config file unless one exists.
// It returns the config file path.
func WriteDefault() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	path := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return path, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to check config file: %w", err)
	}

	content := fmt.Sprintf(`# tend configuration

# Desired-state manifest
manifest: %s

# Timeout for each package-manager invocation
command_timeout: %s

# Move user-space paths to the trash instead of deleting them
use_trash: false

# Roots scanned for orphaned paths
scan:
  filesystem: [%s]
  configs: [%s]
  depth: 1

# Extra protected patterns, added to the built-in sets
protect:
  packages: []
  filesystem: []
  configs: []

ownership:
  cache: true
  cache_ttl: %s
  stale_days: %d

logging:
  # debug, info, warn, error
  level: info
  # empty means $XDG_STATE_HOME/tend/tend.log
  path: ""
  rotation:
    max_size: 5MB
    max_age: 30
    max_backups: 3
`, DefaultManifestPath, DefaultCommandTimeout, strings.Join(DefaultFilesystemRoots, ", "),
		strings.Join(DefaultConfigRoots, ", "), DefaultOwnershipTTL, DefaultStaleDays)

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("failed to write default config: %w", err)
	}
	return path, nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return expand(path, homeDir), nil
}

func expand(path, home string) string {
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}

// StateDir returns $XDG_STATE_HOME/tend for history, snapshot and logs.
func StateDir() string {
	return filepath.Join(xdg.StateHome, AppName)
}

// CacheDir returns $XDG_CACHE_HOME/tend.
func CacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}
