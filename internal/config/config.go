// Package config resolves dt settings.
//
// Precedence, lowest first: built-in defaults, <data-dir>/config.yaml,
// DT_* environment variables (DT_STORAGE_MAX_RETENTION_DAYS, ...), and
// finally command-line flags bound with BindFlag.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// FileName is the config file inside the data directory.
	FileName = "config.yaml"

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "DT"

	// EnvDataDir overrides the data directory.
	EnvDataDir = "DT_DATA_DIR"

	// DefaultDirName is the data directory under $HOME.
	DefaultDirName = ".dt"
)

// Keys.
const (
	KeyMaxRetentionDays = "storage.max_retention_days"
	KeyAutoArchive      = "storage.auto_archive"
	KeyMaxHistoryShown  = "display.max_history_shown"
	KeyColor            = "display.color"
	KeyShell            = "shell"
)

// MaxRetentionDays is the largest accepted storage.max_retention_days.
const MaxRetentionDays = 100 * 366

// Color modes.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// Config is the resolved configuration.
type Config struct {
	Storage StorageConfig `mapstructure:"storage" yaml:"storage" json:"storage"`
	Display DisplayConfig `mapstructure:"display" yaml:"display" json:"display"`

	// Shell runs every recorded command as `<shell> -c <command>`.
	Shell string `mapstructure:"shell" yaml:"shell" json:"shell"`
}

// StorageConfig controls retention and archival.
type StorageConfig struct {
	// MaxRetentionDays expires executions older than this. 0 keeps everything.
	MaxRetentionDays int `mapstructure:"max_retention_days" yaml:"max_retention_days" json:"max_retention_days"`

	// AutoArchive moves previous-year executions to index_<YYYY>.json
	// on the first save of a new year.
	AutoArchive bool `mapstructure:"auto_archive" yaml:"auto_archive" json:"auto_archive"`
}

// DisplayConfig controls listings and diff output.
type DisplayConfig struct {
	MaxHistoryShown int    `mapstructure:"max_history_shown" yaml:"max_history_shown" json:"max_history_shown"`
	Color           string `mapstructure:"color" yaml:"color" json:"color"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Storage: StorageConfig{
			MaxRetentionDays: 365,
			AutoArchive:      true,
		},
		Display: DisplayConfig{
			MaxHistoryShown: 10,
			Color:           ColorAuto,
		},
		Shell: "/bin/sh",
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.Storage.MaxRetentionDays < 0 {
		return fmt.Errorf("%s must be >= 0, got %d", KeyMaxRetentionDays, c.Storage.MaxRetentionDays)
	}
	if c.Storage.MaxRetentionDays > MaxRetentionDays {
		return fmt.Errorf("%s must be <= %d, got %d", KeyMaxRetentionDays, MaxRetentionDays, c.Storage.MaxRetentionDays)
	}
	if c.Display.MaxHistoryShown < 1 {
		return fmt.Errorf("%s must be >= 1, got %d", KeyMaxHistoryShown, c.Display.MaxHistoryShown)
	}
	switch c.Display.Color {
	case ColorAuto, ColorAlways, ColorNever:
	default:
		return fmt.Errorf("%s must be one of auto, always, never, got %q", KeyColor, c.Display.Color)
	}
	if strings.TrimSpace(c.Shell) == "" {
		return fmt.Errorf("%s must not be empty", KeyShell)
	}
	return nil
}

// ResolveDataDir picks the data directory: the flag value when set, then
// $DT_DATA_DIR, then ~/.dt.
func ResolveDataDir(flagValue string) (string, error) {
	if flagValue != "" {
		return filepath.Abs(flagValue)
	}
	if env := os.Getenv(EnvDataDir); env != "" {
		return filepath.Abs(env)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve data dir: %w", err)
	}
	return filepath.Join(home, DefaultDirName), nil
}

// Path returns the config file path for a data directory.
func Path(dataDir string) string {
	return filepath.Join(dataDir, FileName)
}

// Loader layers the configuration sources for one data directory.
type Loader struct {
	v       *viper.Viper
	dataDir string
}

// NewLoader creates a Loader with defaults and environment overrides.
func NewLoader(dataDir string) *Loader {
	v := viper.New()

	d := Default()
	v.SetDefault(KeyMaxRetentionDays, d.Storage.MaxRetentionDays)
	v.SetDefault(KeyAutoArchive, d.Storage.AutoArchive)
	v.SetDefault(KeyMaxHistoryShown, d.Display.MaxHistoryShown)
	v.SetDefault(KeyColor, d.Display.Color)
	v.SetDefault(KeyShell, d.Shell)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Loader{v: v, dataDir: dataDir}
}

// BindFlag makes a flag override key when the user set it explicitly.
func (l *Loader) BindFlag(key string, flag *pflag.Flag) error {
	if flag == nil {
		return fmt.Errorf("bind %s: nil flag", key)
	}
	return l.v.BindPFlag(key, flag)
}

// Load reads the config file, if present, and resolves all layers.
func (l *Loader) Load() (Config, error) {
	path := Path(l.dataDir)
	if _, err := os.Stat(path); err == nil {
		l.v.SetConfigFile(path)
		l.v.SetConfigType("yaml")
		if err := l.v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read %s: %w", path, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("stat %s: %w", path, err)
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Load is a convenience for NewLoader(dataDir).Load().
func Load(dataDir string) (Config, error) {
	return NewLoader(dataDir).Load()
}

// Marshal renders cfg as YAML.
func Marshal(cfg Config) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}

// Write saves cfg to <dataDir>/config.yaml. An existing file is kept
// unless overwrite is true.
func Write(dataDir string, cfg Config, overwrite bool) (string, error) {
	path := Path(dataDir)
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return path, fmt.Errorf("%s already exists", path)
		}
	}

	data, err := Marshal(cfg)
	if err != nil {
		return path, err
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return path, fmt.Errorf("create %s: %w", dataDir, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return path, fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
