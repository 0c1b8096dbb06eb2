// Package config loads freightview settings from TOML and the
// environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. FREIGHTVIEW_API_URL.
const EnvPrefix = "FREIGHTVIEW"

// Config holds application configuration.
type Config struct {
	API    APIConfig    `mapstructure:"api"`
	Server ServerConfig `mapstructure:"server"`
	Prefs  PrefsConfig  `mapstructure:"prefs"`
	Log    LogConfig    `mapstructure:"log"`
	UI     UIConfig     `mapstructure:"ui"`
}

// APIConfig tells the dashboard and CLI where the API server is.
type APIConfig struct {
	URL   string `mapstructure:"url"`
	Token string `mapstructure:"token"`
}

// ServerConfig configures `freightview serve`.
type ServerConfig struct {
	Listen       string `mapstructure:"listen"`
	DBPath       string `mapstructure:"db_path"`
	TokenSecret  string `mapstructure:"token_secret"`
	HistoryLimit int    `mapstructure:"history_limit"`
	// WatchBuffer is the per-watcher event buffer before a slow watcher
	// is dropped.
	WatchBuffer int `mapstructure:"watch_buffer"`
}

// PrefsConfig locates the dashboard's local preference database.
type PrefsConfig struct {
	Path string `mapstructure:"path"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
	// File receives dashboard logs, since the TUI owns the terminal.
	File string `mapstructure:"file"`
}

// UIConfig holds presentation settings.
type UIConfig struct {
	Project         string        `mapstructure:"project"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	PageSize        int           `mapstructure:"page_size"`
}

// DataDir returns the directory holding local freightview state.
func DataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".freightview")
}

func setDefaults(v *viper.Viper) {
	dataDir := DataDir()
	v.SetDefault("api.url", "http://127.0.0.1:9780")
	v.SetDefault("api.token", "")
	v.SetDefault("server.listen", "127.0.0.1:9780")
	v.SetDefault("server.db_path", filepath.Join(dataDir, "server.db"))
	v.SetDefault("server.token_secret", "")
	v.SetDefault("server.history_limit", 10)
	v.SetDefault("server.watch_buffer", 64)
	v.SetDefault("prefs.path", filepath.Join(dataDir, "prefs.db"))
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", filepath.Join(dataDir, "freightview.log"))
	v.SetDefault("ui.project", "")
	v.SetDefault("ui.refresh_interval", 15*time.Second)
	v.SetDefault("ui.page_size", 10)
}

// Load reads configuration from the TOML file at path and the
// environment. An empty path falls back to $FREIGHTVIEW_CONFIG and then
// ~/.config/freightview/config.toml. A missing file is not an error.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("toml")

	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		home, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(home, ".config", "freightview"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	u, err := url.Parse(strings.TrimSpace(c.API.URL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid api.url: %q", c.API.URL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("api.url must be http or https: %q", c.API.URL)
	}
	if strings.TrimSpace(c.Server.Listen) == "" {
		return errors.New("server.listen is required")
	}
	if strings.TrimSpace(c.Server.DBPath) == "" {
		return errors.New("server.db_path is required")
	}
	if c.Server.HistoryLimit < 0 {
		return fmt.Errorf("server.history_limit must be >= 0, got %d", c.Server.HistoryLimit)
	}
	if c.Server.WatchBuffer < 1 {
		return fmt.Errorf("server.watch_buffer must be >= 1, got %d", c.Server.WatchBuffer)
	}
	if strings.TrimSpace(c.Prefs.Path) == "" {
		return errors.New("prefs.path is required")
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log.level: %q", c.Log.Level)
	}
	if c.UI.RefreshInterval < 0 {
		return fmt.Errorf("ui.refresh_interval must be >= 0, got %s", c.UI.RefreshInterval)
	}
	if c.UI.PageSize < 1 {
		return fmt.Errorf("ui.page_size must be >= 1, got %d", c.UI.PageSize)
	}
	return nil
}

// EnsureDir creates the parent directory of path.
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
