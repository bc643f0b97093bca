// Package config loads and persists the application configuration: a JSON
// file in the app-data directory, overridable through LOCALBASE_ environment
// variables and .env files.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// AppFs is the filesystem all config IO goes through; tests swap in a
// memory fs.
var AppFs = afero.NewOsFs()

const (
	configFileName = "config.json"
	envDir         = "LOCALBASE_DIR"
)

// CacheConfig controls the statement cache.
type CacheConfig struct {
	Enabled    bool
	MaxEntries int
	TTLSeconds int
}

// Config holds the application configuration.
type Config struct {
	Dir              string
	DatabasePath     string
	JournalPath      string
	Cache            CacheConfig
	TokenSecret      string
	ServerAddr       string
	PractitionerName string
}

// CacheTTL returns the configured cache entry lifetime.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

// ConfigPath returns the location of the config file inside the directory.
func (c *Config) ConfigPath() string {
	return filepath.Join(c.Dir, configFileName)
}

// Dir resolves the app-data directory: the flag override wins, then
// LOCALBASE_DIR, then ~/.config/localbase.
func Dir(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	if dir := os.Getenv(envDir); dir != "" {
		return dir, nil
	}

	home, err := homedir.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "localbase"), nil
}

// Load reads config.json from dir, applying defaults and LOCALBASE_
// environment overrides. A missing file yields the defaults.
func Load(dir string) *Config {
	v := viper.New()
	v.SetFs(AppFs)
	v.SetConfigFile(filepath.Join(dir, configFileName))
	v.SetConfigType("json")

	v.SetEnvPrefix("LOCALBASE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("database_path", filepath.Join(dir, "clinic.db"))
	v.SetDefault("journal_path", "")
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.max_entries", 128)
	v.SetDefault("cache.ttl_seconds", 30)
	v.SetDefault("auth.token_secret", "")
	v.SetDefault("server.addr", "")
	v.SetDefault("practitioner_name", "")

	_ = v.ReadInConfig()

	// Load .env file if it exists
	if _, err := AppFs.Stat(".env"); err == nil {
		_ = godotenv.Load()
	}

	// Load .env.local if it exists (higher priority)
	if _, err := AppFs.Stat(".env.local"); err == nil {
		_ = godotenv.Overload(".env.local")
	}

	return &Config{
		Dir:          dir,
		DatabasePath: v.GetString("database_path"),
		JournalPath:  v.GetString("journal_path"),
		Cache: CacheConfig{
			Enabled:    v.GetBool("cache.enabled"),
			MaxEntries: v.GetInt("cache.max_entries"),
			TTLSeconds: v.GetInt("cache.ttl_seconds"),
		},
		TokenSecret:      v.GetString("auth.token_secret"),
		ServerAddr:       v.GetString("server.addr"),
		PractitionerName: v.GetString("practitioner_name"),
	}
}

// Save writes the configuration as config.json in its directory.
func Save(cfg *Config) error {
	v := viper.New()
	v.SetFs(AppFs)
	v.SetConfigType("json")

	v.Set("database_path", cfg.DatabasePath)
	v.Set("journal_path", cfg.JournalPath)
	v.Set("cache.enabled", cfg.Cache.Enabled)
	v.Set("cache.max_entries", cfg.Cache.MaxEntries)
	v.Set("cache.ttl_seconds", cfg.Cache.TTLSeconds)
	v.Set("auth.token_secret", cfg.TokenSecret)
	v.Set("server.addr", cfg.ServerAddr)
	v.Set("practitioner_name", cfg.PractitionerName)

	if err := AppFs.MkdirAll(cfg.Dir, 0o755); err != nil {
		return err
	}
	return v.WriteConfigAs(cfg.ConfigPath())
}
