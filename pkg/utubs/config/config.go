// Package config loads utubs settings from a TOML file with environment
// overrides.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Server ServerConfig `toml:"server"`
	Client ClientConfig `toml:"client"`
	Filter FilterConfig `toml:"filter"`
	Log    LogConfig    `toml:"log"`
}

// ServerConfig contains HTTP server and storage settings.
type ServerConfig struct {
	Addr      string        `toml:"addr"`
	DBPath    string        `toml:"db_path"`
	JWTSecret string        `toml:"jwt_secret"`
	TokenTTL  time.Duration `toml:"token_ttl"`
}

// ClientConfig contains settings for talking to a utubs server.
type ClientConfig struct {
	BaseURL           string        `toml:"base_url"`
	Token             string        `toml:"token"`
	Timeout           time.Duration `toml:"timeout"`
	RequestsPerSecond float64       `toml:"requests_per_second"`
}

// FilterConfig contains tag filter settings.
type FilterConfig struct {
	MaxSelectedTags int `toml:"max_selected_tags"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// DefaultConfig returns a Config with defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// LoadConfig reads a TOML file over the defaults. Keys missing from the
// file keep their default values.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// Load returns the defaults, the file at path when path is non-empty, and
// then the environment overrides.
func Load(path string) (*Config, error) {
	config := DefaultConfig()
	if path != "" {
		var err error
		if config, err = LoadConfig(path); err != nil {
			return nil, err
		}
	}
	if err := config.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	return config, nil
}

// ApplyEnv overrides settings from environment variables.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("UTUBS_DB_PATH"); v != "" {
		c.Server.DBPath = v
	}
	if v := getenv("UTUBS_ADDR"); v != "" {
		c.Server.Addr = v
	} else if v := getenv("PORT"); v != "" {
		c.Server.Addr = ":" + v
	}
	if v := getenv("JWT_SECRET"); v != "" {
		c.Server.JWTSecret = v
	}
	if v := getenv("UTUBS_BASE_URL"); v != "" {
		c.Client.BaseURL = v
	}
	if v := getenv("UTUBS_TOKEN"); v != "" {
		c.Client.Token = v
	}
	if v := getenv("UTUBS_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("UTUBS_MAX_SELECTED_TAGS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid UTUBS_MAX_SELECTED_TAGS %q", v)
		}
		c.Filter.MaxSelectedTags = n
	}
	return nil
}

// CreateConfigFile creates a config file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
