// Package config handles configuration loading and management.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"

	"github.com/eachlabs/steer/internal/protocol"
)

// Config represents the steer configuration.
type Config struct {
	Bot      BotConfig      `toml:"bot"`
	Server   ServerConfig   `toml:"server"`
	Logging  LoggingConfig  `toml:"logging"`
	Sessions SessionsConfig `toml:"sessions"`
}

// BotConfig holds the client side of the bot channel.
type BotConfig struct {
	Endpoint string `toml:"endpoint" env:"STEER_ENDPOINT"`
	// Location pins the location sent with structured frames. Empty sends
	// the current route.
	Location string `toml:"location" env:"STEER_LOCATION"`
	Outbound string `toml:"outbound" env:"STEER_OUTBOUND"`

	// Palette maps color names accepted from the backend to display values.
	Palette map[string]string `toml:"palette"`
	// Routes maps logical route names to paths.
	Routes map[string]string `toml:"routes"`
}

// ServerConfig holds demo backend settings.
type ServerConfig struct {
	Listen    string `toml:"listen" env:"STEER_LISTEN"`
	RulesFile string `toml:"rules_file" env:"STEER_RULES"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level       string         `toml:"level" env:"STEER_LOG_LEVEL"`
	Format      string         `toml:"format" env:"STEER_LOG_FORMAT"` // "console" or "json"
	Outputs     []string       `toml:"outputs"`                       // "stdout", "stderr" or file paths
	Development bool           `toml:"development"`
	Rotation    RotationConfig `toml:"rotation"`
}

// RotationConfig controls lumberjack rotation for file outputs.
type RotationConfig struct {
	Enable     bool   `toml:"enable"`
	Filename   string `toml:"filename"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

// SessionsConfig controls state snapshot persistence.
type SessionsConfig struct {
	Persist bool `toml:"persist" env:"STEER_PERSIST"`
}

// DefaultPalette is the color lookup used when the config does not set one.
func DefaultPalette() map[string]string {
	return map[string]string{
		"red":    "#EF4444",
		"green":  "#22C55E",
		"blue":   "#3B82F6",
		"yellow": "#EAB308",
		"purple": "#A855F7",
		"orange": "#F97316",
	}
}

// DefaultRoutes is the route-name lookup used when the config does not set one.
func DefaultRoutes() map[string]string {
	return map[string]string{
		"welcome":  "/",
		"settings": "/settings",
		"tasks":    "/tasks",
	}
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	return LoadFile(ConfigPath())
}

// LoadFile reads configuration from the given path (if it exists) and
// applies environment overrides.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	cfg.fillDefaults()
	cfg.expandPaths()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ConfigPath returns the path to the config file.
func ConfigPath() string {
	if p := os.Getenv("STEER_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(StateDir(), "config.toml")
}

// StateDir returns the steer state directory.
func StateDir() string {
	if p := os.Getenv("STEER_STATE_DIR"); p != "" {
		return p
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".steer")
}

// SessionsDir returns the snapshot directory.
func SessionsDir() string {
	return filepath.Join(StateDir(), "sessions")
}

// LogsDir returns the logs directory.
func LogsDir() string {
	return filepath.Join(StateDir(), "logs")
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Bot: BotConfig{
			Endpoint: "ws://localhost:8000/ws",
			Outbound: string(protocol.OutboundStructured),
			Palette:  DefaultPalette(),
			Routes:   DefaultRoutes(),
		},
		Server: ServerConfig{
			Listen: "localhost:8000",
		},
		Logging: LoggingConfig{
			Level:   "info",
			Format:  "console",
			Outputs: []string{filepath.Join(LogsDir(), "steer.log")},
		},
	}
}

// fillDefaults restores lookups that a config file emptied out.
func (c *Config) fillDefaults() {
	if len(c.Bot.Palette) == 0 {
		c.Bot.Palette = DefaultPalette()
	}
	if len(c.Bot.Routes) == 0 {
		c.Bot.Routes = DefaultRoutes()
	}
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Bot.Endpoint) == "" {
		return fmt.Errorf("bot.endpoint must not be empty")
	}
	if _, err := protocol.ParseOutboundMode(c.Bot.Outbound); err != nil {
		return fmt.Errorf("bot.outbound: %w", err)
	}
	return nil
}

// OutboundMode returns the validated outbound mode.
func (c *Config) OutboundMode() protocol.OutboundMode {
	mode, err := protocol.ParseOutboundMode(c.Bot.Outbound)
	if err != nil {
		return protocol.OutboundStructured
	}
	return mode
}

func (c *Config) expandPaths() {
	home, _ := os.UserHomeDir()

	expand := func(p string) string {
		if strings.HasPrefix(p, "~/") {
			return filepath.Join(home, p[2:])
		}
		if strings.HasPrefix(p, "$HOME/") {
			return filepath.Join(home, p[6:])
		}
		return p
	}

	c.Server.RulesFile = expand(c.Server.RulesFile)
	c.Logging.Rotation.Filename = expand(c.Logging.Rotation.Filename)
	for i, out := range c.Logging.Outputs {
		c.Logging.Outputs[i] = expand(out)
	}
}

// Save writes the config to path.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(c)
}

// EnsureDirs creates necessary directories.
func EnsureDirs() error {
	dirs := []string{
		StateDir(),
		SessionsDir(),
		LogsDir(),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	return nil
}
