// Package service wires the RCON session, log socket, and handlers into a
// running daemon, configured from a TOML file.
package service

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config represents the structure of the daemon config file.
type Config struct {
	RCON     RCONSection                  `toml:"rcon"`
	Log      LogSection                   `toml:"log"`
	Metrics  MetricsSection               `toml:"metrics"`
	Handlers HandlersSection              `toml:"handlers"`
	Handler  map[string]map[string]string `toml:"handler"`
}

type RCONSection struct {
	Host           string `toml:"host"`
	Port           int    `toml:"port"`
	Password       string `toml:"password"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type LogSection struct {
	Port int `toml:"port"`
}

type MetricsSection struct {
	Enabled bool   `toml:"enabled"`
	Listen  string `toml:"listen"`
}

type HandlersSection struct {
	Enabled []string `toml:"enabled"`
}

// DefaultConfig returns the default configuration. It points at a local
// game server and enables no handlers, which makes for a daemon that
// connects and then does nothing until the operator fills the file in.
func DefaultConfig() Config {
	return Config{
		RCON: RCONSection{
			Host:           "127.0.0.1",
			Port:           27015,
			TimeoutSeconds: 10,
		},
		Log: LogSection{
			Port: 1776,
		},
		Metrics: MetricsSection{
			Enabled: false,
			Listen:  "127.0.0.1:9090",
		},
		Handlers: HandlersSection{
			Enabled: []string{},
		},
		Handler: map[string]map[string]string{},
	}
}

// LoadConfig loads configuration from a TOML file, creating a default one
// if the file does not exist.
func LoadConfig(path string) (Config, error) {
	expanded, err := expandHome(path)
	if err != nil {
		return Config{}, err
	}

	if _, err := os.Stat(expanded); os.IsNotExist(err) {
		config := DefaultConfig()
		if err := writeDefaultConfig(expanded, config); err != nil {
			// Possibly a permissions issue; defaults still let us run.
			return config, nil
		}
		return config, nil
	}

	config := DefaultConfig()
	if _, err := toml.DecodeFile(expanded, &config); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// Validate checks the parts of the config the daemon cannot run without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.RCON.Host) == "" {
		return fmt.Errorf("rcon.host must be set")
	}
	if c.RCON.Port <= 0 || c.RCON.Port > 65535 {
		return fmt.Errorf("rcon.port %d is out of range", c.RCON.Port)
	}
	if c.Log.Port < 0 || c.Log.Port > 65535 {
		return fmt.Errorf("log.port %d is out of range", c.Log.Port)
	}
	if c.Metrics.Enabled && strings.TrimSpace(c.Metrics.Listen) == "" {
		return fmt.Errorf("metrics.listen must be set when metrics are enabled")
	}
	return nil
}

// HandlerOptions returns the option table for a handler, never nil.
func (c *Config) HandlerOptions(name string) map[string]string {
	if opts, ok := c.Handler[name]; ok {
		return opts
	}
	return map[string]string{}
}

// writeDefaultConfig writes the default config to a file.
func writeDefaultConfig(path string, config Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	header := `# srcwatch configuration
# This file was auto-generated with default values.
# Set rcon.password and enable handlers, then restart the daemon.

`
	if _, err := f.WriteString(header); err != nil {
		return err
	}

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(config); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, path[2:]), nil
}
