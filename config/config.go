package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultPort is the local port the sandbox server is bound to. Arbitrary,
// chosen to be unlikely to conflict.
const DefaultPort = 15111

// Config represents the application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
	Probe   ProbeConfig   `mapstructure:"probe"`
	Sandbox SandboxConfig `mapstructure:"sandbox"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Transport string `mapstructure:"transport"`
	HTTPPort  int    `mapstructure:"http_port"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
}

// ProbeConfig holds host-side introspection settings
type ProbeConfig struct {
	Interpreter    string `mapstructure:"interpreter"`
	CatalogFile    string `mapstructure:"catalog_file"`
	IncludeObvious bool   `mapstructure:"include_obvious"`
}

// SandboxConfig holds settings for the sandbox server and the app it serves
type SandboxConfig struct {
	Command           string            `mapstructure:"command"`
	Args              []string          `mapstructure:"args"`
	Env               map[string]string `mapstructure:"env"`
	Port              int               `mapstructure:"port"`
	ReadyMarker       string            `mapstructure:"ready_marker"`
	StartupTimeoutSec int               `mapstructure:"startup_timeout_sec"`
	Application       string            `mapstructure:"application"`
	Version           int               `mapstructure:"version"`
	Runtime           string            `mapstructure:"runtime"`
	APIVersion        int               `mapstructure:"api_version"`
}

// Transport values
const (
	TransportNone  = "none"
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// New loads and validates the application configuration
func New() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("NOIMPORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// If config file not found, continue with defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.transport", TransportNone)
	v.SetDefault("server.http_port", 8080)

	// Diagnostics share stderr with the log, keep it quiet by default
	v.SetDefault("logging.mode", "production")
	v.SetDefault("logging.level", "warn")

	v.SetDefault("probe.interpreter", "python")
	v.SetDefault("probe.catalog_file", "")
	v.SetDefault("probe.include_obvious", false)

	v.SetDefault("sandbox.command", "dev_appserver.py")
	v.SetDefault("sandbox.args", []string{"-p", "{port}", "{app_dir}"})
	v.SetDefault("sandbox.env", map[string]string{})
	v.SetDefault("sandbox.port", DefaultPort)
	v.SetDefault("sandbox.ready_marker", "Running application")
	v.SetDefault("sandbox.startup_timeout_sec", 30)
	v.SetDefault("sandbox.application", "gaenoimport")
	v.SetDefault("sandbox.version", 1)
	v.SetDefault("sandbox.runtime", "python")
	v.SetDefault("sandbox.api_version", 1)
}

// validate ensures the configuration is valid
func (c *Config) validate() error {
	switch c.Server.Transport {
	case TransportNone, TransportStdio, TransportHTTP:
	default:
		return fmt.Errorf("invalid server.transport: %s, must be 'none', 'stdio' or 'http'", c.Server.Transport)
	}

	if c.Logging.Mode != "production" && c.Logging.Mode != "development" {
		return fmt.Errorf("invalid logging.mode: %s, must be 'production' or 'development'", c.Logging.Mode)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error", "dpanic", "panic", "fatal":
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	if c.Probe.Interpreter == "" {
		return errors.New("probe.interpreter must not be empty")
	}

	if c.Sandbox.Command == "" {
		return errors.New("sandbox.command must not be empty")
	}

	if c.Sandbox.Port <= 0 || c.Sandbox.Port > 65535 {
		return fmt.Errorf("sandbox.port out of range: %d", c.Sandbox.Port)
	}

	if c.Sandbox.StartupTimeoutSec <= 0 {
		return fmt.Errorf("sandbox.startup_timeout_sec must be positive, got: %d", c.Sandbox.StartupTimeoutSec)
	}

	if strings.TrimSpace(c.Sandbox.ReadyMarker) == "" {
		return errors.New("sandbox.ready_marker must not be empty")
	}

	if c.Sandbox.Application == "" {
		return errors.New("sandbox.application must not be empty")
	}

	return nil
}

// GetStartupTimeout returns the sandbox readiness timeout as a duration
func (c *Config) GetStartupTimeout() time.Duration {
	return time.Duration(c.Sandbox.StartupTimeoutSec) * time.Second
}

// SandboxEnv renders sandbox.env as sorted KEY=VALUE pairs. Viper lowercases
// map keys, so names are upper-cased again here.
func (c *Config) SandboxEnv() []string {
	env := make([]string, 0, len(c.Sandbox.Env))
	for key, value := range c.Sandbox.Env {
		env = append(env, fmt.Sprintf("%s=%s", strings.ToUpper(key), value))
	}
	slices.Sort(env)
	return env
}
