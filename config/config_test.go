package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Transport: TransportNone,
			HTTPPort:  8080,
		},
		Logging: LoggingConfig{
			Mode:  "production",
			Level: "warn",
		},
		Probe: ProbeConfig{
			Interpreter: "python",
		},
		Sandbox: SandboxConfig{
			Command:           "dev_appserver.py",
			Args:              []string{"-p", "{port}", "{app_dir}"},
			Port:              DefaultPort,
			ReadyMarker:       "Running application",
			StartupTimeoutSec: 30,
			Application:       "gaenoimport",
			Version:           1,
			Runtime:           "python",
			APIVersion:        1,
		},
	}
}

func TestConfigValidation(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		require.NoError(t, validConfig().validate())
	})

	t.Run("MCPTransports", func(t *testing.T) {
		for _, transport := range []string{TransportStdio, TransportHTTP} {
			cfg := validConfig()
			cfg.Server.Transport = transport
			require.NoError(t, cfg.validate(), transport)
		}
	})

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"InvalidServerTransport", func(c *Config) { c.Server.Transport = "grpc" }, "invalid server.transport"},
		{"InvalidLoggingMode", func(c *Config) { c.Logging.Mode = "invalid_mode" }, "invalid logging.mode"},
		{"InvalidLogLevel", func(c *Config) { c.Logging.Level = "invalid_level" }, "invalid logging.level"},
		{"EmptyInterpreter", func(c *Config) { c.Probe.Interpreter = "" }, "probe.interpreter"},
		{"EmptyCommand", func(c *Config) { c.Sandbox.Command = "" }, "sandbox.command"},
		{"PortTooLow", func(c *Config) { c.Sandbox.Port = 0 }, "sandbox.port out of range"},
		{"PortTooHigh", func(c *Config) { c.Sandbox.Port = 70000 }, "sandbox.port out of range"},
		{"InvalidStartupTimeout", func(c *Config) { c.Sandbox.StartupTimeoutSec = 0 }, "sandbox.startup_timeout_sec must be positive"},
		{"BlankReadyMarker", func(c *Config) { c.Sandbox.ReadyMarker = "  " }, "sandbox.ready_marker"},
		{"EmptyApplication", func(c *Config) { c.Sandbox.Application = "" }, "sandbox.application"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewDefaults(t *testing.T) {
	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, TransportNone, cfg.Server.Transport)
	assert.Equal(t, DefaultPort, cfg.Sandbox.Port)
	assert.Equal(t, "dev_appserver.py", cfg.Sandbox.Command)
	assert.Equal(t, []string{"-p", "{port}", "{app_dir}"}, cfg.Sandbox.Args)
	assert.Equal(t, "Running application", cfg.Sandbox.ReadyMarker)
	assert.Equal(t, "gaenoimport", cfg.Sandbox.Application)
	assert.Equal(t, "python", cfg.Probe.Interpreter)
	assert.Equal(t, 30*time.Second, cfg.GetStartupTimeout())
}

func TestNewEnvironmentOverride(t *testing.T) {
	t.Setenv("NOIMPORT_SANDBOX_PORT", "16001")
	t.Setenv("NOIMPORT_PROBE_INTERPRETER", "python2.5")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, 16001, cfg.Sandbox.Port)
	assert.Equal(t, "python2.5", cfg.Probe.Interpreter)
}

func TestSandboxEnv(t *testing.T) {
	cfg := validConfig()
	cfg.Sandbox.Env = map[string]string{"pythonpath": "/opt/lib", "appengine_sdk": "/sdk"}

	assert.Equal(t, []string{"APPENGINE_SDK=/sdk", "PYTHONPATH=/opt/lib"}, cfg.SandboxEnv())
}
