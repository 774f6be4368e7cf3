package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/evanoh/chatrelay/internal/logger"
	"github.com/evanoh/chatrelay/internal/proxy"
	"github.com/evanoh/chatrelay/internal/worker"
)

// DefaultListen is the gateway's own listen address; it must stay distinct
// from the worker's fixed loopback port.
const DefaultListen = ":3001"

// Config is the top-level TOML structure.
//
//	listen = ":3001"
//	base_path = ""
//	log_level = "info"
//
//	[worker]
//	command = "llm-worker"
//	port = 3039
//	startup_grace = "5s"
//	stop_grace = "5s"
//	kill_timeout = "2s"
//
//	[worker.log]
//	dir = "/var/log/chatrelay"
//
//	[proxy]
//	timeout = "60s"
//
//	[metrics]
//	enabled = true
//	listen = ":9090"
type Config struct {
	Listen   string         `toml:"listen" mapstructure:"listen"`
	BasePath string         `toml:"base_path" mapstructure:"base_path"`
	LogLevel string         `toml:"log_level" mapstructure:"log_level"`
	Worker   WorkerConfig   `toml:"worker" mapstructure:"worker"`
	Proxy    ProxyConfig    `toml:"proxy" mapstructure:"proxy"`
	Metrics  *MetricsConfig `toml:"metrics" mapstructure:"metrics"`
}

type WorkerConfig struct {
	Command      string        `toml:"command" mapstructure:"command"`
	Port         int           `toml:"port" mapstructure:"port"`
	WorkDir      string        `toml:"work_dir" mapstructure:"work_dir"`
	Env          []string      `toml:"env" mapstructure:"env"`
	StartupGrace time.Duration `toml:"startup_grace" mapstructure:"startup_grace"`
	StopGrace    time.Duration `toml:"stop_grace" mapstructure:"stop_grace"`
	KillTimeout  time.Duration `toml:"kill_timeout" mapstructure:"kill_timeout"`
	Log          logger.Config `toml:"log" mapstructure:"log"`
}

type ProxyConfig struct {
	Timeout time.Duration `toml:"timeout" mapstructure:"timeout"`
}

type MetricsConfig struct {
	Enabled bool   `toml:"enabled" mapstructure:"enabled"`
	Listen  string `toml:"listen" mapstructure:"listen"` // empty mounts /metrics on the main listener
}

// Default returns a config with all defaults applied and no worker command.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads a TOML config file and applies defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Worker.Port == 0 {
		c.Worker.Port = worker.DefaultPort
	}
	if c.Worker.StartupGrace <= 0 {
		c.Worker.StartupGrace = worker.DefaultStartupGrace
	}
	if c.Worker.StopGrace <= 0 {
		c.Worker.StopGrace = worker.DefaultStopGrace
	}
	if c.Worker.KillTimeout <= 0 {
		c.Worker.KillTimeout = worker.DefaultKillTimeout
	}
	if c.Proxy.Timeout <= 0 {
		c.Proxy.Timeout = proxy.DefaultTimeout
	}
}

// Validate rejects configurations that could never serve.
func (c *Config) Validate() error {
	if c.Worker.Port <= 0 || c.Worker.Port > 65535 {
		return fmt.Errorf("worker.port %d out of range", c.Worker.Port)
	}
	if c.Metrics != nil && c.Metrics.Enabled && c.Metrics.Listen == c.Listen && c.Metrics.Listen != "" {
		return fmt.Errorf("metrics.listen must differ from the gateway listen address")
	}
	return nil
}

// WorkerSpec builds the supervisor spec for the given credential.
func (c *Config) WorkerSpec(credential string) worker.Spec {
	return worker.Spec{
		Command:      c.Worker.Command,
		Credential:   credential,
		Port:         c.Worker.Port,
		WorkDir:      c.Worker.WorkDir,
		Env:          c.Worker.Env,
		StartupGrace: c.Worker.StartupGrace,
		StopGrace:    c.Worker.StopGrace,
		KillTimeout:  c.Worker.KillTimeout,
		Log:          c.Worker.Log,
	}
}
