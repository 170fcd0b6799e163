package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all bot configuration
type Config struct {
	Nick       string `yaml:"nick"`
	NickPass   string `yaml:"nick_pass"`
	Alternate  string `yaml:"alternate"`
	Server     string `yaml:"server"`
	Port       int    `yaml:"port"`
	UseTLS     bool   `yaml:"tls"`
	ServerPass string `yaml:"server_pass"`
	IRCName    string `yaml:"irc_name"`
	Username   string `yaml:"username"`

	// Prefix is the command prefix handlers with the prefixed policy
	// require, e.g. "!". NickFallback additionally accepts messages
	// addressed to the bot's nick when the prefix is missing.
	Prefix       string `yaml:"prefix"`
	NickFallback bool   `yaml:"nick_fallback"`

	// HomeChannels are joined on connect and are the channels
	// home-scoped handlers respond in.
	HomeChannels []string `yaml:"home_channels"`

	// RetryTimeout bounds, in seconds, how long a pending directory
	// lookup replay stays valid and how long a lookup result counts
	// as fresh.
	RetryTimeout int64 `yaml:"retry_timeout"`

	// RehashInterval is the periodic-hook interval in seconds.
	RehashInterval int64 `yaml:"rehash_interval"`

	// DisabledPlugins are skipped by dispatch and lifecycle calls.
	DisabledPlugins []string `yaml:"disabled_plugins"`

	DataDir  string `yaml:"data_dir"`
	LogLevel string `yaml:"log_level"`
}

// Load reads and parses a YAML configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.DataDir == "" {
		cfg.DataDir = "./data"
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "!"
	}
	if cfg.Port == 0 {
		cfg.Port = 6667
	}
	if cfg.RetryTimeout == 0 {
		cfg.RetryTimeout = 300
	}
	if cfg.RehashInterval == 0 {
		cfg.RehashInterval = 600
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

// Default returns a config with only the defaults applied, for hosts
// that configure programmatically.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}
