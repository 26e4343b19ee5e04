package main

import (
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the hippo configuration file (~/.config/hippo/config.yaml).
type Config struct {
	CacheDir  string `yaml:"cache_dir"`
	HFToken   string `yaml:"hf_token"`
	PushOwner string `yaml:"push_owner"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "hippo", "config.yaml")
}

// LoadConfig reads the config file. Returns a zero Config if the file doesn't
// exist or fails to parse.
func LoadConfig() Config {
	path := configPath()
	if path == "" {
		return Config{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}
	}
	return cfg
}

// applyConfig fills in values from the config file when the corresponding
// CLI flag was not explicitly set.
func applyConfig(c *cli.Command, cfg Config, cacheDir, hfToken, pushOwner *string) {
	if cfg.CacheDir != "" && !c.IsSet("cache-dir") {
		*cacheDir = cfg.CacheDir
	}
	if cfg.HFToken != "" && !c.IsSet("hf-token") {
		*hfToken = cfg.HFToken
	}
	if pushOwner != nil && cfg.PushOwner != "" && !c.IsSet("push-owner") {
		*pushOwner = cfg.PushOwner
	}
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}
