// Package common provides configuration and logging shared across the
// bench runner's components.
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for the bench runner.
type Config struct {
	GitHubRepoOwner string       `toml:"github_repo_owner"`
	GitHubRepoName  string       `toml:"github_repo_name"`
	AppBaseURL      string       `toml:"app_base_url"`
	GitHubToken     string       `toml:"github_token"`
	BotLogin        string       `toml:"bot_login"`
	DataDir         string       `toml:"data_dir"`
	HarnessScript   string        `toml:"harness_script"`
	Server          ServerConfig  `toml:"server"`
	Logging         LoggingConfig `toml:"logging"`
}

// ServerConfig holds the ambient health/metrics HTTP endpoint configuration.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// NewDefaultConfig returns a Config with sensible development defaults.
func NewDefaultConfig() *Config {
	return &Config{
		GitHubRepoOwner: "rustls",
		GitHubRepoName:  "rustls",
		AppBaseURL:      "http://localhost:8080",
		BotLogin:        "rustls-bench",
		DataDir:         "data",
		HarnessScript:   "ci-bench-runner/runner.sh",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadConfig loads configuration from TOML files with environment overrides.
// Files are merged in order (later files override earlier); each is skipped
// silently if missing.
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for _, path := range paths {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies CIBENCH_* environment variable overrides.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("CIBENCH_GITHUB_REPO_OWNER"); v != "" {
		config.GitHubRepoOwner = v
	}
	if v := os.Getenv("CIBENCH_GITHUB_REPO_NAME"); v != "" {
		config.GitHubRepoName = v
	}
	if v := os.Getenv("CIBENCH_APP_BASE_URL"); v != "" {
		config.AppBaseURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("CIBENCH_GITHUB_TOKEN"); v != "" {
		config.GitHubToken = v
	}
	if v := os.Getenv("CIBENCH_BOT_LOGIN"); v != "" {
		config.BotLogin = v
	}
	if v := os.Getenv("CIBENCH_DATA_DIR"); v != "" {
		config.DataDir = v
	}
	if v := os.Getenv("CIBENCH_HARNESS_SCRIPT"); v != "" {
		config.HarnessScript = v
	}
	if v := os.Getenv("CIBENCH_HOST"); v != "" {
		config.Server.Host = v
	}
	if v := os.Getenv("CIBENCH_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			config.Server.Port = p
		}
	}
	if v := os.Getenv("CIBENCH_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("CIBENCH_LOG_FORMAT"); v != "" {
		config.Logging.Format = v
	}
}
