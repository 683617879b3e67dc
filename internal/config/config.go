// Package config handles Gatekeeper configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/gatekeeper/config.yaml, /etc/gatekeeper/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "gatekeeper", "config.yaml"))
	}

	paths = append(paths, "/etc/gatekeeper/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all Gatekeeper configuration.
type Config struct {
	Listen     ListenConfig    `yaml:"listen"`
	Database   DatabaseConfig  `yaml:"database"`
	Model      ModelConfig     `yaml:"model"`
	Agents     AgentsConfig    `yaml:"agents"`
	HTTPTool   HTTPToolConfig  `yaml:"http_tool"`
	Plans      map[string]Plan `yaml:"plans"`
	OwnerEmail string          `yaml:"owner_email"`
	LogLevel   string          `yaml:"log_level"`
}

// ListenConfig defines the API server settings.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`
}

// DatabaseConfig defines the SQLite database location.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ModelConfig defines the chat completion service boundary.
type ModelConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Default string `yaml:"default"` // default model for new agents
}

// AgentsConfig bounds a single conversational turn.
type AgentsConfig struct {
	// HistoryWindow is the number of trailing persisted messages included
	// in each model call. Older history is dropped, never summarized.
	HistoryWindow int `yaml:"history_window"`
	// MaxIterations caps reasoning/tool cycles per turn.
	MaxIterations int `yaml:"max_iterations"`
	// DefaultTemperature is applied to agents created without one.
	DefaultTemperature float64 `yaml:"default_temperature"`
}

// HTTPToolConfig bounds the outbound HTTP request capability.
type HTTPToolConfig struct {
	Attempts         int           `yaml:"attempts"`
	RetryDelay       time.Duration `yaml:"retry_delay"`
	Timeout          time.Duration `yaml:"timeout"` // per attempt
	MaxResponseChars int           `yaml:"max_response_chars"`
}

// Plan is one service tier's resource caps.
type Plan struct {
	Agents   int `yaml:"agents"`
	Messages int `yaml:"messages"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Listen:   ListenConfig{Port: 8080},
		Database: DatabaseConfig{Path: "gatekeeper.db"},
		Model: ModelConfig{
			BaseURL: "https://api.openai.com",
			Default: "gpt-4o-mini",
		},
		Agents: AgentsConfig{
			HistoryWindow:      20,
			MaxIterations:      5,
			DefaultTemperature: 0.7,
		},
		HTTPTool: HTTPToolConfig{
			Attempts:         3,
			RetryDelay:       2 * time.Second,
			Timeout:          15 * time.Second,
			MaxResponseChars: 1200,
		},
		Plans: map[string]Plan{
			"free": {Agents: 1, Messages: 50},
			"pro":  {Agents: 10, Messages: 1000},
			"vip":  {Agents: 99999, Messages: 99999},
		},
	}
}
