// Package config handles careroute configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/careroute/careroute/session"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/careroute/config.yaml, /etc/careroute/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "careroute", "config.yaml"))
	}

	paths = append(paths, "/etc/careroute/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
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

// Config holds all careroute configuration.
type Config struct {
	Listen       ListenConfig  `yaml:"listen"`
	Model        ModelConfig   `yaml:"model"`
	Engine       EngineConfig  `yaml:"engine"`
	Session      SessionConfig `yaml:"session"`
	RemoteAgents []string      `yaml:"remote_agents"`
	LogLevel     string        `yaml:"log_level"`
	LogFormat    string        `yaml:"log_format"` // text or json
}

// ListenConfig defines the API server settings.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`
}

// ModelConfig defines the language-model backend.
type ModelConfig struct {
	Provider    string  `yaml:"provider"` // anthropic, openai or stub
	Name        string  `yaml:"name"`
	APIKey      string  `yaml:"api_key"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// EngineConfig tunes the agentic loop.
type EngineConfig struct {
	// MaxIterations caps tool-calling turns per exchange. 0 uses the
	// engine default.
	MaxIterations int `yaml:"max_iterations"`
	// Instruction is the system instruction sent with every backend call.
	Instruction string `yaml:"instruction"`
}

// SessionConfig defines the durable session store.
type SessionConfig struct {
	// Backend is memory, file or sqlite.
	Backend string `yaml:"backend"`
	// Path is the directory (file backend) or database file (sqlite).
	Path string `yaml:"path"`
	// TTL is a duration string, e.g. "24h". Empty uses the store default.
	TTL string `yaml:"ttl"`
}

// SessionTTL parses the configured session TTL.
func (c SessionConfig) SessionTTL() (time.Duration, error) {
	if c.TTL == "" {
		return session.DefaultTTL, nil
	}
	d, err := time.ParseDuration(c.TTL)
	if err != nil {
		return 0, fmt.Errorf("invalid session ttl %q: %w", c.TTL, err)
	}
	return d, nil
}

// Validate reports the first fatal configuration problem, or nil.
func (c *Config) Validate() error {
	switch c.Model.Provider {
	case "anthropic", "openai":
		if c.Model.Name == "" {
			return fmt.Errorf("model.name is required for provider %q", c.Model.Provider)
		}
	case "stub", "":
	default:
		return fmt.Errorf("unknown model provider %q", c.Model.Provider)
	}

	switch c.Session.Backend {
	case "", "memory":
	case "file", "sqlite":
		if c.Session.Path == "" {
			return fmt.Errorf("session.path is required for backend %q", c.Session.Backend)
		}
	default:
		return fmt.Errorf("unknown session backend %q", c.Session.Backend)
	}

	if _, err := c.Session.SessionTTL(); err != nil {
		return err
	}
	return nil
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

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Listen:    ListenConfig{Port: 8080},
		Model:     ModelConfig{Provider: "stub"},
		Session:   SessionConfig{Backend: "memory"},
		LogLevel:  "info",
		LogFormat: "text",
	}
}
