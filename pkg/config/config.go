package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig                 `yaml:"app"`
	Server     ServerConfig              `yaml:"server"`
	Providers  map[string]ProviderConfig `yaml:"providers"`
	Generation GenerationConfig          `yaml:"generation"`
	Intake     IntakeConfig              `yaml:"intake"`
	Session    SessionConfig             `yaml:"session"`
	Memory     MemoryConfig              `yaml:"memory"`
}

type AppConfig struct {
	Name      string `yaml:"name"`
	Workspace string `yaml:"workspace"`
}

type ServerConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	EnableCORS bool   `yaml:"enable_cors"`
}

type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url,omitempty"`
	Enabled bool   `yaml:"enabled"`
}

type GenerationConfig struct {
	MaxTokens     int     `yaml:"max_tokens"`
	Temperature   float64 `yaml:"temperature"`
	ContentBudget int     `yaml:"content_budget"` // max chars of file content embedded per prompt
}

type IntakeConfig struct {
	MaxFileBytes  int64    `yaml:"max_file_bytes"`  // 0 = unlimited
	MaxImageBytes int64    `yaml:"max_image_bytes"` // cap on inlined image handles
	DeniedNames   []string `yaml:"denied_names"`    // regex patterns rejected at intake
}

type SessionConfig struct {
	TTLMinutes int `yaml:"ttl_minutes"`
}

type MemoryConfig struct {
	Type string `yaml:"type"`
	Path string `yaml:"path"`
}

func LoadConfig(path string) *Config {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("failed to open config file: %v", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		log.Fatalf("failed to decode config file: %v", err)
	}

	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "localhost"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Generation.MaxTokens == 0 {
		c.Generation.MaxTokens = 4096
	}
	if c.Generation.Temperature == 0 {
		c.Generation.Temperature = 0.7
	}
	if c.Generation.ContentBudget == 0 {
		c.Generation.ContentBudget = 50000
	}
	if c.Intake.MaxImageBytes == 0 {
		c.Intake.MaxImageBytes = 4 * 1024 * 1024
	}
	if c.Session.TTLMinutes == 0 {
		c.Session.TTLMinutes = 60
	}
	if c.Memory.Path == "" {
		c.Memory.Path = "scribe.db"
	}
}

// SessionTTL returns the idle lifetime of a browser session.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Session.TTLMinutes) * time.Minute
}

// GetDefaultProvider returns the first enabled provider.
func (c *Config) GetDefaultProvider() (string, ProviderConfig) {
	for name, p := range c.Providers {
		if p.Enabled {
			return name, p
		}
	}
	return "", ProviderConfig{}
}
