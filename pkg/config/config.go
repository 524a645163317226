// Package config loads application configuration from ~/.quorum/config.yaml
// and the environment, with environment variables taking precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	AnthropicAPIKey  string
	OpenAIAPIKey     string
	GoogleAPIKey     string
	OpenRouterAPIKey string
	ServerAPIKey     string

	CatalogURL     string
	EmbeddingModel string
	SynthesisModel string
	ListenAddr     string
	TraceDir       string
	CacheMaxBytes  int64

	MinWait    time.Duration
	SecondWave time.Duration
	Deadline   time.Duration

	ConfigDir string
}

// FileConfig represents the structure of ~/.quorum/config.yaml.
type FileConfig struct {
	APIKeys APIKeysConfig `yaml:"api_keys"`
	Engine  EngineConfig  `yaml:"engine"`
	Server  ServerConfig  `yaml:"server"`
}

// APIKeysConfig holds API key configuration from file.
type APIKeysConfig struct {
	Anthropic  string `yaml:"anthropic"`
	OpenAI     string `yaml:"openai"`
	Google     string `yaml:"google"`
	OpenRouter string `yaml:"openrouter"`
}

// EngineConfig tunes the consensus engine.
type EngineConfig struct {
	CatalogURL     string `yaml:"catalog_url,omitempty"`
	EmbeddingModel string `yaml:"embedding_model,omitempty"`
	SynthesisModel string `yaml:"synthesis_model,omitempty"`
	TraceDir       string `yaml:"trace_dir,omitempty"`
	CacheMaxMB     int64  `yaml:"cache_max_mb,omitempty"`
	MinWaitMs      int    `yaml:"min_wait_ms,omitempty"`
	SecondWaveMs   int    `yaml:"second_wave_ms,omitempty"`
	DeadlineMs     int    `yaml:"deadline_ms,omitempty"`
}

// ServerConfig tunes the HTTP front door.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr,omitempty"`
	APIKey     string `yaml:"api_key,omitempty"`
}

// Defaults applied when neither file nor environment provides a value.
const (
	DefaultEmbeddingModel = "openai/text-embedding-3-small"
	DefaultSynthesisModel = "anthropic/claude-sonnet-4"
	DefaultListenAddr     = ":8080"
	DefaultCacheMaxMB     = 64
)

// Load reads configuration from the config file and environment variables.
// Environment variables take precedence over file configuration.
func Load() (*Config, error) {
	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	fileConfig := loadFileConfig(filepath.Join(configDir, "config.yaml"))

	cfg := &Config{
		AnthropicAPIKey:  getEnvOrDefault("ANTHROPIC_API_KEY", fileConfig.APIKeys.Anthropic),
		OpenAIAPIKey:     getEnvOrDefault("OPENAI_API_KEY", fileConfig.APIKeys.OpenAI),
		GoogleAPIKey:     getEnvOrDefault("GOOGLE_API_KEY", fileConfig.APIKeys.Google),
		OpenRouterAPIKey: getEnvOrDefault("OPENROUTER_API_KEY", fileConfig.APIKeys.OpenRouter),
		ServerAPIKey:     getEnvOrDefault("QUORUM_API_KEY", fileConfig.Server.APIKey),

		CatalogURL:     getEnvOrDefault("QUORUM_CATALOG_URL", fileConfig.Engine.CatalogURL),
		EmbeddingModel: getEnvOrDefault("QUORUM_EMBEDDING_MODEL", fileConfig.Engine.EmbeddingModel),
		SynthesisModel: getEnvOrDefault("QUORUM_SYNTHESIS_MODEL", fileConfig.Engine.SynthesisModel),
		ListenAddr:     getEnvOrDefault("QUORUM_LISTEN_ADDR", fileConfig.Server.ListenAddr),
		TraceDir:       getEnvOrDefault("QUORUM_TRACE_DIR", fileConfig.Engine.TraceDir),

		CacheMaxBytes: envInt64("QUORUM_CACHE_MAX_MB", fileConfig.Engine.CacheMaxMB) << 20,
		MinWait:       time.Duration(fileConfig.Engine.MinWaitMs) * time.Millisecond,
		SecondWave:    time.Duration(fileConfig.Engine.SecondWaveMs) * time.Millisecond,
		Deadline:      time.Duration(fileConfig.Engine.DeadlineMs) * time.Millisecond,

		ConfigDir: configDir,
	}

	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = DefaultEmbeddingModel
	}
	if cfg.SynthesisModel == "" {
		cfg.SynthesisModel = DefaultSynthesisModel
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = DefaultListenAddr
	}
	if cfg.CacheMaxBytes <= 0 {
		cfg.CacheMaxBytes = DefaultCacheMaxMB << 20
	}

	return cfg, nil
}

// HasProvider returns true if the API key for the given provider is
// configured.
func (c *Config) HasProvider(name string) bool {
	switch name {
	case "anthropic":
		return c.AnthropicAPIKey != ""
	case "openai":
		return c.OpenAIAPIKey != ""
	case "google":
		return c.GoogleAPIKey != ""
	case "openrouter":
		return c.OpenRouterAPIKey != ""
	default:
		return false
	}
}

// loadFileConfig reads the config file, returning empty config if not found.
func loadFileConfig(path string) *FileConfig {
	cfg := &FileConfig{}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg // Return empty config if file doesn't exist
	}

	_ = yaml.Unmarshal(data, cfg) // Ignore parse errors, use defaults
	return cfg
}

// getEnvOrDefault returns the environment variable value if set,
// otherwise returns the default value.
func getEnvOrDefault(envVar, defaultValue string) string {
	if val := os.Getenv(envVar); val != "" {
		return val
	}
	return defaultValue
}

func envInt64(envVar string, defaultValue int64) int64 {
	if val := os.Getenv(envVar); val != "" {
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}

func getConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	configDir := filepath.Join(home, ".quorum")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", err
	}
	return configDir, nil
}
