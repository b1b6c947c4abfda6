package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the process-wide configuration. Values come from environment
// variables with defaults, optionally overlaid by ~/.memorix/config.yaml
// for the tunables people actually edit (decay constants, search weights,
// embedding endpoints). Everything else is per-call.
type Config struct {
	DataDir    string
	ProjectDir string
	LogLevel   string

	// Embedding providers, probed in order: Ollama, then any
	// OpenAI-compatible local endpoint.
	OllamaBaseURL  string `yaml:"ollamaBaseUrl"`
	EmbeddingModel string `yaml:"embeddingModel"`
	EmbeddingDim   int    `yaml:"embeddingDim"`
	LocalAIBaseURL string `yaml:"localAiBaseUrl"`
	LocalAIModel   string `yaml:"localAiModel"`

	// Hybrid search tuning.
	TextWeight      float64 `yaml:"textWeight"`
	VectorWeight    float64 `yaml:"vectorWeight"`
	VectorThreshold float64 `yaml:"vectorThreshold"`

	// Retention decay. Zero means "use the named defaults in retention".
	HalfLifeHours       float64            `yaml:"halfLifeHours"`
	CausalHalfLifeHours float64            `yaml:"causalHalfLifeHours"`
	BaseScores          map[string]float64 `yaml:"baseScores"`

	// Dashboard.
	DashboardAddr string `yaml:"dashboardAddr"`
}

// Load builds the configuration from the environment plus the optional
// overrides file. A missing overrides file is fine; an unparsable one is a
// hard error so a typo never silently reverts tuning to defaults.
func Load() (*Config, error) {
	cfg := &Config{
		DataDir:         envStr("MEMORIX_DATA_DIR", defaultDataDir()),
		ProjectDir:      envStr("MEMORIX_PROJECT_DIR", ""),
		LogLevel:        envStr("LOG_LEVEL", "info"),
		OllamaBaseURL:   envStr("OLLAMA_BASE_URL", "http://localhost:11434"),
		EmbeddingModel:  envStr("EMBEDDING_MODEL", "nomic-embed-text"),
		EmbeddingDim:    envInt("EMBEDDING_DIM", 768),
		LocalAIBaseURL:  envStr("LOCALAI_BASE_URL", "http://localhost:8080/v1"),
		LocalAIModel:    envStr("LOCALAI_MODEL", "text-embedding-ada-002"),
		TextWeight:      envFloat("SEARCH_TEXT_WEIGHT", 0.6),
		VectorWeight:    envFloat("SEARCH_VECTOR_WEIGHT", 0.4),
		VectorThreshold: envFloat("SEARCH_VECTOR_THRESHOLD", 0.5),
		DashboardAddr:   envStr("DASHBOARD_ADDR", "127.0.0.1:8742"),
	}

	if err := cfg.applyOverrides(overridesPath()); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("MEMORIX_DATA_DIR must not be empty")
	}
	if c.EmbeddingDim < 1 {
		return fmt.Errorf("EMBEDDING_DIM must be positive, got %d", c.EmbeddingDim)
	}
	sum := c.TextWeight + c.VectorWeight
	if sum < 0.99 || sum > 1.01 {
		return fmt.Errorf("text and vector weights must sum to 1.0, got %f", sum)
	}
	if c.VectorThreshold < 0 || c.VectorThreshold > 1 {
		return fmt.Errorf("vector threshold must be in [0,1], got %f", c.VectorThreshold)
	}
	return nil
}

// applyOverrides overlays the YAML file at path onto c. Only fields present
// in the file are touched.
func (c *Config) applyOverrides(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".memorix", "data")
	}
	return filepath.Join(home, ".memorix", "data")
}

func overridesPath() string {
	if p := os.Getenv("MEMORIX_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".memorix", "config.yaml")
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
