// Package embedding abstracts the optional local embedding backends behind
// one Provider interface, with a two-layer (in-memory + on-disk) cache
// keyed by text hash. When no backend is reachable the engine runs
// lexical-only; nothing here is required for correctness.
package embedding

import (
	"log/slog"

	"github.com/AVIDS2/memorix/internal/config"
)

// Provider produces fixed-dimension float vectors for text. At most one
// provider is active per process; a nil Provider means vector search is off.
type Provider interface {
	Name() string
	Dimensions() int
	Embed(text string) ([]float32, error)
	EmbedBatch(texts []string) ([][]float32, error)
}

// batchSize is the provider-native batch split for EmbedBatch throughput.
const batchSize = 64

// Select probes the available backends in a fixed order and returns the
// first that answers, or nil when none do. The result is decided once at
// startup and cached for the life of the process — hybrid search stays
// opt-in with zero runtime penalty when no backend is installed.
func Select(cfg *config.Config, logger *slog.Logger) Provider {
	ollama := NewOllamaProvider(cfg.OllamaBaseURL, cfg.EmbeddingModel, cfg.EmbeddingDim)
	if err := ollama.HealthCheck(); err == nil {
		logger.Info("embedding provider active", "provider", ollama.Name(), "dimensions", ollama.Dimensions())
		return ollama
	} else {
		logger.Debug("ollama unavailable", "error", err)
	}

	local := NewLocalAIProvider(cfg.LocalAIBaseURL, cfg.LocalAIModel, cfg.EmbeddingDim)
	if err := local.HealthCheck(); err == nil {
		logger.Info("embedding provider active", "provider", local.Name(), "dimensions", local.Dimensions())
		return local
	} else {
		logger.Debug("local openai-compatible endpoint unavailable", "error", err)
	}

	logger.Info("no embedding provider available, search is lexical-only")
	return nil
}
