package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/AVIDS2/memorix/internal/memerr"
)

// LocalAIProvider speaks the OpenAI embeddings API against a local
// endpoint (LM Studio, llamafile, LocalAI). It is the portable fallback
// when Ollama is not running.
type LocalAIProvider struct {
	client openai.Client
	model  string
	dims   int
}

func NewLocalAIProvider(baseURL, model string, dims int) *LocalAIProvider {
	client := openai.NewClient(
		option.WithBaseURL(baseURL),
		// Local endpoints ignore the key but the client requires one.
		option.WithAPIKey("memorix-local"),
	)
	return &LocalAIProvider{client: client, model: model, dims: dims}
}

func (p *LocalAIProvider) Name() string    { return "local-openai/" + p.model }
func (p *LocalAIProvider) Dimensions() int { return p.dims }

func (p *LocalAIProvider) Embed(text string) ([]float32, error) {
	vecs, err := p.EmbedBatch([]string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (p *LocalAIProvider) EmbedBatch(texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	resp, err := p.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(p.model),
	})
	if err != nil {
		return nil, fmt.Errorf("local embed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("endpoint returned %d embeddings for %d texts", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		for i, f := range d.Embedding {
			vec[i] = float32(f)
		}
		if len(vec) != p.dims {
			return nil, memerr.Newf(memerr.KindDimensionMismatch,
				"endpoint returned %d dimensions, provider declares %d", len(vec), p.dims)
		}
		out[d.Index] = vec
	}
	return out, nil
}

// HealthCheck verifies the endpoint answers the models listing.
func (p *LocalAIProvider) HealthCheck() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := p.client.Models.List(ctx); err != nil {
		return fmt.Errorf("local endpoint health check: %w", err)
	}
	return nil
}
