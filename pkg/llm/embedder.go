package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms/ollama"
)

// EmbedderConfig represents the configuration for the embedding client.
type EmbedderConfig struct {
	BaseURL   string // Ollama server URL
	Model     string
	VectorDim int
}

// Embedder produces fixed-dimension embeddings through an Ollama server. The
// same Embedder must be used for ingestion and search so that distances are
// comparable.
type Embedder struct {
	config EmbedderConfig
	client *ollama.LLM
}

func NewEmbedderWithConfig(config EmbedderConfig) (*Embedder, error) {
	if config.Model == "" {
		config.Model = "all-minilm:latest"
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 384
	}

	client, err := ollama.New(
		ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	return &Embedder{
		config: config,
		client: client,
	}, nil
}

// EmbedTexts embeds a batch of texts, one vector per input in order.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings, err := e.client.CreateEmbedding(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}
	for i, emb := range embeddings {
		if len(emb) != e.config.VectorDim {
			return nil, fmt.Errorf("embedding %d has dimension %d, want %d", i, len(emb), e.config.VectorDim)
		}
	}
	return embeddings, nil
}

// Dimensions returns the fixed embedding dimensionality.
func (e *Embedder) Dimensions() int {
	return e.config.VectorDim
}

// FlattenEmbeddings concatenates a batch of embeddings into a single vector.
func FlattenEmbeddings(embeddings [][]float32) []float32 {
	var flattened []float32
	for _, emb := range embeddings {
		flattened = append(flattened, emb...)
	}
	return flattened
}
