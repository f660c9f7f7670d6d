package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEmbedderWithConfigDefaults(t *testing.T) {
	e, err := NewEmbedderWithConfig(EmbedderConfig{})
	require.NoError(t, err)
	assert.Equal(t, 384, e.Dimensions())
	assert.Equal(t, "all-minilm:latest", e.config.Model)
	assert.Equal(t, "http://localhost:11434", e.config.BaseURL)
}

func TestNewEmbedderWithConfigOverrides(t *testing.T) {
	e, err := NewEmbedderWithConfig(EmbedderConfig{
		BaseURL:   "http://embeddings:11434",
		Model:     "nomic-embed-text",
		VectorDim: 768,
	})
	require.NoError(t, err)
	assert.Equal(t, 768, e.Dimensions())
}
