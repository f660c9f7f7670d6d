package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	// Create temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configData := `
llm:
  provider: "openai"
  base_url: "https://api.groq.com/openai/v1"
  model: "llama-3.1-8b-instant"
  max_tokens: 1000
  temperature: 0.5
  max_attempts: 2

embedder:
  base_url: "http://localhost:11434"
  model: "all-minilm:latest"
  vector_dim: 384

database:
  url: "postgres://localhost:5432/test"
  collection: "test_chunks"

chunker:
  chunk_size: 500
  chunk_overlap: 100

pipeline:
  pdf_directory: "/tmp/docs"
  max_workers: 2
  document_types:
    "schedule.pdf": "schedule"

server:
  port: "9090"
`
	err := os.WriteFile(configPath, []byte(configData), 0644)
	require.NoError(t, err)

	// Test loading config
	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	// Verify loaded values
	assert.Equal(t, "openai", config.LLM.Provider)
	assert.Equal(t, "llama-3.1-8b-instant", config.LLM.Model)
	assert.Equal(t, 1000, config.LLM.MaxTokens)
	assert.Equal(t, 0.5, config.LLM.Temperature)
	assert.Equal(t, 2, config.LLM.MaxAttempts)
	assert.Equal(t, 384, config.Embedder.VectorDim)
	assert.Equal(t, "postgres://localhost:5432/test", config.Database.URL)
	assert.Equal(t, "test_chunks", config.Database.Collection)
	assert.Equal(t, 500, config.Chunker.ChunkSize)
	assert.Equal(t, "/tmp/docs", config.Pipeline.PDFDirectory)
	assert.Equal(t, 2, config.Pipeline.MaxWorkers)
	assert.Equal(t, "schedule", config.Pipeline.DocumentTypes["schedule.pdf"])
	assert.Equal(t, "9090", config.Server.Port)
}

func TestLoadConfigDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("llm:\n  model: mistral\n"), 0644))

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "openai", config.LLM.Provider)
	assert.Equal(t, "mistral", config.LLM.Model)
	assert.Equal(t, 3, config.LLM.MaxAttempts)
	assert.Equal(t, 384, config.Embedder.VectorDim)
	assert.Equal(t, "document_chunks", config.Database.Collection)
	assert.Equal(t, 1000, config.Chunker.ChunkSize)
	assert.Equal(t, 200, config.Chunker.ChunkOverlap)
	assert.Equal(t, 4, config.Pipeline.MaxWorkers)
	assert.NotEmpty(t, config.Pipeline.DocumentTypes)
}

func TestConfigValidation(t *testing.T) {
	valid, err := getDefaultConfig()
	require.NoError(t, err)
	assert.Empty(t, valid.Validate())

	invalid, err := getDefaultConfig()
	require.NoError(t, err)
	invalid.LLM.Provider = "bedrock"
	invalid.LLM.Temperature = 3.0
	invalid.LLM.MaxAttempts = 0
	invalid.Embedder.VectorDim = -1
	invalid.Chunker.ChunkOverlap = invalid.Chunker.ChunkSize

	errors := invalid.Validate()
	fields := make([]string, 0, len(errors))
	for _, e := range errors {
		fields = append(fields, e.Field)
	}
	assert.Contains(t, fields, "llm.provider")
	assert.Contains(t, fields, "llm.temperature")
	assert.Contains(t, fields, "llm.max_attempts")
	assert.Contains(t, fields, "embedder.vector_dim")
	assert.Contains(t, fields, "chunker.chunk_overlap")
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env-db:5432/test")
	t.Setenv("GROQ_API_KEY", "gsk_test")
	t.Setenv("MAX_WORKERS", "8")

	config := &Config{}
	mergeWithEnv(config)

	assert.Equal(t, "postgres://env-db:5432/test", config.Database.URL)
	assert.Equal(t, "gsk_test", config.LLM.APIKey)
	assert.Equal(t, 8, config.Pipeline.MaxWorkers)
}
