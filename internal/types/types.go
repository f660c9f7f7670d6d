package types

import (
	"context"
	"time"

	"github.com/xhad/sitedocs/internal/models"
)

// Core interfaces

// Parser turns a document file into text and structural elements. Parsing is
// the only pipeline step whose failure is fatal for a document.
type Parser interface {
	Parse(ctx context.Context, path string) (*models.ParsedDocument, error)
}

// Generator is the text-generation collaborator used by the extraction step.
// Calls are blocking; implementations handle their own rate limiting and
// provider fallback.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Embedder produces fixed-dimension vectors for texts. The same embedder
// must be used at ingestion and query time.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// Extractor runs the extraction step: parsed text plus a document-type hint
// in, validated records and per-record extraction errors out. A malformed
// record never aborts the rest.
type Extractor interface {
	Extract(ctx context.Context, text, docType string) (models.RecordSet, []string)
}

// Chunker splits document text into ordered chunk stubs. The same input must
// always yield the same chunk sequence.
type Chunker interface {
	Chunk(documentName, text string) []models.DocumentChunk
}

// RelationalStore is the table-oriented persistence service.
type RelationalStore interface {
	CreateSchema(ctx context.Context) error
	UpsertTasks(ctx context.Context, tasks []models.ProjectTask) (int, error)
	InsertCostItems(ctx context.Context, items []models.CostItem) (int, error)
	UpsertRules(ctx context.Context, rules []models.RegulatoryRule) (int, error)
	QueryTasks(ctx context.Context, limit int) ([]models.ProjectTask, error)
	QueryCostItems(ctx context.Context, limit int) ([]models.CostItem, error)
}

// VectorStore is the similarity-search service.
type VectorStore interface {
	EnsureCollection(ctx context.Context) error
	UpsertChunks(ctx context.Context, chunks []models.DocumentChunk) (int, error)
	Search(ctx context.Context, query string, k int) ([]models.SearchResult, error)
	Stats(ctx context.Context) (models.CollectionStats, error)
}

// Config structs shared across packages.

type LLMConfig struct {
	Provider      string // "openai" (any OpenAI-compatible endpoint) or "ollama"
	BaseURL       string
	APIKey        string
	Model         string
	FallbackURL   string // ollama server used after the primary's retry budget
	FallbackModel string
	MaxTokens     int
	Temperature   float64
	MaxAttempts   int
	RateLimit     float64 // calls per second
	Timeout       time.Duration
}

type EmbedderConfig struct {
	BaseURL   string
	Model     string
	VectorDim int
}

type ChunkerConfig struct {
	ChunkSize    int
	ChunkOverlap int
}

type PipelineConfig struct {
	PDFDirectory  string
	MaxWorkers    int
	DocumentTypes map[string]string // filename -> document type
}
