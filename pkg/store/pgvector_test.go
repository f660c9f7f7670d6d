package store_test

import (
	"context"
	"fmt"
	"hash/fnv"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/sitedocs/internal/models"
	"github.com/xhad/sitedocs/pkg/store"
)

// hashEmbedder produces deterministic vectors without an embedding server.
// Identical texts embed identically, so nearest-neighbor assertions hold.
type hashEmbedder struct {
	dim int
}

func (h hashEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, h.dim)
		hash := fnv.New32a()
		hash.Write([]byte(text))
		seed := hash.Sum32()
		for j := range vec {
			seed = seed*1664525 + 1013904223
			vec[j] = float32(seed%1000)/1000.0 - 0.5
		}
		out[i] = vec
	}
	return out, nil
}

func (h hashEmbedder) Dimensions() int { return h.dim }

func testVectorStore(t *testing.T) *store.VectorStore {
	t.Helper()
	connString := os.Getenv("DATABASE_URL")
	if connString == "" {
		t.Skip("DATABASE_URL not set; skipping vector store integration test")
	}

	vs, err := store.NewVectorStore(context.Background(), store.VectorStoreConfig{
		ConnString: connString,
		Collection: "test_document_chunks",
		VectorDim:  8,
	}, hashEmbedder{dim: 8})
	require.NoError(t, err)
	t.Cleanup(vs.Close)

	require.NoError(t, vs.EnsureCollection(context.Background()))
	_, err = vs.Clear(context.Background())
	require.NoError(t, err)
	return vs
}

func testChunks(document string, n int) []models.DocumentChunk {
	chunks := make([]models.DocumentChunk, n)
	for i := range chunks {
		chunks[i] = models.DocumentChunk{
			ChunkID:      fmt.Sprintf("%s_chunk_%d", document, i),
			DocumentName: document + ".pdf",
			ChunkText:    fmt.Sprintf("chunk %d of %s", i, document),
			ChunkIndex:   i,
			Metadata:     map[string]interface{}{"start_char": i * 100},
		}
	}
	return chunks
}

func TestVectorStoreUpsertAndSearch(t *testing.T) {
	vs := testVectorStore(t)
	ctx := context.Background()

	count, err := vs.UpsertChunks(ctx, testChunks("schedule", 3))
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	results, err := vs.Search(ctx, "chunk 1 of schedule", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "schedule_chunk_1", results[0].Chunk.ChunkID)
	assert.InDelta(t, 0.0, results[0].Distance, 1e-5)
}

func TestVectorStoreReprocessSupersedes(t *testing.T) {
	vs := testVectorStore(t)
	ctx := context.Background()

	_, err := vs.UpsertChunks(ctx, testChunks("costs", 5))
	require.NoError(t, err)

	// Re-ingesting the same document with fewer chunks replaces the old set
	count, err := vs.UpsertChunks(ctx, testChunks("costs", 2))
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	stats, err := vs.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalChunks)
	assert.Equal(t, "test_document_chunks", stats.CollectionName)
}

func TestVectorStoreEmptyUpsert(t *testing.T) {
	vs := testVectorStore(t)

	count, err := vs.UpsertChunks(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestVectorStoreClear(t *testing.T) {
	vs := testVectorStore(t)
	ctx := context.Background()

	_, err := vs.UpsertChunks(ctx, testChunks("rules", 4))
	require.NoError(t, err)

	deleted, err := vs.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), deleted)

	stats, err := vs.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalChunks)
}
