package store

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/xhad/sitedocs/internal/models"
	"github.com/xhad/sitedocs/internal/types"
)

type VectorStoreConfig struct {
	ConnString string
	Collection string // table backing the collection
	VectorDim  int
}

// VectorStore keeps document chunks and their embeddings in a
// pgvector-backed table and answers nearest-neighbor searches over them.
// Embeddings are computed through the injected Embedder unless a chunk
// already carries one.
type VectorStore struct {
	config   VectorStoreConfig
	pool     *pgxpool.Pool
	embedder types.Embedder
}

func NewVectorStore(ctx context.Context, config VectorStoreConfig, embedder types.Embedder) (*VectorStore, error) {
	if config.Collection == "" {
		config.Collection = "document_chunks"
	}
	if config.VectorDim == 0 {
		config.VectorDim = embedder.Dimensions()
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	return &VectorStore{
		config:   config,
		pool:     pool,
		embedder: embedder,
	}, nil
}

// EnsureCollection idempotently creates the extension, chunk table and
// similarity index.
func (vs *VectorStore) EnsureCollection(ctx context.Context) error {
	_, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return &PersistenceError{Table: vs.config.Collection, Err: fmt.Errorf("failed to create vector extension: %v", err)}
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			chunk_id TEXT PRIMARY KEY,
			document_name TEXT NOT NULL,
			chunk_text TEXT NOT NULL,
			chunk_index INTEGER NOT NULL CHECK (chunk_index >= 0),
			embedding vector(%d),
			metadata JSONB
		)`, vs.config.Collection, vs.config.VectorDim)

	if _, err = vs.pool.Exec(ctx, createTable); err != nil {
		return &PersistenceError{Table: vs.config.Collection, Err: fmt.Errorf("failed to create table: %v", err)}
	}

	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_embedding_idx
		ON %s
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = 100)`,
		vs.config.Collection, vs.config.Collection)

	if _, err = vs.pool.Exec(ctx, createIndex); err != nil {
		return &PersistenceError{Table: vs.config.Collection, Err: fmt.Errorf("failed to create index: %v", err)}
	}

	return nil
}

// UpsertChunks embeds and stores the chunks. Chunks of a document supersede
// that document's previous chunks: stale rows from an earlier, longer
// version are deleted in the same transaction. Returns the number of chunks
// written.
func (vs *VectorStore) UpsertChunks(ctx context.Context, chunks []models.DocumentChunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	// Embed whatever doesn't carry a precomputed vector.
	var missing []int
	var texts []string
	for i, chunk := range chunks {
		if chunk.Embedding == nil {
			missing = append(missing, i)
			texts = append(texts, sanitizeUTF8(chunk.ChunkText))
		}
	}
	if len(texts) > 0 {
		embeddings, err := vs.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return 0, &PersistenceError{Table: vs.config.Collection, Err: fmt.Errorf("failed to create embeddings: %v", err)}
		}
		for j, i := range missing {
			chunks[i].Embedding = embeddings[j]
		}
	}

	tx, err := vs.pool.Begin(ctx)
	if err != nil {
		return 0, &PersistenceError{Table: vs.config.Collection, Err: err}
	}
	defer tx.Rollback(ctx)

	deleteStmt := fmt.Sprintf("DELETE FROM %s WHERE document_name = $1", vs.config.Collection)
	seen := make(map[string]bool)
	for _, chunk := range chunks {
		if seen[chunk.DocumentName] {
			continue
		}
		seen[chunk.DocumentName] = true
		if _, err := tx.Exec(ctx, deleteStmt, chunk.DocumentName); err != nil {
			return 0, &PersistenceError{Table: vs.config.Collection, Err: err}
		}
	}

	insertStmt := fmt.Sprintf(`
		INSERT INTO %s (chunk_id, document_name, chunk_text, chunk_index, embedding, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (chunk_id) DO UPDATE SET
			chunk_text = EXCLUDED.chunk_text,
			embedding = EXCLUDED.embedding,
			metadata = EXCLUDED.metadata`,
		vs.config.Collection)

	for _, chunk := range chunks {
		_, err = tx.Exec(ctx, insertStmt,
			chunk.ChunkID,
			chunk.DocumentName,
			sanitizeUTF8(chunk.ChunkText),
			chunk.ChunkIndex,
			pgvector.NewVector(chunk.Embedding),
			chunk.Metadata,
		)
		if err != nil {
			return 0, &PersistenceError{Table: vs.config.Collection, Err: err}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, &PersistenceError{Table: vs.config.Collection, Err: err}
	}

	return len(chunks), nil
}

// Search embeds the query with the ingestion embedder and returns the k
// nearest chunks by cosine distance, closest first. An empty collection
// yields an empty result, not an error.
func (vs *VectorStore) Search(ctx context.Context, query string, k int) ([]models.SearchResult, error) {
	if k <= 0 {
		k = 5
	}

	embeddings, err := vs.embedder.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	stmt := fmt.Sprintf(`
		SELECT chunk_id, document_name, chunk_text, chunk_index, metadata, embedding <=> $1 AS distance
		FROM %s
		ORDER BY distance
		LIMIT $2`,
		vs.config.Collection)

	rows, err := vs.pool.Query(ctx, stmt, pgvector.NewVector(embeddings[0]), k)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %v", err)
	}
	defer rows.Close()

	var results []models.SearchResult
	for rows.Next() {
		var r models.SearchResult
		err := rows.Scan(
			&r.Chunk.ChunkID,
			&r.Chunk.DocumentName,
			&r.Chunk.ChunkText,
			&r.Chunk.ChunkIndex,
			&r.Chunk.Metadata,
			&r.Distance,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %v", err)
		}
		results = append(results, r)
	}

	return results, rows.Err()
}

// Stats reports the collection name, stored chunk count and storage host.
func (vs *VectorStore) Stats(ctx context.Context) (models.CollectionStats, error) {
	var count int
	stmt := fmt.Sprintf("SELECT count(*) FROM %s", vs.config.Collection)
	if err := vs.pool.QueryRow(ctx, stmt).Scan(&count); err != nil {
		return models.CollectionStats{}, fmt.Errorf("failed to count chunks: %v", err)
	}

	return models.CollectionStats{
		CollectionName: vs.config.Collection,
		TotalChunks:    count,
		Location:       fmt.Sprintf("postgresql://%s", vs.pool.Config().ConnConfig.Host),
	}, nil
}

// Clear removes every chunk from the collection and reports how many were
// deleted.
func (vs *VectorStore) Clear(ctx context.Context) (int64, error) {
	tag, err := vs.pool.Exec(ctx, "DELETE FROM "+vs.config.Collection)
	if err != nil {
		return 0, &PersistenceError{Table: vs.config.Collection, Err: err}
	}
	return tag.RowsAffected(), nil
}

func (vs *VectorStore) Close() {
	if vs.pool != nil {
		vs.pool.Close()
	}
}

func sanitizeUTF8(s string) string {
	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for i, r := range s {
			if r == utf8.RuneError {
				_, size := utf8.DecodeRuneInString(s[i:])
				if size == 1 {
					continue
				}
			}
			v = append(v, r)
		}
		return string(v)
	}
	return s
}
