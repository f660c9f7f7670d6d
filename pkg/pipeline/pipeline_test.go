package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/sitedocs/internal/models"
	"github.com/xhad/sitedocs/pkg/pipeline"
)

type fakeParser struct {
	text string
	err  error
}

func (f *fakeParser) Parse(ctx context.Context, path string) (*models.ParsedDocument, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.ParsedDocument{FullText: f.text}, nil
}

type fakeExtractor struct {
	records models.RecordSet
	errs    []string
}

func (f *fakeExtractor) Extract(ctx context.Context, text, docType string) (models.RecordSet, []string) {
	return f.records, f.errs
}

type fakeRelational struct {
	mu        sync.Mutex
	tasks     []models.ProjectTask
	items     []models.CostItem
	rules     []models.RegulatoryRule
	upsertErr error
}

func (f *fakeRelational) CreateSchema(ctx context.Context) error { return nil }

func (f *fakeRelational) UpsertTasks(ctx context.Context, tasks []models.ProjectTask) (int, error) {
	if f.upsertErr != nil {
		return 0, f.upsertErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, tasks...)
	return len(tasks), nil
}

func (f *fakeRelational) InsertCostItems(ctx context.Context, items []models.CostItem) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, items...)
	return len(items), nil
}

func (f *fakeRelational) UpsertRules(ctx context.Context, rules []models.RegulatoryRule) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, rules...)
	return len(rules), nil
}

func (f *fakeRelational) QueryTasks(ctx context.Context, limit int) ([]models.ProjectTask, error) {
	return f.tasks, nil
}

func (f *fakeRelational) QueryCostItems(ctx context.Context, limit int) ([]models.CostItem, error) {
	return f.items, nil
}

type fakeVector struct {
	mu     sync.Mutex
	chunks []models.DocumentChunk
	err    error
}

func (f *fakeVector) EnsureCollection(ctx context.Context) error { return nil }

func (f *fakeVector) UpsertChunks(ctx context.Context, chunks []models.DocumentChunk) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chunks = append(f.chunks, chunks...)
	return len(chunks), nil
}

func (f *fakeVector) Search(ctx context.Context, query string, k int) ([]models.SearchResult, error) {
	return nil, nil
}

func (f *fakeVector) Stats(ctx context.Context) (models.CollectionStats, error) {
	return models.CollectionStats{}, nil
}

type fakeChunker struct{}

func (fakeChunker) Chunk(documentName, text string) []models.DocumentChunk {
	if text == "" {
		return nil
	}
	return []models.DocumentChunk{{
		ChunkID:      documentName + "_chunk_0",
		DocumentName: documentName,
		ChunkText:    text,
	}}
}

func sampleTask() models.ProjectTask {
	return models.ProjectTask{TaskID: 1, TaskName: "Excavation", DurationDays: 14}
}

func newPipeline(t *testing.T, parser *fakeParser, extractor *fakeExtractor, rel *fakeRelational, vec *fakeVector, config pipeline.Config) *pipeline.Pipeline {
	t.Helper()
	p, err := pipeline.New(parser, extractor, rel, vec, fakeChunker{}, config)
	require.NoError(t, err)
	return p
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := pipeline.New(nil, &fakeExtractor{}, &fakeRelational{}, &fakeVector{}, fakeChunker{}, pipeline.Config{})
	assert.Error(t, err)
}

func TestProcessDocument(t *testing.T) {
	rel := &fakeRelational{}
	vec := &fakeVector{}
	p := newPipeline(t,
		&fakeParser{text: "Task 1: Excavation, 14 days"},
		&fakeExtractor{records: models.RecordSet{Tasks: []models.ProjectTask{sampleTask()}}},
		rel, vec, pipeline.Config{})

	result := p.ProcessDocument(context.Background(), "/docs/schedule.pdf", "schedule")

	assert.True(t, result.Success)
	assert.Equal(t, models.StateDone, result.State)
	assert.Equal(t, "schedule", result.DocumentType)
	assert.Equal(t, 1, result.PostgresRecords)
	assert.Equal(t, 1, result.VectorChunks)
	assert.Empty(t, result.Errors)
	assert.Len(t, rel.tasks, 1)
	require.Len(t, vec.chunks, 1)
	assert.Equal(t, "schedule.pdf", vec.chunks[0].DocumentName)
}

func TestProcessDocumentParseFailureIsFatal(t *testing.T) {
	vec := &fakeVector{}
	p := newPipeline(t,
		&fakeParser{err: errors.New("corrupt file")},
		&fakeExtractor{},
		&fakeRelational{}, vec, pipeline.Config{})

	result := p.ProcessDocument(context.Background(), "/docs/broken.pdf", "schedule")

	assert.False(t, result.Success)
	assert.Equal(t, models.StateFailed, result.State)
	require.Len(t, result.Errors, 1)
	assert.Empty(t, vec.chunks)
}

func TestProcessDocumentExtractionFailureStillChunks(t *testing.T) {
	vec := &fakeVector{}
	p := newPipeline(t,
		&fakeParser{text: "unreadable tables"},
		&fakeExtractor{errs: []string{"extraction failed: service unavailable"}},
		&fakeRelational{}, vec, pipeline.Config{})

	result := p.ProcessDocument(context.Background(), "/docs/schedule.pdf", "schedule")

	assert.True(t, result.Success)
	assert.Equal(t, 0, result.PostgresRecords)
	assert.Equal(t, 1, result.VectorChunks)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "extraction failed")
}

func TestProcessDocumentPersistenceFailureRecorded(t *testing.T) {
	rel := &fakeRelational{upsertErr: errors.New("connection refused")}
	vec := &fakeVector{}
	p := newPipeline(t,
		&fakeParser{text: "Task 1"},
		&fakeExtractor{records: models.RecordSet{Tasks: []models.ProjectTask{sampleTask()}}},
		rel, vec, pipeline.Config{})

	result := p.ProcessDocument(context.Background(), "/docs/schedule.pdf", "schedule")

	// Relational failure does not block the vector write.
	assert.True(t, result.Success)
	assert.Equal(t, 0, result.PostgresRecords)
	assert.Equal(t, 1, result.VectorChunks)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "connection refused")
}

func TestProcessDocumentEmptyText(t *testing.T) {
	p := newPipeline(t,
		&fakeParser{text: ""},
		&fakeExtractor{},
		&fakeRelational{}, &fakeVector{}, pipeline.Config{})

	result := p.ProcessDocument(context.Background(), "/docs/empty.txt", "general")

	assert.True(t, result.Success)
	assert.Equal(t, 0, result.VectorChunks)
	assert.Empty(t, result.Errors)
}

func TestProcessAll(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.pdf", "b.txt", "c.html", "notes.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("content"), 0644))
	}

	var mu sync.Mutex
	var seen []string
	p := newPipeline(t,
		&fakeParser{text: "content"},
		&fakeExtractor{},
		&fakeRelational{}, &fakeVector{},
		pipeline.Config{MaxWorkers: 2})
	p.SetOnResult(func(r models.ProcessingResult) {
		mu.Lock()
		seen = append(seen, filepath.Base(r.PDFPath))
		mu.Unlock()
	})

	batch, err := p.ProcessAll(context.Background(), dir, nil)
	require.NoError(t, err)

	// notes.md is not a supported document type
	assert.Equal(t, 3, batch.Total)
	assert.Equal(t, 3, batch.Successful)
	assert.Len(t, seen, 3)
	assert.NotContains(t, seen, "notes.md")
}

func TestProcessAllTypeOverrides(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "doc.pdf"), []byte("x"), 0644))

	p := newPipeline(t,
		&fakeParser{text: "x"},
		&fakeExtractor{},
		&fakeRelational{}, &fakeVector{},
		pipeline.Config{DocumentTypes: map[string]string{"doc.pdf": "cost"}})

	batch, err := p.ProcessAll(context.Background(), dir, nil)
	require.NoError(t, err)
	require.Len(t, batch.Results, 1)
	assert.Equal(t, "cost", batch.Results[0].DocumentType)

	batch, err = p.ProcessAll(context.Background(), dir, map[string]string{"doc.pdf": "regulation"})
	require.NoError(t, err)
	assert.Equal(t, "regulation", batch.Results[0].DocumentType)
}

func TestProcessAllIsolatesFailures(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 3; i++ {
		name := fmt.Sprintf("doc%d.pdf", i)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}

	p := newPipeline(t,
		&fakeParser{err: errors.New("corrupt file")},
		&fakeExtractor{},
		&fakeRelational{}, &fakeVector{},
		pipeline.Config{MaxWorkers: 1})

	batch, err := p.ProcessAll(context.Background(), dir, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, batch.Total)
	assert.Equal(t, 0, batch.Successful)
	for _, r := range batch.Results {
		assert.False(t, r.Success)
		assert.NotEmpty(t, r.Errors)
	}
}

func TestProcessAllCancelled(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 4; i++ {
		name := fmt.Sprintf("doc%d.pdf", i)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := newPipeline(t,
		&fakeParser{text: "x"},
		&fakeExtractor{},
		&fakeRelational{}, &fakeVector{},
		pipeline.Config{MaxWorkers: 1})

	batch, err := p.ProcessAll(ctx, dir, nil)
	require.NoError(t, err)

	assert.Equal(t, 4, batch.Total)
	assert.Equal(t, 0, batch.Successful)
	for _, r := range batch.Results {
		assert.Equal(t, models.StatePending, r.State)
		require.Len(t, r.Errors, 1)
		assert.Contains(t, r.Errors[0], "not started")
	}
}

func TestProcessAllMissingDirectory(t *testing.T) {
	p := newPipeline(t,
		&fakeParser{text: "x"},
		&fakeExtractor{},
		&fakeRelational{}, &fakeVector{},
		pipeline.Config{})

	_, err := p.ProcessAll(context.Background(), "/no/such/dir", nil)
	assert.Error(t, err)
}
