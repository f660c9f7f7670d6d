package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/xhad/sitedocs/internal/models"
	"github.com/xhad/sitedocs/internal/types"
)

type Config struct {
	PDFDirectory  string
	MaxWorkers    int
	DocumentTypes map[string]string // filename -> document type hint
	OnResult      func(models.ProcessingResult)
}

// Pipeline runs one document through parse -> extract -> persist-relational
// -> chunk -> persist-vector. The step sequence is strictly sequential per
// document; a batch runs documents concurrently on a bounded worker pool.
//
// Failure policy: a parse failure is fatal for the document. Extraction
// failures degrade to zero records and the pipeline continues, since
// chunking does not depend on extraction. Persistence failures on either
// store are recorded without aborting the sibling store's write.
type Pipeline struct {
	parser     types.Parser
	extractor  types.Extractor
	relational types.RelationalStore
	vector     types.VectorStore
	chunker    types.Chunker
	config     Config
	logger     *slog.Logger
}

func New(
	parser types.Parser,
	extractor types.Extractor,
	relational types.RelationalStore,
	vector types.VectorStore,
	chunker types.Chunker,
	config Config,
) (*Pipeline, error) {
	if parser == nil || extractor == nil || relational == nil || vector == nil || chunker == nil {
		return nil, fmt.Errorf("pipeline requires parser, extractor, both stores and a chunker")
	}
	if config.MaxWorkers < 1 {
		config.MaxWorkers = 4
	}

	return &Pipeline{
		parser:     parser,
		extractor:  extractor,
		relational: relational,
		vector:     vector,
		chunker:    chunker,
		config:     config,
		logger:     slog.Default().With("component", "pipeline"),
	}, nil
}

// SetOnResult installs a callback invoked with each per-document result
// during a batch run. Call before ProcessAll; not safe to change mid-batch.
func (p *Pipeline) SetOnResult(fn func(models.ProcessingResult)) {
	p.config.OnResult = fn
}

// ProcessDocument runs the per-document state machine and returns its
// outcome. Only a parse failure yields Success == false.
func (p *Pipeline) ProcessDocument(ctx context.Context, path, docType string) models.ProcessingResult {
	result := models.ProcessingResult{
		PDFPath:      path,
		DocumentType: models.NormalizeDocType(docType),
		State:        models.StatePending,
	}

	parsed, err := p.parser.Parse(ctx, path)
	if err != nil {
		p.logger.Error("parse failed", "path", path, "error", err)
		result.State = models.StateFailed
		result.Errors = append(result.Errors, err.Error())
		return result
	}
	result.State = models.StateParsed

	records, extractErrs := p.extractor.Extract(ctx, parsed.FullText, docType)
	result.Errors = append(result.Errors, extractErrs...)
	result.State = models.StateExtracted

	if records.Len() > 0 {
		count, err := p.persistRecords(ctx, records)
		result.PostgresRecords = count
		if err != nil {
			p.logger.Error("relational persistence failed", "path", path, "error", err)
			result.Errors = append(result.Errors, err.Error())
		}
	}
	result.State = models.StatePersistedRelational

	chunks := p.chunker.Chunk(filepath.Base(path), parsed.FullText)
	result.State = models.StateChunked

	count, err := p.vector.UpsertChunks(ctx, chunks)
	result.VectorChunks = count
	if err != nil {
		p.logger.Error("vector persistence failed", "path", path, "error", err)
		result.Errors = append(result.Errors, err.Error())
	}
	result.State = models.StatePersistedVector

	result.State = models.StateDone
	result.Success = true
	p.logger.Info("document processed",
		"path", path,
		"docType", result.DocumentType,
		"postgresRecords", result.PostgresRecords,
		"vectorChunks", result.VectorChunks,
		"errors", len(result.Errors))
	return result
}

func (p *Pipeline) persistRecords(ctx context.Context, records models.RecordSet) (int, error) {
	switch {
	case len(records.Tasks) > 0:
		return p.relational.UpsertTasks(ctx, records.Tasks)
	case len(records.Items) > 0:
		return p.relational.InsertCostItems(ctx, records.Items)
	case len(records.Rules) > 0:
		return p.relational.UpsertRules(ctx, records.Rules)
	}
	return 0, nil
}

// ProcessAll processes every supported document under dir (the configured
// directory when dir is empty) on a worker pool bounded by MaxWorkers. One
// document's failure never aborts the batch. After cancellation, in-flight
// documents finish and remaining ones are marked as not started.
func (p *Pipeline) ProcessAll(ctx context.Context, dir string, typeOverrides map[string]string) (models.BatchResult, error) {
	if dir == "" {
		dir = p.config.PDFDirectory
	}

	files, err := listDocuments(dir)
	if err != nil {
		return models.BatchResult{}, err
	}
	p.logger.Info("batch start", "dir", dir, "documents", len(files), "workers", p.config.MaxWorkers)

	pool, err := ants.NewPool(p.config.MaxWorkers)
	if err != nil {
		return models.BatchResult{}, fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.Release()

	results := make([]models.ProcessingResult, len(files))
	var wg sync.WaitGroup
	for i, file := range files {
		i, file := i, file
		docType := p.docTypeFor(filepath.Base(file), typeOverrides)

		wg.Add(1)
		submit := func() {
			defer wg.Done()
			if ctx.Err() != nil {
				results[i] = notStarted(file, docType, ctx.Err())
				return
			}
			results[i] = p.ProcessDocument(ctx, file, docType)
			if p.config.OnResult != nil {
				p.config.OnResult(results[i])
			}
		}
		if err := pool.Submit(submit); err != nil {
			wg.Done()
			results[i] = notStarted(file, docType, err)
		}
	}
	wg.Wait()

	batch := models.BatchResult{Results: results, Total: len(results)}
	for _, r := range results {
		if r.Success {
			batch.Successful++
		}
	}
	p.logger.Info("batch complete", "total", batch.Total, "successful", batch.Successful)
	return batch, nil
}

func (p *Pipeline) docTypeFor(filename string, overrides map[string]string) string {
	if t, ok := overrides[filename]; ok {
		return t
	}
	if t, ok := p.config.DocumentTypes[filename]; ok {
		return t
	}
	return models.DocTypeGeneral
}

func notStarted(path, docType string, cause error) models.ProcessingResult {
	return models.ProcessingResult{
		PDFPath:      path,
		DocumentType: models.NormalizeDocType(docType),
		State:        models.StatePending,
		Errors:       []string{fmt.Sprintf("not started: %v", cause)},
	}
}

func listDocuments(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read document directory %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".pdf", ".html", ".htm", ".txt":
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}
