package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
	"github.com/xhad/sitedocs/internal/models"
	"github.com/xhad/sitedocs/pkg/config"
	"github.com/xhad/sitedocs/pkg/llm"
	"github.com/xhad/sitedocs/pkg/parser"
	"github.com/xhad/sitedocs/pkg/pipeline"
	"github.com/xhad/sitedocs/pkg/processor"
	"github.com/xhad/sitedocs/pkg/store"
	"github.com/xhad/sitedocs/server"
)

type options struct {
	configPath string
	docsDir    string
	docPath    string
	docType    string
	query      string
	serve      bool
}

func main() {
	opts := parseFlags()

	if err := run(opts); err != nil {
		log.Fatal(err)
	}
}

func parseFlags() options {
	var opts options

	flag.StringVar(&opts.configPath, "config", "", "Path to config file")
	flag.StringVar(&opts.docsDir, "dir", "", "Directory of documents to process (batch mode)")
	flag.StringVar(&opts.docPath, "doc", "", "Single document to process")
	flag.StringVar(&opts.docType, "type", "general", "Document type for -doc (schedule, cost, regulation)")
	flag.StringVar(&opts.query, "search", "", "Run a semantic search and exit")
	flag.BoolVar(&opts.serve, "serve", false, "Run the HTTP API server")
	flag.Parse()

	return opts
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("docs"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func run(opts options) error {
	// .env first so config env merging sees it
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %v", err)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("config: %v", e)
		}
		return fmt.Errorf("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize components
	docParser, err := parser.NewWithConfig(parser.ParserConfig{
		BaseURL: cfg.Parser.BaseURL,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize parser: %v", err)
	}

	generator, err := llm.NewGenerator(llm.GeneratorConfig{
		Provider:      cfg.LLM.Provider,
		BaseURL:       cfg.LLM.BaseURL,
		APIKey:        cfg.LLM.APIKey,
		Model:         cfg.LLM.Model,
		FallbackURL:   cfg.LLM.FallbackURL,
		FallbackModel: cfg.LLM.FallbackModel,
		MaxTokens:     cfg.LLM.MaxTokens,
		Temperature:   cfg.LLM.Temperature,
		MaxAttempts:   cfg.LLM.MaxAttempts,
		RateLimit:     cfg.LLM.RateLimit,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize generator: %v", err)
	}

	extractor, err := llm.NewExtractor(generator)
	if err != nil {
		return fmt.Errorf("failed to initialize extractor: %v", err)
	}

	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		BaseURL:   cfg.Embedder.BaseURL,
		Model:     cfg.Embedder.Model,
		VectorDim: cfg.Embedder.VectorDim,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize embedder: %v", err)
	}

	relational, err := store.NewPostgresStore(ctx, store.PostgresConfig{
		ConnString: cfg.Database.URL,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize relational store: %v", err)
	}
	defer relational.Close()

	vectorStore, err := store.NewVectorStore(ctx, store.VectorStoreConfig{
		ConnString: cfg.Database.URL,
		Collection: cfg.Database.Collection,
		VectorDim:  cfg.Embedder.VectorDim,
	}, embedder)
	if err != nil {
		return fmt.Errorf("failed to initialize vector store: %v", err)
	}
	defer vectorStore.Close()

	if err := relational.CreateSchema(ctx); err != nil {
		return fmt.Errorf("failed to create schema: %v", err)
	}
	if err := vectorStore.EnsureCollection(ctx); err != nil {
		return fmt.Errorf("failed to ensure collection: %v", err)
	}

	chunker := processor.NewWithConfig(processor.ProcessorConfig{
		ChunkSize:    cfg.Chunker.ChunkSize,
		ChunkOverlap: cfg.Chunker.ChunkOverlap,
	})

	pipeConfig := pipeline.Config{
		PDFDirectory:  cfg.Pipeline.PDFDirectory,
		MaxWorkers:    cfg.Pipeline.MaxWorkers,
		DocumentTypes: cfg.Pipeline.DocumentTypes,
	}

	pipe, err := pipeline.New(docParser, extractor, relational, vectorStore, chunker, pipeConfig)
	if err != nil {
		return err
	}

	if opts.serve {
		srv := server.New(pipe, relational, vectorStore)
		pipe.SetOnResult(srv.BroadcastResult)
		return srv.Start(cfg.Server.Port)
	}

	switch {
	case opts.query != "":
		return runSearch(ctx, vectorStore, opts.query)
	case opts.docPath != "":
		return runSingle(ctx, pipe, opts.docPath, opts.docType)
	default:
		return runBatch(ctx, pipe, opts.docsDir, pipeConfig)
	}
}

func runSearch(ctx context.Context, vectorStore *store.VectorStore, query string) error {
	results, err := vectorStore.Search(ctx, query, 5)
	if err != nil {
		return fmt.Errorf("search failed: %v", err)
	}
	if len(results) == 0 {
		color.Yellow("No results")
		return nil
	}
	for _, r := range results {
		color.Cyan("%s (distance %.4f)", r.Chunk.ChunkID, r.Distance)
		fmt.Println(r.Chunk.ChunkText)
		fmt.Println()
	}
	return nil
}

func runSingle(ctx context.Context, pipe *pipeline.Pipeline, path, docType string) error {
	color.Blue("\nProcessing %s (%s)\n", path, docType)
	result := pipe.ProcessDocument(ctx, path, docType)
	printResult(result)
	if !result.Success {
		return fmt.Errorf("processing failed for %s", path)
	}
	return nil
}

func runBatch(ctx context.Context, pipe *pipeline.Pipeline, dir string, pipeConfig pipeline.Config) error {
	if dir == "" {
		dir = pipeConfig.PDFDirectory
	}
	color.Blue("\nStarting document pipeline for %s\n", dir)

	bar := getProgressBar(-1, "📄 Processing documents...")
	pipe.SetOnResult(func(r models.ProcessingResult) {
		bar.Add(1)
	})

	batch, err := pipe.ProcessAll(ctx, dir, nil)
	if err != nil {
		return err
	}
	bar.Finish()
	fmt.Println()

	for _, r := range batch.Results {
		printResult(r)
	}
	color.Green("\n✓ Processed %d/%d documents successfully\n", batch.Successful, batch.Total)
	return nil
}

func printResult(r models.ProcessingResult) {
	if r.Success {
		color.Green("✓ %s: %d records, %d chunks", r.PDFPath, r.PostgresRecords, r.VectorChunks)
	} else {
		color.Red("✗ %s: %s", r.PDFPath, r.State)
	}
	for _, e := range r.Errors {
		color.Yellow("  ! %s", e)
	}
}
