package main

import (
	"context"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"

	"incident-assist/internal/assist"
	"incident-assist/internal/checklist"
	"incident-assist/internal/config"
	"incident-assist/internal/document"
	"incident-assist/internal/http"
	"incident-assist/internal/indexer"
	"incident-assist/internal/llm"
	"incident-assist/internal/retriever"
	"incident-assist/internal/storage"
	"incident-assist/internal/vectorstore"
)

//go:generate swagger generate spec -o swagger.json

// General API information
//
// This API generates grounded incident-response checklists from indexed
// playbooks, runbooks and incident logs.
//
// swagger:meta
//
// ---
// swagger: '2.0'
// info:
//   title: Incident Assist API
//   description: |
//     Retrieval-backed incident checklist API. Documents are chunked, embedded
//     and indexed; queries retrieve the most relevant chunks and synthesize a
//     prioritized checklist with source references.
//   version: 1.0.0
// schemes:
//   - http
//   - https
// consumes:
//   - application/json
// produces:
//   - application/json

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Configure structured logging with configurable level and format
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)

	// Initialize database
	db, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := storage.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("Database initialized", "path", cfg.DBPath)

	docRepo := storage.NewDocumentRepo(db)
	chunkRepo := storage.NewChunkRepo(db)

	ctx := context.Background()

	// Initialize Qdrant vector store
	vectorStore, err := vectorstore.NewQdrantStore(cfg.QdrantURL)
	if err != nil {
		log.Fatalf("Failed to create Qdrant client: %v", err)
	}

	// Ensure collection exists with correct vector size
	if err := vectorStore.EnsureCollection(ctx, cfg.QdrantCollection, cfg.VectorSize); err != nil {
		log.Fatalf("Failed to ensure Qdrant collection: %v", err)
	}
	slog.Info("Qdrant collection ready", "collection", cfg.QdrantCollection, "vector_size", cfg.VectorSize)

	// Validate embedding client vector size (fail-fast)
	embedder := llm.NewEmbeddingsClient(cfg.EmbeddingBaseURL, cfg.EmbeddingAPIKey, cfg.EmbeddingModelName, cfg.VectorSize)
	testEmbeddings, err := embedder.EmbedTexts(ctx, []string{"test"})
	if err != nil {
		log.Fatalf("Failed to validate embedding client: %v", err)
	}
	if len(testEmbeddings) == 0 || len(testEmbeddings[0]) != cfg.VectorSize {
		log.Fatalf("Embedding vector size mismatch: expected %d, got %d", cfg.VectorSize, len(testEmbeddings[0]))
	}
	slog.Info("Embedding client validated", "vector_size", cfg.VectorSize)

	// Create indexing pipeline
	pipeline := indexer.NewPipeline(
		embedder,
		vectorStore,
		docRepo,
		chunkRepo,
		cfg.QdrantCollection,
	)

	// Create LLM client for generative checklist mode
	llmClient := llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModelName)

	// Create assist engine
	ret := retriever.New(embedder, vectorStore, cfg.QdrantCollection)
	synth := checklist.NewSynthesizer(llmClient)
	engine := assist.NewEngine(ret, synth)
	slog.Info("Assist engine initialized")

	loader := document.NewLoader(cfg.CorpusPath)

	// Create router with dependencies
	deps := &http.Deps{
		Engine:      engine,
		Pipeline:    pipeline,
		Loader:      loader,
		VectorStore: vectorStore,
		Collection:  cfg.QdrantCollection,
	}
	router := http.NewRouter(deps)

	// Start indexing in background after router is ready
	if cfg.CorpusPath != "" {
		startCorpusIndexing(cfg.CorpusPath, loader, pipeline)
	}

	// Start API server
	addr := ":" + cfg.APIPort
	slog.Info("Starting API server", "addr", addr)
	if err := nethttp.ListenAndServe(addr, router); err != nil {
		log.Fatalf("API server failed to start: %v", err)
	}
}

// startCorpusIndexing kicks off a full background index of the corpus
// directory and a watcher that reindexes documents as they change.
func startCorpusIndexing(corpusPath string, loader *document.Loader, pipeline *indexer.Pipeline) {
	go func() {
		indexCtx := context.Background()
		slog.Info("Starting background indexing of corpus", "path", corpusPath)
		docs, err := loader.ScanAll(indexCtx)
		if err != nil {
			slog.Error("Corpus scan failed", "error", err)
			return
		}
		report, err := pipeline.IndexDocuments(indexCtx, docs)
		if err != nil {
			slog.Error("Indexing completed with errors", "error", err)
			return
		}
		slog.Info("Indexing completed",
			"docs_processed", report.DocsProcessed,
			"chunks_upserted", report.ChunksUpserted,
			"failed", len(report.Failed),
		)
	}()

	// Watch the corpus directory and reindex changed documents
	watcher := document.NewWatcher(loader, func(ctx context.Context, doc document.Document) {
		if _, err := pipeline.IndexDocument(ctx, doc); err != nil {
			slog.Error("Failed to reindex changed document", "document", doc.ID, "error", err)
		}
	})
	go func() {
		if err := watcher.Run(context.Background()); err != nil {
			slog.Error("Corpus watcher stopped", "error", err)
		}
	}()
}
