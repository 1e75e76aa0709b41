package indexer

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"

	"incident-assist/internal/contextutil"
	"incident-assist/internal/document"
	"incident-assist/internal/llm"
	"incident-assist/internal/storage"
	"incident-assist/internal/vectorstore"
)

// embedBatchSize bounds how many chunk texts go to the embedding provider in
// one request.
const embedBatchSize = 100

// Embedder converts a batch of texts into vectors, order-preserving.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Pipeline orchestrates chunking, embedding and vector upsert for document
// ingestion, persisting document and chunk records to SQLite alongside the
// vector index.
type Pipeline struct {
	chunker     *Chunker
	embedder    Embedder
	vectorStore vectorstore.VectorStore
	docRepo     storage.DocumentStore
	chunkRepo   storage.ChunkStore
	collection  string
	logger      *slog.Logger
}

// NewPipeline creates a new indexing pipeline targeting the given collection.
func NewPipeline(
	embedder Embedder,
	vectorStore vectorstore.VectorStore,
	docRepo storage.DocumentStore,
	chunkRepo storage.ChunkStore,
	collection string,
) *Pipeline {
	return &Pipeline{
		chunker:     NewChunker(),
		embedder:    embedder,
		vectorStore: vectorStore,
		docRepo:     docRepo,
		chunkRepo:   chunkRepo,
		collection:  collection,
		logger:      slog.Default(),
	}
}

// batch groups chunks destined for one embedding request with per-document
// chunk counts, so a batch failure can be attributed per document and
// completion can be tracked across batches.
type batch struct {
	chunks    []Chunk
	docCounts map[string]int
}

// pendingDoc tracks a document whose chunks are in flight. Its record and
// chunk rows are only written once every chunk has been upserted; until then
// the stored hash stays stale and the document remains retryable.
type pendingDoc struct {
	record      *storage.DocumentRecord
	chunks      []Chunk
	oldChunkIDs []string
	remaining   int
}

// IndexDocuments ingests the given documents into the collection and returns
// a report of what happened. Invalid documents are skipped and reported, an
// embedding failure fails only the documents in that batch, and cancellation
// abandons unstarted batches while keeping completed work in the report.
func (p *Pipeline) IndexDocuments(ctx context.Context, docs []document.Document) (*IndexingReport, error) {
	logger := contextutil.LoggerFromContext(ctx)
	report := &IndexingReport{}

	var allChunks []Chunk
	pendings := make(map[string]*pendingDoc)
	for _, doc := range docs {
		report.DocsProcessed++

		pending, err := p.prepareDocument(ctx, doc)
		if err != nil {
			report.Failed = append(report.Failed, failedDocument(doc.ID, err))
			logger.WarnContext(ctx, "skipping document", "document_id", doc.ID, "error", err)
			continue
		}
		if pending == nil {
			logger.DebugContext(ctx, "skipping unchanged document", "document_id", doc.ID)
			continue
		}

		chunks, err := p.chunker.Chunk(doc)
		if err != nil {
			report.Failed = append(report.Failed, failedDocument(doc.ID, err))
			logger.WarnContext(ctx, "failed to chunk document", "document_id", doc.ID, "error", err)
			continue
		}
		pending.chunks = chunks
		pending.remaining = len(chunks)

		if len(chunks) == 0 {
			logger.WarnContext(ctx, "no chunks generated", "document_id", doc.ID)
			// Content shrank to nothing; it still supersedes the prior version.
			if err := p.finalizeDocument(ctx, pending); err != nil {
				report.Failed = append(report.Failed, failedDocument(doc.ID, err))
			}
			continue
		}

		report.ChunksCreated += len(chunks)
		allChunks = append(allChunks, chunks...)
		pendings[doc.ID] = pending
	}

	report.TokenStats = computeTokenStats(allChunks)

	for _, b := range makeBatches(allChunks, embedBatchSize) {
		// Cancellation abandons unstarted batches; in-flight work completes.
		select {
		case <-ctx.Done():
			logger.InfoContext(ctx, "indexing cancelled", "chunks_upserted", report.ChunksUpserted)
			return report, ctx.Err()
		default:
		}

		if err := p.indexBatch(ctx, b, report); err != nil {
			for docID := range b.docCounts {
				if _, ok := pendings[docID]; !ok {
					continue
				}
				delete(pendings, docID)
				report.Failed = append(report.Failed, failedDocument(docID, err))
			}
			logger.ErrorContext(ctx, "batch failed", "chunks", len(b.chunks), "error", err)
			continue
		}

		for docID, n := range b.docCounts {
			pending, ok := pendings[docID]
			if !ok {
				continue
			}
			pending.remaining -= n
			if pending.remaining > 0 {
				continue
			}
			delete(pendings, docID)
			if err := p.finalizeDocument(ctx, pending); err != nil {
				report.Failed = append(report.Failed, failedDocument(docID, err))
				logger.ErrorContext(ctx, "failed to finalize document", "document_id", docID, "error", err)
			}
		}
	}

	logger.InfoContext(ctx, "indexing completed",
		"docs_processed", report.DocsProcessed,
		"chunks_created", report.ChunksCreated,
		"chunks_upserted", report.ChunksUpserted,
		"failed_docs", len(report.Failed),
	)
	return report, nil
}

// IndexDocument ingests a single document; used by the corpus watcher.
func (p *Pipeline) IndexDocument(ctx context.Context, doc document.Document) (*IndexingReport, error) {
	return p.IndexDocuments(ctx, []document.Document{doc})
}

// contentHash fingerprints document content for change detection.
func contentHash(content string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(content)))
}

// prepareDocument validates the document and decides whether it needs
// re-indexing. Returns nil when the content hash matches the stored record.
// Nothing is persisted here; until finalizeDocument runs the stored record
// keeps the old hash, so a document whose embedding fails is retried on the
// next run instead of being skipped as current.
func (p *Pipeline) prepareDocument(ctx context.Context, doc document.Document) (*pendingDoc, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}

	hash := contentHash(doc.RawContent)

	existing, err := p.docRepo.GetByID(ctx, doc.ID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("failed to check existing document: %w", err)
	}
	if existing != nil && existing.Hash == hash {
		return nil, nil
	}

	pending := &pendingDoc{
		record: &storage.DocumentRecord{
			ID:         doc.ID,
			Name:       doc.Name,
			SourceType: string(doc.SourceType),
			Hash:       hash,
		},
	}
	if existing != nil {
		oldIDs, err := p.chunkRepo.ListIDsByDocument(ctx, doc.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list old chunk IDs: %w", err)
		}
		pending.oldChunkIDs = oldIDs
	}
	return pending, nil
}

// finalizeDocument commits a document once all its vectors are indexed: stale
// points from the prior version are removed, chunk rows are rewritten and the
// record lands last with the new hash. The prior version stays live and
// retryable until this point.
func (p *Pipeline) finalizeDocument(ctx context.Context, pending *pendingDoc) error {
	docID := pending.record.ID

	// Chunk IDs are deterministic, so shared offsets were already replaced by
	// upsert; only points the new version no longer covers need deleting.
	newIDs := make(map[string]struct{}, len(pending.chunks))
	for _, chunk := range pending.chunks {
		newIDs[chunk.ID] = struct{}{}
	}
	var stale []string
	for _, id := range pending.oldChunkIDs {
		if _, ok := newIDs[id]; !ok {
			stale = append(stale, id)
		}
	}
	if len(stale) > 0 {
		if err := p.vectorStore.Delete(ctx, p.collection, stale); err != nil {
			p.logger.WarnContext(ctx, "failed to delete superseded chunks from vector store",
				"document_id", docID, "count", len(stale), "error", err)
		}
	}

	if len(pending.oldChunkIDs) > 0 {
		if err := p.chunkRepo.DeleteByDocument(ctx, docID); err != nil {
			return fmt.Errorf("failed to delete old chunks: %w", err)
		}
	}
	for _, chunk := range pending.chunks {
		record := &storage.ChunkRecord{
			ID:         chunk.ID,
			DocumentID: chunk.DocumentID,
			ChunkIndex: chunk.Index,
			Section:    chunk.Section,
			LineStart:  chunk.LineStart,
			LineEnd:    chunk.LineEnd,
			Text:       chunk.Text,
		}
		if err := p.chunkRepo.Insert(ctx, record); err != nil {
			return fmt.Errorf("failed to insert chunk: %w", err)
		}
	}

	if err := p.docRepo.Upsert(ctx, pending.record); err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}
	return nil
}

// indexBatch embeds one batch of chunks and upserts the results. Embedding is
// all-or-nothing per batch: on failure no index mutation happens for it.
func (p *Pipeline) indexBatch(ctx context.Context, b batch, report *IndexingReport) error {
	texts := make([]string, len(b.chunks))
	for i, chunk := range b.chunks {
		texts[i] = chunk.Text
	}

	embeddings, err := p.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return err
	}
	if len(embeddings) != len(b.chunks) {
		return fmt.Errorf("embedding count mismatch: expected %d, got %d", len(b.chunks), len(embeddings))
	}
	report.ChunksEmbedded += len(b.chunks)

	points := make([]vectorstore.Point, len(b.chunks))
	for i, chunk := range b.chunks {
		points[i] = vectorstore.Point{
			ID:   chunk.ID,
			Vec:  embeddings[i],
			Text: chunk.Text,
			Meta: chunk.Metadata,
		}
	}

	if err := p.vectorStore.Upsert(ctx, p.collection, points); err != nil {
		return fmt.Errorf("failed to upsert vectors: %w", err)
	}

	report.ChunksUpserted += len(b.chunks)
	return nil
}

// makeBatches groups chunks into embedding batches of at most size chunks.
func makeBatches(chunks []Chunk, size int) []batch {
	var batches []batch
	for start := 0; start < len(chunks); start += size {
		end := start + size
		if end > len(chunks) {
			end = len(chunks)
		}
		b := batch{chunks: chunks[start:end], docCounts: make(map[string]int)}
		for _, chunk := range b.chunks {
			b.docCounts[chunk.DocumentID]++
		}
		batches = append(batches, b)
	}
	return batches
}

// failedDocument classifies an error into a report entry.
func failedDocument(docID string, err error) FailedDocument {
	kind := "internal"
	switch {
	case errors.Is(err, document.ErrInvalidDocument):
		kind = "invalid_document"
	case errors.Is(err, llm.ErrEmbeddingUnavailable):
		kind = "embedding_unavailable"
	case errors.Is(err, vectorstore.ErrDimensionMismatch):
		kind = "dimension_mismatch"
	case errors.Is(err, vectorstore.ErrCollectionNotFound):
		kind = "collection_not_found"
	}
	return FailedDocument{DocumentID: docID, Kind: kind, Error: err.Error()}
}
