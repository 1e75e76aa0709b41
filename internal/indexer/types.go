package indexer

// Chunk represents a retrieval-sized unit of a document with attached metadata.
// Chunks are transient: they exist during a single ingestion run and are
// discarded after their embeddings, text, and metadata are persisted.
type Chunk struct {
	ID         string // Deterministic UUID derived from document ID + index
	DocumentID string // Back-reference to the owning document
	Index      int    // Chunk index within the document (starts at 0)
	Section    string // Section title or heading path; empty for log windows
	LineStart  int    // First covered source line (1-based, log chunks only)
	LineEnd    int    // Last covered source line (inclusive, log chunks only)
	Text       string // Chunk text content
	Metadata   map[string]any
}

// FailedDocument records one document that could not be indexed.
type FailedDocument struct {
	DocumentID string `json:"document_id"`
	Kind       string `json:"kind"`
	Error      string `json:"error"`
}

// IndexingReport summarizes one ingestion run. Per-document and per-batch
// errors are collected here in aggregate, so one bad document never blocks
// ingestion of the rest.
type IndexingReport struct {
	DocsProcessed  int              `json:"docs_processed"`
	ChunksCreated  int              `json:"chunks_created"`
	ChunksEmbedded int              `json:"chunks_embedded"`
	ChunksUpserted int              `json:"chunks_upserted"`
	Failed         []FailedDocument `json:"failed,omitempty"`
	TokenStats     ChunkTokenStats  `json:"chunk_token_stats"`
}

// ChunkTokenStats contains statistics about estimated token counts per chunk.
type ChunkTokenStats struct {
	Min  int     `json:"min"`
	Max  int     `json:"max"`
	Mean float64 `json:"mean"`
	P95  int     `json:"p95"`
}
