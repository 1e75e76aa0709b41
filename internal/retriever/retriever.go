package retriever

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"incident-assist/internal/contextutil"
	"incident-assist/internal/vectorstore"
)

const (
	// DefaultTopK is the result count when the caller does not specify one.
	DefaultTopK = 5
	// MaxTopK caps caller-provided result counts.
	MaxTopK = 20

	// overfetchFactor controls how many extra candidates the search pulls so
	// proximity deduplication does not under-fill the final result.
	overfetchFactor = 2
)

// Embedder converts a batch of texts into vectors, order-preserving.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Retriever embeds a query and performs filtered similarity search with
// proximity deduplication against one collection.
type Retriever struct {
	embedder   Embedder
	store      vectorstore.VectorStore
	collection string
	logger     *slog.Logger
}

// New creates a retriever over the given collection.
func New(embedder Embedder, store vectorstore.VectorStore, collection string) *Retriever {
	return &Retriever{
		embedder:   embedder,
		store:      store,
		collection: collection,
		logger:     slog.Default(),
	}
}

// Retrieve embeds queryText, searches the collection with the given filters,
// deduplicates near-identical hits from the same document, and returns the
// top topK chunks in descending score order. An empty or missing collection
// yields an empty result with StatusEmpty rather than an error; a failure to
// embed the query is fatal to the query and is returned to the caller.
func (r *Retriever) Retrieve(ctx context.Context, queryText string, topK int, filters map[string]any) (RetrievalResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if queryText == "" {
		return RetrievalResult{}, fmt.Errorf("query text must not be empty")
	}
	topK = clampTopK(topK)

	count, err := r.store.Count(ctx, r.collection)
	if err != nil {
		if errors.Is(err, vectorstore.ErrCollectionNotFound) {
			// Never-written collection: same caller contract as zero entries.
			return RetrievalResult{Status: StatusEmpty, Chunks: []RetrievedChunk{}}, nil
		}
		return RetrievalResult{}, fmt.Errorf("failed to count collection entries: %w", err)
	}
	if count == 0 {
		logger.InfoContext(ctx, "collection is empty", "collection", r.collection)
		return RetrievalResult{Status: StatusEmpty, Chunks: []RetrievedChunk{}}, nil
	}

	embeddings, err := r.embedder.EmbedTexts(ctx, []string{queryText})
	if err != nil {
		return RetrievalResult{}, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(embeddings) == 0 {
		return RetrievalResult{}, fmt.Errorf("no embedding returned for query")
	}

	hits, err := r.store.Search(ctx, r.collection, embeddings[0], topK*overfetchFactor, filters)
	if err != nil {
		return RetrievalResult{}, fmt.Errorf("failed to search collection: %w", err)
	}

	chunks := dedupeByProximity(toChunks(hits))
	if len(chunks) > topK {
		chunks = chunks[:topK]
	}

	logger.InfoContext(ctx, "retrieval completed",
		"collection", r.collection, "top_k", topK, "hits", len(hits), "results", len(chunks))

	return RetrievalResult{Status: StatusOK, Chunks: chunks}, nil
}

// clampTopK applies the default and upper bound for result counts.
func clampTopK(k int) int {
	if k <= 0 {
		return DefaultTopK
	}
	if k > MaxTopK {
		return MaxTopK
	}
	return k
}

// toChunks converts raw search hits into retrieved chunks, lifting the
// well-known metadata fields.
func toChunks(hits []vectorstore.SearchResult) []RetrievedChunk {
	chunks := make([]RetrievedChunk, 0, len(hits))
	for _, hit := range hits {
		chunk := RetrievedChunk{
			ChunkID:  hit.PointID,
			Text:     hit.Text,
			Metadata: hit.Meta,
			Score:    hit.Score,
		}
		chunk.DocumentID, _ = hit.Meta["document_id"].(string)
		chunk.Section, _ = hit.Meta["section"].(string)
		chunk.LineStart = metaInt(hit.Meta, "line_start")
		chunk.LineEnd = metaInt(hit.Meta, "line_end")
		chunks = append(chunks, chunk)
	}
	return chunks
}

// dedupeByProximity drops chunks that overlap an already-kept chunk from the
// same document: an overlapping line range, or the same non-empty section.
// Input is ordered by descending score, so the kept representative is always
// the highest-scoring one.
func dedupeByProximity(chunks []RetrievedChunk) []RetrievedChunk {
	kept := make([]RetrievedChunk, 0, len(chunks))
	for _, candidate := range chunks {
		duplicate := false
		for _, existing := range kept {
			if existing.DocumentID != candidate.DocumentID || candidate.DocumentID == "" {
				continue
			}
			if linesOverlap(existing, candidate) {
				duplicate = true
				break
			}
			if candidate.Section != "" && candidate.Section == existing.Section {
				duplicate = true
				break
			}
		}
		if !duplicate {
			kept = append(kept, candidate)
		}
	}
	return kept
}

// linesOverlap reports whether two chunks cover intersecting line ranges.
// Chunks without line info (playbooks, runbooks) never overlap by lines.
func linesOverlap(a, b RetrievedChunk) bool {
	if a.LineEnd == 0 || b.LineEnd == 0 {
		return false
	}
	return a.LineStart <= b.LineEnd && b.LineStart <= a.LineEnd
}

// metaInt reads an integer metadata value regardless of how the store
// round-tripped it (int, int64, or float64 from JSON).
func metaInt(meta map[string]any, key string) int {
	switch v := meta[key].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
