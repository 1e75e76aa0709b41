package retriever

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"incident-assist/internal/vectorstore"
)

type stubEmbedder struct {
	vec []float32
	err error
}

func (s *stubEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = s.vec
	}
	return out, nil
}

func seedStore(t *testing.T, store *vectorstore.MemoryStore, collection string, points []vectorstore.Point) {
	t.Helper()
	require.NoError(t, store.Upsert(context.Background(), collection, points))
}

func TestRetriever_Retrieve(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	seedStore(t, store, "docs", []vectorstore.Point{
		{ID: "c1", Vec: []float32{1, 0}, Text: "restart the database", Meta: map[string]any{
			"document_id": "runbooks/db.md", "section": "## Remediation",
		}},
		{ID: "c2", Vec: []float32{0.9, 0.1}, Text: "check replication lag", Meta: map[string]any{
			"document_id": "runbooks/db.md", "section": "## Diagnosis",
		}},
		{ID: "c3", Vec: []float32{0, 1}, Text: "rotate api keys", Meta: map[string]any{
			"document_id": "runbooks/api.md", "section": "## Remediation",
		}},
	})

	r := New(&stubEmbedder{vec: []float32{1, 0}}, store, "docs")
	result, err := r.Retrieve(context.Background(), "database is down", 2, nil)
	require.NoError(t, err)

	assert.Equal(t, StatusOK, result.Status)
	require.Len(t, result.Chunks, 2)
	assert.Equal(t, "c1", result.Chunks[0].ChunkID)
	assert.Equal(t, "runbooks/db.md", result.Chunks[0].DocumentID)
	assert.Equal(t, "## Remediation", result.Chunks[0].Section)
	assert.GreaterOrEqual(t, result.Chunks[0].Score, result.Chunks[1].Score)
}

func TestRetriever_EmptyQuery(t *testing.T) {
	r := New(&stubEmbedder{vec: []float32{1}}, vectorstore.NewMemoryStore(), "docs")

	_, err := r.Retrieve(context.Background(), "", 5, nil)
	assert.Error(t, err)
}

func TestRetriever_EmptyCollection(t *testing.T) {
	store := vectorstore.NewMemoryStore()

	t.Run("missing collection", func(t *testing.T) {
		r := New(&stubEmbedder{vec: []float32{1, 0}}, store, "docs")
		result, err := r.Retrieve(context.Background(), "anything", 5, nil)
		require.NoError(t, err)
		assert.Equal(t, StatusEmpty, result.Status)
		assert.Empty(t, result.Chunks)
		assert.NotNil(t, result.Chunks)
	})

	t.Run("drained collection", func(t *testing.T) {
		seedStore(t, store, "docs", []vectorstore.Point{{ID: "a", Vec: []float32{1, 0}}})
		require.NoError(t, store.Delete(context.Background(), "docs", []string{"a"}))

		r := New(&stubEmbedder{vec: []float32{1, 0}}, store, "docs")
		result, err := r.Retrieve(context.Background(), "anything", 5, nil)
		require.NoError(t, err)
		assert.Equal(t, StatusEmpty, result.Status)
		assert.Empty(t, result.Chunks)
	})
}

func TestRetriever_EmbedFailureIsFatal(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	seedStore(t, store, "docs", []vectorstore.Point{{ID: "a", Vec: []float32{1, 0}}})

	wantErr := errors.New("provider down")
	r := New(&stubEmbedder{err: wantErr}, store, "docs")

	_, err := r.Retrieve(context.Background(), "anything", 5, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, wantErr)
}

func TestRetriever_TopKClamping(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	var points []vectorstore.Point
	for i := 0; i < 30; i++ {
		points = append(points, vectorstore.Point{
			ID:  string(rune('a' + i)),
			Vec: []float32{1, float32(i) / 100},
			Meta: map[string]any{
				"document_id": string(rune('a' + i)),
			},
		})
	}
	seedStore(t, store, "docs", points)

	r := New(&stubEmbedder{vec: []float32{1, 0}}, store, "docs")
	ctx := context.Background()

	t.Run("zero means default", func(t *testing.T) {
		result, err := r.Retrieve(ctx, "q", 0, nil)
		require.NoError(t, err)
		assert.Len(t, result.Chunks, DefaultTopK)
	})

	t.Run("above max is capped", func(t *testing.T) {
		result, err := r.Retrieve(ctx, "q", 100, nil)
		require.NoError(t, err)
		assert.Len(t, result.Chunks, MaxTopK)
	})
}

func TestRetriever_FewerMatchesThanTopK(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	seedStore(t, store, "docs", []vectorstore.Point{
		{ID: "a", Vec: []float32{1, 0}, Meta: map[string]any{"document_id": "d1", "service": "db"}},
		{ID: "b", Vec: []float32{0, 1}, Meta: map[string]any{"document_id": "d2", "service": "api"}},
	})

	r := New(&stubEmbedder{vec: []float32{1, 0}}, store, "docs")
	result, err := r.Retrieve(context.Background(), "q", 5, map[string]any{"service": "db"})
	require.NoError(t, err)

	assert.Equal(t, StatusOK, result.Status)
	require.Len(t, result.Chunks, 1)
	assert.Equal(t, "a", result.Chunks[0].ChunkID)
}

func TestRetriever_DisjointFilterYieldsOK(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	seedStore(t, store, "docs", []vectorstore.Point{
		{ID: "a", Vec: []float32{1, 0}, Meta: map[string]any{"service": "db"}},
	})

	r := New(&stubEmbedder{vec: []float32{1, 0}}, store, "docs")
	result, err := r.Retrieve(context.Background(), "q", 5, map[string]any{"service": "cache"})
	require.NoError(t, err)

	// The collection has entries; the filter just matched nothing.
	assert.Equal(t, StatusOK, result.Status)
	assert.Empty(t, result.Chunks)
}

func TestRetriever_DeduplicatesOverlappingLogWindows(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	seedStore(t, store, "docs", []vectorstore.Point{
		{ID: "w1", Vec: []float32{1, 0}, Meta: map[string]any{
			"document_id": "logs/app.log", "line_start": 1, "line_end": 40,
		}},
		{ID: "w2", Vec: []float32{0.99, 0.01}, Meta: map[string]any{
			"document_id": "logs/app.log", "line_start": 33, "line_end": 72,
		}},
		{ID: "w3", Vec: []float32{0.9, 0.1}, Meta: map[string]any{
			"document_id": "logs/app.log", "line_start": 65, "line_end": 100,
		}},
	})

	r := New(&stubEmbedder{vec: []float32{1, 0}}, store, "docs")
	result, err := r.Retrieve(context.Background(), "q", 3, nil)
	require.NoError(t, err)

	// w2 overlaps w1 (lines 33-40) and is dropped; w3 overlaps w2 but w2 was
	// not kept, so w3 survives.
	require.Len(t, result.Chunks, 2)
	assert.Equal(t, "w1", result.Chunks[0].ChunkID)
	assert.Equal(t, "w3", result.Chunks[1].ChunkID)
}

func TestRetriever_DeduplicatesSameSection(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	seedStore(t, store, "docs", []vectorstore.Point{
		{ID: "s1", Vec: []float32{1, 0}, Meta: map[string]any{
			"document_id": "runbooks/db.md", "section": "## Remediation",
		}},
		{ID: "s2", Vec: []float32{0.95, 0.05}, Meta: map[string]any{
			"document_id": "runbooks/db.md", "section": "## Remediation",
		}},
		{ID: "s3", Vec: []float32{0.9, 0.1}, Meta: map[string]any{
			"document_id": "runbooks/api.md", "section": "## Remediation",
		}},
	})

	r := New(&stubEmbedder{vec: []float32{1, 0}}, store, "docs")
	result, err := r.Retrieve(context.Background(), "q", 3, nil)
	require.NoError(t, err)

	// Same section in the same document deduplicates; the same section name
	// in a different document does not.
	require.Len(t, result.Chunks, 2)
	assert.Equal(t, "s1", result.Chunks[0].ChunkID)
	assert.Equal(t, "s3", result.Chunks[1].ChunkID)
}

func TestRetriever_Deterministic(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	seedStore(t, store, "docs", []vectorstore.Point{
		{ID: "a", Vec: []float32{1, 0}, Meta: map[string]any{"document_id": "d1"}},
		{ID: "b", Vec: []float32{1, 0}, Meta: map[string]any{"document_id": "d2"}},
		{ID: "c", Vec: []float32{1, 0}, Meta: map[string]any{"document_id": "d3"}},
	})

	r := New(&stubEmbedder{vec: []float32{1, 0}}, store, "docs")
	ctx := context.Background()

	first, err := r.Retrieve(ctx, "q", 3, nil)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := r.Retrieve(ctx, "q", 3, nil)
		require.NoError(t, err)
		require.Len(t, again.Chunks, len(first.Chunks))
		for j := range first.Chunks {
			assert.Equal(t, first.Chunks[j].ChunkID, again.Chunks[j].ChunkID)
		}
	}
}
