package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryStore is an in-memory VectorStore using brute-force cosine similarity.
// It backs tests and single-process deployments without a Qdrant instance.
// Concurrent upserts to the same collection are serialized, so searches never
// observe a partially applied batch.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
}

type memCollection struct {
	dimension int
	points    map[string]memPoint
	order     []string // insertion order for deterministic tie-breaks
}

type memPoint struct {
	vec  []float32
	text string
	meta map[string]any
	seq  int
}

// NewMemoryStore creates an empty in-memory vector store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memCollection)}
}

// Upsert inserts or replaces points by ID, creating the collection on first
// use. The whole batch is validated before any point is applied, so a
// dimension mismatch leaves the collection unchanged.
func (s *MemoryStore) Upsert(ctx context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	coll, ok := s.collections[collection]
	if !ok {
		coll = &memCollection{
			dimension: len(points[0].Vec),
			points:    make(map[string]memPoint),
		}
	}

	for _, p := range points {
		if len(p.Vec) != coll.dimension {
			return fmt.Errorf("%w: got %d, collection %q expects %d",
				ErrDimensionMismatch, len(p.Vec), collection, coll.dimension)
		}
	}

	for _, p := range points {
		prior, exists := coll.points[p.ID]
		seq := len(coll.order)
		if exists {
			// Replacement keeps the original insertion position.
			seq = prior.seq
		} else {
			coll.order = append(coll.order, p.ID)
		}
		coll.points[p.ID] = memPoint{vec: p.Vec, text: p.Text, meta: p.Meta, seq: seq}
	}

	s.collections[collection] = coll
	return nil
}

// Search returns up to k filter-matching points ranked by descending cosine
// similarity, breaking score ties by insertion order.
func (s *MemoryStore) Search(ctx context.Context, collection string, query []float32, k int, filters map[string]any) ([]SearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be greater than 0")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	coll, ok := s.collections[collection]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}
	if len(query) != coll.dimension {
		return nil, fmt.Errorf("%w: query has %d, collection %q expects %d",
			ErrDimensionMismatch, len(query), collection, coll.dimension)
	}

	type scored struct {
		id    string
		score float32
		seq   int
	}

	candidates := make([]scored, 0, len(coll.order))
	for _, id := range coll.order {
		p := coll.points[id]
		if !matchesFilters(p.meta, filters) {
			continue
		}
		candidates = append(candidates, scored{id: id, score: cosineSimilarity(query, p.vec), seq: p.seq})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].seq < candidates[j].seq
	})

	if k > len(candidates) {
		k = len(candidates)
	}

	results := make([]SearchResult, 0, k)
	for _, c := range candidates[:k] {
		p := coll.points[c.id]
		meta := make(map[string]any, len(p.meta))
		for key, v := range p.meta {
			meta[key] = v
		}
		results = append(results, SearchResult{PointID: c.id, Score: c.score, Text: p.text, Meta: meta})
	}
	return results, nil
}

// Delete removes points by their IDs. Unknown IDs are ignored.
func (s *MemoryStore) Delete(ctx context.Context, collection string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll, ok := s.collections[collection]
	if !ok {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}

	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
		delete(coll.points, id)
	}

	kept := coll.order[:0]
	for _, id := range coll.order {
		if _, gone := drop[id]; !gone {
			kept = append(kept, id)
		}
	}
	coll.order = kept
	return nil
}

// DeleteCollection removes a collection and all its points.
func (s *MemoryStore) DeleteCollection(ctx context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[collection]; !ok {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}
	delete(s.collections, collection)
	return nil
}

// ListCollections returns collection names in lexical order.
func (s *MemoryStore) ListCollections(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Count returns the number of points in a collection.
func (s *MemoryStore) Count(ctx context.Context, collection string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	coll, ok := s.collections[collection]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}
	return len(coll.points), nil
}

// matchesFilters reports whether meta satisfies every equality constraint.
// Numeric values compare by value regardless of their concrete Go type.
func matchesFilters(meta map[string]any, filters map[string]any) bool {
	for key, want := range filters {
		got, ok := meta[key]
		if !ok {
			return false
		}
		if !scalarEqual(got, want) {
			return false
		}
	}
	return true
}

func scalarEqual(a, b any) bool {
	if af, aok := toFloat(a); aok {
		bf, bok := toFloat(b)
		return bok && af == bf
	}
	return a == b
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// cosineSimilarity computes the cosine similarity between two equal-length vectors.
func cosineSimilarity(a, b []float32) float32 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
