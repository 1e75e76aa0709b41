package vectorstore

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_vector_store.go -package=mocks incident-assist/internal/vectorstore VectorStore

import (
	"context"
	"errors"
)

var (
	// ErrCollectionNotFound is returned when querying a collection that does
	// not exist. Upserts auto-create collections instead.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrDimensionMismatch is returned when an upserted vector's length
	// disagrees with the collection's established dimension. The offending
	// batch leaves the collection unchanged.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// Point represents an index entry: a chunk vector with its text and metadata.
type Point struct {
	ID   string
	Vec  []float32
	Text string
	Meta map[string]any
}

// SearchResult represents a single similarity search hit.
type SearchResult struct {
	PointID string
	Score   float32
	Text    string
	Meta    map[string]any
}

// VectorStore defines the interface for vector index operations.
// Filters are equality constraints over scalar metadata values
// (string, number, boolean); a result must match all of them.
type VectorStore interface {
	// Upsert inserts or replaces points by ID. The batch is atomic: either
	// all points become visible to subsequent searches, or none do.
	// The collection is auto-created on first upsert; its first vector
	// establishes the dimension.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Search returns at most k entries matching all filters, ranked by
	// descending cosine similarity. Equal scores are ordered by insertion
	// order, so identical queries against an unchanged collection return
	// identical orderings.
	Search(ctx context.Context, collection string, query []float32, k int, filters map[string]any) ([]SearchResult, error)

	// Delete removes points by their IDs.
	Delete(ctx context.Context, collection string, ids []string) error

	// DeleteCollection removes a collection and all its points.
	DeleteCollection(ctx context.Context, collection string) error

	// ListCollections returns the names of all collections.
	ListCollections(ctx context.Context) ([]string, error)

	// Count returns the number of points in a collection.
	Count(ctx context.Context, collection string) (int, error)
}
