package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// DocumentRecord represents an ingested source document in the database.
type DocumentRecord struct {
	ID         string // Stable document identifier (corpus-relative path or caller-supplied)
	Name       string // Display name (filename)
	SourceType string // playbook, runbook, or log
	Hash       string // SHA256 hex string of raw content
	UpdatedAt  time.Time
}

// ChunkRecord represents a chunk of document text, indexed for vector search.
type ChunkRecord struct {
	ID         string // Deterministic UUID (same as the vector point ID)
	DocumentID string // Foreign key to documents.id
	ChunkIndex int    // Index within document (starts at 0)
	Section    string // Section title or heading path, empty for log windows
	LineStart  int    // First source line covered (1-based, logs only)
	LineEnd    int    // Last source line covered (inclusive, logs only)
	Text       string // Chunk text content
}
