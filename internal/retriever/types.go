package retriever

// Status reports the outcome of a retrieval. An empty collection is an
// expected condition surfaced as status, not an error.
type Status string

const (
	StatusOK    Status = "ok"
	StatusEmpty Status = "empty"
)

// RetrievedChunk is one ranked hit from a similarity search.
type RetrievedChunk struct {
	ChunkID    string         `json:"chunk_id"`
	DocumentID string         `json:"document_id"`
	Section    string         `json:"section,omitempty"`
	LineStart  int            `json:"line_start,omitempty"`
	LineEnd    int            `json:"line_end,omitempty"`
	Text       string         `json:"text"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Score      float32        `json:"score"`
}

// RetrievalResult is the ordered outcome of a single query. It is ephemeral
// and owned by the caller; nothing here is persisted.
type RetrievalResult struct {
	Status Status           `json:"status"`
	Chunks []RetrievedChunk `json:"chunks"`
}
