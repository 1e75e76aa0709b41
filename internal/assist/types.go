package assist

import "incident-assist/internal/checklist"

// AskRequest is a checklist query against the indexed corpus.
type AskRequest struct {
	Query    string         `json:"query"`
	Filters  map[string]any `json:"filters,omitempty"`
	TopK     int            `json:"top_k,omitempty"`
	Mode     string         `json:"mode,omitempty"`
	Severity string         `json:"severity,omitempty"`
	MaxItems int            `json:"max_items,omitempty"`
}

// AskResponse carries the synthesized checklist plus retrieval diagnostics.
type AskResponse struct {
	Checklist       checklist.Checklist `json:"checklist"`
	RetrievalStatus string              `json:"retrieval_status"`
	ChunksRetrieved int                 `json:"chunks_retrieved"`
}
