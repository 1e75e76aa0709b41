package checklist

import "errors"

// ErrUngroundedGeneration signals that generative synthesis produced content
// with no valid citations. It is internal to the synthesizer: the caller sees
// a rule-based fallback, never this error.
var ErrUngroundedGeneration = errors.New("generation produced no grounded items")

// Mode selects how checklist wording is produced.
type Mode string

const (
	// ModeRuleBased extracts items from retrieved chunks by templating.
	// Fully deterministic for identical input.
	ModeRuleBased Mode = "rule_based"
	// ModeGenerative delegates wording to a text-generation capability while
	// preserving citations. Best-effort; falls back to rule-based.
	ModeGenerative Mode = "generative"
)

// ChecklistItem is one actionable step. Every emitted item carries at least
// one reference into the retrieval result it was synthesized from.
type ChecklistItem struct {
	Text       string   `json:"text"`
	Details    string   `json:"details,omitempty"`
	Command    string   `json:"command,omitempty"`
	Verify     string   `json:"verify,omitempty"`
	Rollback   string   `json:"rollback,omitempty"`
	Priority   int      `json:"priority"`
	References []string `json:"references"`
}

// SourceRef describes where a cited chunk came from, for human-readable
// reference rendering.
type SourceRef struct {
	ChunkID      string `json:"chunk_id"`
	DocumentName string `json:"document_name"`
	Location     string `json:"location,omitempty"`
}

// Checklist is the synthesized, referenced output for one query.
// Produced per query; not persisted unless explicitly exported.
type Checklist struct {
	Query    string               `json:"query"`
	Severity string               `json:"severity,omitempty"`
	Mode     Mode                 `json:"mode"`
	FellBack bool                 `json:"fell_back,omitempty"`
	Items    []ChecklistItem      `json:"items"`
	Sources  map[string]SourceRef `json:"sources,omitempty"`
}
