package handlers

import (
	"encoding/json"
	"net/http"

	"incident-assist/internal/contextutil"
	"incident-assist/internal/document"
	"incident-assist/internal/indexer"
)

// ReindexHandler handles HTTP requests to reindex the corpus directory.
type ReindexHandler struct {
	loader   *document.Loader
	pipeline *indexer.Pipeline
}

// NewReindexHandler creates a new ReindexHandler.
func NewReindexHandler(loader *document.Loader, pipeline *indexer.Pipeline) *ReindexHandler {
	return &ReindexHandler{loader: loader, pipeline: pipeline}
}

// ServeHTTP handles HTTP requests to reindex the corpus directory.
//
// swagger:route POST /api/v1/reindex reindexCorpus
//
// # Reindex the corpus directory
//
// Rescans the configured corpus directory and indexes every loadable
// document. Unchanged documents are skipped by content hash.
//
// ---
// produces:
// - application/json
// responses:
//
//	'200':
//	  description: Indexing report
//	'500':
//	  description: Corpus scan failed
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
func (h *ReindexHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	docs, err := h.loader.ScanAll(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "corpus scan failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Corpus scan failed")
		return
	}

	report, err := h.pipeline.IndexDocuments(ctx, docs)
	if err != nil {
		logger.ErrorContext(ctx, "reindex aborted", "error", err)
		writeError(w, http.StatusInternalServerError, "Reindex aborted")
		return
	}

	logger.InfoContext(ctx, "reindex completed",
		"docs_processed", report.DocsProcessed,
		"chunks_upserted", report.ChunksUpserted,
		"failed", len(report.Failed),
	)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(report); err != nil {
		logger.ErrorContext(ctx, "failed to encode report", "error", err)
	}
}
