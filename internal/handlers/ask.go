package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"incident-assist/internal/assist"
	"incident-assist/internal/checklist"
	"incident-assist/internal/contextutil"
	"incident-assist/internal/llm"
	"incident-assist/internal/vectorstore"
)

// AskHandler handles HTTP requests for checklist queries.
type AskHandler struct {
	engine assist.Engine
	export bool
}

// NewAskHandler creates a handler returning JSON checklist responses.
func NewAskHandler(engine assist.Engine) *AskHandler {
	return &AskHandler{engine: engine}
}

// NewExportHandler creates a handler returning the checklist as markdown.
func NewExportHandler(engine assist.Engine) *AskHandler {
	return &AskHandler{engine: engine, export: true}
}

// ErrorResponse represents an error response.
//
// swagger:model ErrorResponse
type ErrorResponse struct {
	Error string `json:"error"`
}

// ServeHTTP handles HTTP requests for checklist queries.
//
// swagger:route POST /api/v1/ask askChecklist
//
// # Generate an incident checklist
//
// Retrieves relevant playbook, runbook and log chunks for the query and
// synthesizes a prioritized checklist with source references.
//
// ---
// consumes:
// - application/json
// produces:
// - application/json
// responses:
//
//	'200':
//	  description: Checklist generated
//	'400':
//	  description: Bad request (empty query or invalid mode)
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
//	'502':
//	  description: Embedding or generation service unavailable
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
//	'503':
//	  description: Vector store unavailable
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
func (h *AskHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req assist.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if strings.TrimSpace(req.Query) == "" {
		logger.WarnContext(ctx, "empty query in request")
		writeError(w, http.StatusBadRequest, "Query is required")
		return
	}

	switch checklist.Mode(req.Mode) {
	case "", checklist.ModeRuleBased, checklist.ModeGenerative:
	default:
		logger.WarnContext(ctx, "invalid mode", "mode", req.Mode)
		writeError(w, http.StatusBadRequest, "Mode must be rule_based or generative")
		return
	}

	resp, err := h.engine.Ask(ctx, req)
	if err != nil {
		handleEngineError(w, ctx, err, "Failed to generate checklist")
		return
	}

	if h.export {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		if _, err := w.Write([]byte(checklist.ExportMarkdown(resp.Checklist))); err != nil {
			logger.ErrorContext(ctx, "failed to write markdown response", "error", err)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// handleEngineError maps engine errors to HTTP status codes.
func handleEngineError(w http.ResponseWriter, ctx context.Context, err error, defaultMsg string) {
	logger := contextutil.LoggerFromContext(ctx)
	logger.ErrorContext(ctx, "assist engine error", "error", err)

	switch {
	case errors.Is(err, vectorstore.ErrCollectionNotFound),
		errors.Is(err, vectorstore.ErrDimensionMismatch):
		writeError(w, http.StatusServiceUnavailable, "Vector store unavailable")
	case errors.Is(err, llm.ErrEmbeddingUnavailable):
		writeError(w, http.StatusBadGateway, "Embedding service unavailable")
	default:
		writeError(w, http.StatusInternalServerError, defaultMsg)
	}
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}
