package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"incident-assist/internal/contextutil"
	"incident-assist/internal/document"
	"incident-assist/internal/indexer"
)

const maxUploadBytes = 32 << 20

// IngestHandler handles HTTP requests for document ingestion.
type IngestHandler struct {
	pipeline *indexer.Pipeline
}

// NewIngestHandler creates a new IngestHandler.
func NewIngestHandler(pipeline *indexer.Pipeline) *IngestHandler {
	return &IngestHandler{pipeline: pipeline}
}

// IngestDocument is one document in a JSON ingestion request.
//
// swagger:model IngestDocument
type IngestDocument struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	SourceType string         `json:"source_type,omitempty"`
	Content    string         `json:"content"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// IngestRequest is the JSON ingestion payload.
//
// swagger:model IngestRequest
type IngestRequest struct {
	Documents []IngestDocument `json:"documents"`
}

// ServeHTTP handles HTTP requests for document ingestion.
//
// Accepts either a JSON body with a documents array or a multipart form
// with one or more "files" parts. The source type is taken from the request
// when declared, otherwise inferred from filename and content.
//
// swagger:route POST /api/v1/ingest ingestDocuments
//
// # Ingest documents into the index
//
// Chunks, embeds and indexes the supplied documents and returns an
// indexing report with per-document failures.
//
// ---
// consumes:
// - application/json
// - multipart/form-data
// produces:
// - application/json
// responses:
//
//	'200':
//	  description: Indexing report
//	'400':
//	  description: Bad request (no documents or invalid payload)
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var docs []document.Document
	var err error
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		docs, err = h.parseMultipart(r)
	} else {
		docs, err = h.parseJSON(r)
	}
	if err != nil {
		logger.WarnContext(ctx, "invalid ingestion payload", "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(docs) == 0 {
		writeError(w, http.StatusBadRequest, "At least one document is required")
		return
	}

	report, err := h.pipeline.IndexDocuments(ctx, docs)
	if err != nil {
		logger.ErrorContext(ctx, "ingestion aborted", "error", err)
		writeError(w, http.StatusInternalServerError, "Ingestion aborted")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(report); err != nil {
		logger.ErrorContext(ctx, "failed to encode report", "error", err)
	}
}

func (h *IngestHandler) parseJSON(r *http.Request) ([]document.Document, error) {
	var req IngestRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUploadBytes)).Decode(&req); err != nil {
		return nil, errors.New("invalid request body")
	}
	docs := make([]document.Document, 0, len(req.Documents))
	for _, d := range req.Documents {
		id := d.ID
		if id == "" {
			id = d.Name
		}
		sourceType := document.SourceType(d.SourceType)
		if sourceType == "" {
			sourceType = document.InferSourceType(d.Name, d.Content)
		}
		docs = append(docs, document.Document{
			ID:         id,
			Name:       d.Name,
			SourceType: sourceType,
			RawContent: d.Content,
			Metadata:   d.Metadata,
		})
	}
	return docs, nil
}

func (h *IngestHandler) parseMultipart(r *http.Request) ([]document.Document, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, errors.New("invalid multipart form")
	}
	var docs []document.Document
	for _, header := range r.MultipartForm.File["files"] {
		f, err := header.Open()
		if err != nil {
			return nil, errors.New("failed to read uploaded file")
		}
		content, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
		f.Close()
		if err != nil {
			return nil, errors.New("failed to read uploaded file")
		}
		docs = append(docs, document.Document{
			ID:         header.Filename,
			Name:       header.Filename,
			SourceType: document.InferSourceType(header.Filename, string(content)),
			RawContent: string(content),
			Metadata:   map[string]any{"source_path": header.Filename},
		})
	}
	return docs, nil
}
