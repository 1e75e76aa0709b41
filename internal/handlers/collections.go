package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"incident-assist/internal/contextutil"
	"incident-assist/internal/vectorstore"
)

// CollectionsHandler handles HTTP requests for collection management.
type CollectionsHandler struct {
	store vectorstore.VectorStore
}

// NewCollectionsHandler creates a new CollectionsHandler.
func NewCollectionsHandler(store vectorstore.VectorStore) *CollectionsHandler {
	return &CollectionsHandler{store: store}
}

// CollectionInfo describes one collection in the listing response.
//
// swagger:model CollectionInfo
type CollectionInfo struct {
	Name   string `json:"name"`
	Points int    `json:"points"`
}

// List handles GET /api/v1/collections.
func (h *CollectionsHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	names, err := h.store.ListCollections(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "failed to list collections", "error", err)
		writeError(w, http.StatusServiceUnavailable, "Vector store unavailable")
		return
	}

	infos := make([]CollectionInfo, 0, len(names))
	for _, name := range names {
		count, err := h.store.Count(ctx, name)
		if err != nil {
			logger.WarnContext(ctx, "failed to count collection", "collection", name, "error", err)
			count = 0
		}
		infos = append(infos, CollectionInfo{Name: name, Points: count})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"collections": infos}); err != nil {
		logger.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// Delete handles DELETE /api/v1/collections/{name}.
func (h *CollectionsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	name := chi.URLParam(r, "name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "Collection name is required")
		return
	}

	if err := h.store.DeleteCollection(ctx, name); err != nil {
		if errors.Is(err, vectorstore.ErrCollectionNotFound) {
			writeError(w, http.StatusNotFound, "Collection not found")
			return
		}
		logger.ErrorContext(ctx, "failed to delete collection", "collection", name, "error", err)
		writeError(w, http.StatusServiceUnavailable, "Vector store unavailable")
		return
	}

	logger.InfoContext(ctx, "collection deleted", "collection", name)
	w.WriteHeader(http.StatusNoContent)
}
