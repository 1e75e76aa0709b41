package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"incident-assist/internal/vectorstore"
)

// failingStore errors on every call, standing in for an unreachable backend.
type failingStore struct {
	vectorstore.VectorStore
}

func (f *failingStore) ListCollections(ctx context.Context) ([]string, error) {
	return nil, errors.New("connection refused")
}

func TestHealthHandler_Healthy(t *testing.T) {
	handler := NewHealthHandler(vectorstore.NewMemoryStore(), "incident_chunks")

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("status = %q, want healthy", resp.Status)
	}
	if resp.Checks["vector_store"] != "ok" {
		t.Errorf("vector_store check = %q, want ok", resp.Checks["vector_store"])
	}
}

func TestHealthHandler_Unhealthy(t *testing.T) {
	handler := NewHealthHandler(&failingStore{}, "incident_chunks")

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}

	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "unhealthy" {
		t.Errorf("status = %q, want unhealthy", resp.Status)
	}
	if len(resp.Issues) == 0 {
		t.Error("expected issues to be reported")
	}
}

func TestHealthHandler_MethodNotAllowed(t *testing.T) {
	handler := NewHealthHandler(vectorstore.NewMemoryStore(), "incident_chunks")

	req := httptest.NewRequest(http.MethodPost, "/api/health", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", w.Code)
	}
}
