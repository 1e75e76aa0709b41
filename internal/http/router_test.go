package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"incident-assist/internal/vectorstore"
)

func newRouterDeps() *Deps {
	return &Deps{
		VectorStore: vectorstore.NewMemoryStore(),
		Collection:  "incident_chunks",
	}
}

func TestNewRouter(t *testing.T) {
	router := NewRouter(newRouterDeps())
	if router == nil {
		t.Fatal("NewRouter() returned nil")
	}
}

func TestRouter_Routes(t *testing.T) {
	router := NewRouter(newRouterDeps())

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{
			name:       "GET /api/health",
			method:     http.MethodGet,
			path:       "/api/health",
			wantStatus: http.StatusOK,
		},
		{
			name:       "POST /api/v1/ask exists",
			method:     http.MethodPost,
			path:       "/api/v1/ask",
			wantStatus: http.StatusBadRequest, // Bad request due to empty body, but route exists
		},
		{
			name:       "GET /api/v1/ask method not allowed",
			method:     http.MethodGet,
			path:       "/api/v1/ask",
			wantStatus: http.StatusMethodNotAllowed,
		},
		{
			name:       "GET /api/v1/collections",
			method:     http.MethodGet,
			path:       "/api/v1/collections",
			wantStatus: http.StatusOK,
		},
		{
			name:       "DELETE missing collection",
			method:     http.MethodDelete,
			path:       "/api/v1/collections/ghost",
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "unknown route",
			method:     http.MethodGet,
			path:       "/api/v1/nothing",
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("Router %s %s status = %v, want %v", tt.method, tt.path, w.Code, tt.wantStatus)
			}
		})
	}
}

func TestRouter_MiddlewareApplied(t *testing.T) {
	router := NewRouter(newRouterDeps())

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("Router should apply CORS middleware")
	}
}
