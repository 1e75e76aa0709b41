package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"incident-assist/internal/assist"
	"incident-assist/internal/checklist"
	"incident-assist/internal/llm"
	"incident-assist/internal/vectorstore"
)

// stubEngine returns a canned response or error.
type stubEngine struct {
	resp assist.AskResponse
	err  error
	got  assist.AskRequest
}

func (s *stubEngine) Ask(ctx context.Context, req assist.AskRequest) (assist.AskResponse, error) {
	s.got = req
	return s.resp, s.err
}

func checklistResponse() assist.AskResponse {
	return assist.AskResponse{
		Checklist: checklist.Checklist{
			Query: "db down",
			Mode:  checklist.ModeRuleBased,
			Items: []checklist.ChecklistItem{
				{Text: "Restart the primary", Priority: 1, References: []string{"c1"}},
			},
			Sources: map[string]checklist.SourceRef{
				"c1": {ChunkID: "c1", DocumentName: "db.yaml"},
			},
		},
		RetrievalStatus: "ok",
		ChunksRetrieved: 1,
	}
}

func TestAskHandler(t *testing.T) {
	engine := &stubEngine{resp: checklistResponse()}
	handler := NewAskHandler(engine)

	body := `{"query": "db down", "top_k": 3, "mode": "rule_based"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ask", strings.NewReader(body))
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp assist.AskResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Checklist.Items) != 1 {
		t.Errorf("items = %d, want 1", len(resp.Checklist.Items))
	}
	if engine.got.TopK != 3 {
		t.Errorf("engine received TopK = %d, want 3", engine.got.TopK)
	}
}

func TestAskHandler_Validation(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		body     string
		wantCode int
	}{
		{
			name:     "empty query",
			method:   http.MethodPost,
			body:     `{"query": "  "}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "invalid body",
			method:   http.MethodPost,
			body:     `{not json`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "invalid mode",
			method:   http.MethodPost,
			body:     `{"query": "q", "mode": "telepathic"}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "wrong method",
			method:   http.MethodGet,
			body:     "",
			wantCode: http.StatusMethodNotAllowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewAskHandler(&stubEngine{resp: checklistResponse()})
			req := httptest.NewRequest(tt.method, "/api/v1/ask", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
			}
		})
	}
}

func TestAskHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{
			name:     "vector store unavailable",
			err:      fmt.Errorf("retrieval failed: %w", vectorstore.ErrCollectionNotFound),
			wantCode: http.StatusServiceUnavailable,
		},
		{
			name:     "embedding unavailable",
			err:      fmt.Errorf("retrieval failed: %w", llm.ErrEmbeddingUnavailable),
			wantCode: http.StatusBadGateway,
		},
		{
			name:     "internal error",
			err:      fmt.Errorf("something broke"),
			wantCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewAskHandler(&stubEngine{err: tt.err})
			req := httptest.NewRequest(http.MethodPost, "/api/v1/ask", strings.NewReader(`{"query": "q"}`))
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
			}

			var errResp ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&errResp); err != nil {
				t.Fatalf("failed to decode error response: %v", err)
			}
			if errResp.Error == "" {
				t.Error("error response has empty message")
			}
		})
	}
}

func TestExportHandler(t *testing.T) {
	handler := NewExportHandler(&stubEngine{resp: checklistResponse()})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ask/export", strings.NewReader(`{"query": "db down"}`))
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/markdown") {
		t.Errorf("Content-Type = %q, want text/markdown", ct)
	}
	if !strings.Contains(w.Body.String(), "- [ ] Restart the primary") {
		t.Errorf("markdown body missing checklist item: %s", w.Body.String())
	}
}
