package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"incident-assist/internal/assist"
	"incident-assist/internal/document"
	"incident-assist/internal/handlers"
	"incident-assist/internal/indexer"
	"incident-assist/internal/vectorstore"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	Engine      assist.Engine
	Pipeline    *indexer.Pipeline
	Loader      *document.Loader
	VectorStore vectorstore.VectorStore
	Collection  string
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(CORS)
	r.Use(LoggerMiddleware)
	r.Use(RequestLogger)

	askHandler := handlers.NewAskHandler(deps.Engine)
	exportHandler := handlers.NewExportHandler(deps.Engine)
	ingestHandler := handlers.NewIngestHandler(deps.Pipeline)
	reindexHandler := handlers.NewReindexHandler(deps.Loader, deps.Pipeline)
	collectionsHandler := handlers.NewCollectionsHandler(deps.VectorStore)
	healthHandler := handlers.NewHealthHandler(deps.VectorStore, deps.Collection)

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodGet, "/health", healthHandler)

		r.Route("/v1", func(r chi.Router) {
			r.Method(http.MethodPost, "/ask", askHandler)
			r.Method(http.MethodPost, "/ask/export", exportHandler)
			r.Method(http.MethodPost, "/ingest", ingestHandler)
			r.Method(http.MethodPost, "/reindex", reindexHandler)
			r.Get("/collections", collectionsHandler.List)
			r.Delete("/collections/{name}", collectionsHandler.Delete)
		})
	})

	return r
}
