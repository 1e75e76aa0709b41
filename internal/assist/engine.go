package assist

import (
	"context"
	"fmt"

	"incident-assist/internal/checklist"
	"incident-assist/internal/contextutil"
	"incident-assist/internal/retriever"
)

// Engine answers incident queries with grounded checklists.
type Engine interface {
	// Ask retrieves relevant guidance for the query and synthesizes a checklist from it.
	Ask(ctx context.Context, req AskRequest) (AskResponse, error)
}

type assistEngine struct {
	retriever   *retriever.Retriever
	synthesizer *checklist.Synthesizer
}

// NewEngine creates an assist engine over the given retriever and synthesizer.
func NewEngine(r *retriever.Retriever, s *checklist.Synthesizer) Engine {
	return &assistEngine{retriever: r, synthesizer: s}
}

// Ask retrieves relevant chunks and synthesizes a checklist.
func (e *assistEngine) Ask(ctx context.Context, req AskRequest) (AskResponse, error) {
	logger := contextutil.LoggerFromContext(ctx)

	logger.InfoContext(ctx, "checklist query started",
		"query", req.Query,
		"filters", req.Filters,
		"top_k", req.TopK,
		"mode", req.Mode,
	)

	result, err := e.retriever.Retrieve(ctx, req.Query, req.TopK, req.Filters)
	if err != nil {
		logger.ErrorContext(ctx, "retrieval failed", "error", err)
		return AskResponse{}, fmt.Errorf("retrieval failed: %w", err)
	}

	opts := checklist.Options{
		Mode:     checklist.Mode(req.Mode),
		Severity: req.Severity,
		MaxItems: req.MaxItems,
	}
	cl, err := e.synthesizer.Synthesize(ctx, result, req.Query, opts)
	if err != nil {
		logger.ErrorContext(ctx, "synthesis failed", "error", err)
		return AskResponse{}, fmt.Errorf("synthesis failed: %w", err)
	}

	logger.InfoContext(ctx, "checklist query completed",
		"retrieval_status", result.Status,
		"chunks_retrieved", len(result.Chunks),
		"items", len(cl.Items),
		"mode", cl.Mode,
		"fell_back", cl.FellBack,
	)

	return AskResponse{
		Checklist:       cl,
		RetrievalStatus: string(result.Status),
		ChunksRetrieved: len(result.Chunks),
	}, nil
}
