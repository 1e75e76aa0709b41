package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// ErrEmbeddingUnavailable is returned when the embedding provider is
// unreachable or keeps failing after the bounded retry budget. Callers treat
// it as a batch failure: no partial index mutation happens for the batch.
var ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")

const (
	embedMaxRetries   = 4
	embedBaseDelay    = 500 * time.Millisecond
	// Proactive throttle below typical provider limits so bulk ingestion
	// does not trip 429s in the first place.
	embedRequestsPerSecond = 5
)

// EmbeddingsClient is a client for an OpenAI-compatible embeddings API.
type EmbeddingsClient struct {
	BaseURL      string
	APIKey       string
	Model        string
	ExpectedSize int // Expected vector size for validation
	client       *http.Client
	limiter      *rate.Limiter
	sleep        func(context.Context, time.Duration) error
}

// NewEmbeddingsClient creates a new embeddings client.
// expectedSize is the expected vector size (from VECTOR_SIZE config).
// All embeddings returned by EmbedTexts are validated against this size.
func NewEmbeddingsClient(baseURL, apiKey, model string, expectedSize int) *EmbeddingsClient {
	return &EmbeddingsClient{
		BaseURL:      baseURL,
		APIKey:       apiKey,
		Model:        model,
		ExpectedSize: expectedSize,
		client:       &http.Client{Timeout: 30 * time.Second},
		limiter:      rate.NewLimiter(rate.Limit(embedRequestsPerSecond), 1),
		sleep:        sleepCtx,
	}
}

// EmbeddingsRequest represents the request payload for the embeddings API.
type EmbeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// EmbeddingData represents a single embedding in the response.
type EmbeddingData struct {
	Embedding []float64 `json:"embedding"`
	Index     int       `json:"index"`
}

// EmbeddingsResponse represents the response from the embeddings API.
type EmbeddingsResponse struct {
	Data []EmbeddingData `json:"data"`
}

// EmbedTexts generates embeddings for the given texts, order-preserving:
// result[i] corresponds to texts[i]. Transient provider errors (429, 5xx,
// network) are retried with exponential backoff up to a bounded attempt
// count; after exhaustion the call fails with ErrEmbeddingUnavailable.
func (c *EmbeddingsClient) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("empty input array")
	}

	var lastErr error
	for attempt := 0; attempt <= embedMaxRetries; attempt++ {
		if attempt > 0 {
			delay := embedBaseDelay << (attempt - 1)
			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		result, retryAfter, err := c.embedOnce(ctx, texts)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !errors.Is(err, errEmbedRetryable) {
			return nil, err
		}
		if retryAfter > 0 {
			if err := c.sleep(ctx, retryAfter); err != nil {
				return nil, err
			}
		}
	}

	return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, lastErr)
}

// errEmbedRetryable marks provider failures worth another attempt.
var errEmbedRetryable = errors.New("retryable embedding error")

// embedOnce performs a single embeddings request. The second return value is
// the provider's Retry-After hint, when present.
func (c *EmbeddingsClient) embedOnce(ctx context.Context, texts []string) ([][]float32, time.Duration, error) {
	url := fmt.Sprintf("%s/v1/embeddings", c.BaseURL)

	body, err := json.Marshal(EmbeddingsRequest{Model: c.Model, Input: texts})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.APIKey))
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", errEmbedRetryable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		var retryAfter time.Duration
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil {
				retryAfter = time.Duration(secs) * time.Second
			}
		}
		raw, _ := io.ReadAll(resp.Body)
		return nil, retryAfter, fmt.Errorf("%w: status %d: %s", errEmbedRetryable, resp.StatusCode, string(raw))
	}

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, 0, fmt.Errorf("%w: bad status %d: %s", ErrEmbeddingUnavailable, resp.StatusCode, string(raw))
	}

	var embeddingsResp EmbeddingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&embeddingsResp); err != nil {
		return nil, 0, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(embeddingsResp.Data) != len(texts) {
		return nil, 0, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(embeddingsResp.Data))
	}

	result := make([][]float32, len(embeddingsResp.Data))
	for i, data := range embeddingsResp.Data {
		if c.ExpectedSize > 0 && len(data.Embedding) != c.ExpectedSize {
			return nil, 0, fmt.Errorf("embedding %d has size %d, expected %d", i, len(data.Embedding), c.ExpectedSize)
		}
		vec := make([]float32, len(data.Embedding))
		for j, v := range data.Embedding {
			vec[j] = float32(v)
		}
		result[i] = vec
	}

	return result, 0, nil
}

// sleepCtx sleeps for d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
