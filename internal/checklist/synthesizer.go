package checklist

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"incident-assist/internal/contextutil"
	"incident-assist/internal/llm"
	"incident-assist/internal/retriever"
)

const (
	defaultMaxItems    = 10
	maxContextChunks   = 15
	generationMaxToken = 1024
)

// Generator is the injected text-generation capability behind generative
// synthesis. It is never a hard dependency: a nil Generator simply forces
// rule-based mode.
type Generator interface {
	ChatWithMessages(ctx context.Context, messages []llm.Message, params llm.ChatParams) (string, error)
}

// Options tune a single synthesis call.
type Options struct {
	Mode     Mode
	Severity string
	MaxItems int
}

// Synthesizer converts ranked retrieved chunks into a referenced checklist.
type Synthesizer struct {
	generator Generator
}

// NewSynthesizer creates a synthesizer. generator may be nil, in which case
// generative requests silently degrade to rule-based synthesis.
func NewSynthesizer(generator Generator) *Synthesizer {
	return &Synthesizer{generator: generator}
}

// Synthesize produces a checklist for the query from the retrieval result.
// Rule-based mode is fully deterministic; generative mode validates every
// citation against the retrieval result and falls back to rule-based when
// the capability is unavailable or produces ungrounded output.
func (s *Synthesizer) Synthesize(ctx context.Context, result retriever.RetrievalResult, query string, opts Options) (Checklist, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if opts.MaxItems <= 0 {
		opts.MaxItems = defaultMaxItems
	}
	if opts.Mode == "" {
		opts.Mode = ModeRuleBased
	}

	cl := Checklist{
		Query:    query,
		Severity: opts.Severity,
		Mode:     opts.Mode,
		Items:    []ChecklistItem{},
		Sources:  buildSources(result),
	}
	if len(result.Chunks) == 0 {
		return cl, nil
	}

	if opts.Mode == ModeGenerative {
		items, err := s.synthesizeGenerative(ctx, result, query, opts)
		if err == nil {
			cl.Items = items
			return cl, nil
		}
		// Generative failure is non-fatal: fall back rather than emitting
		// unreferenced items.
		logger.WarnContext(ctx, "generative synthesis failed, falling back to rule-based", "error", err)
		cl.Mode = ModeRuleBased
		cl.FellBack = true
	}

	cl.Items = synthesizeRuleBased(result, opts.MaxItems)
	return cl, nil
}

// priorityRank orders chunks before templating: explicit priority metadata
// first, then remediation before diagnosis, then everything else.
func priorityRank(meta map[string]any) int {
	p, _ := meta["priority"].(string)
	if p == "" {
		p, _ = meta["severity"].(string)
	}
	switch strings.ToLower(p) {
	case "critical", "urgent", "high", "p1":
		return 0
	case "medium", "p2":
		return 1
	case "low", "p3":
		return 2
	}

	section, _ := meta["section"].(string)
	switch strings.ToLower(section) {
	case "remediation":
		return 1
	case "diagnosis":
		return 2
	}
	return 3
}

// fieldPrefixes are structured step fields recognized in chunk text.
var fieldPrefixes = []string{"command:", "verify:", "rollback:"}

// synthesizeRuleBased turns each retrieved chunk into a checklist item by
// template extraction. Items are deduplicated by label keeping the first
// (highest-ranked) occurrence, and every item cites its source chunk.
func synthesizeRuleBased(result retriever.RetrievalResult, maxItems int) []ChecklistItem {
	chunks := make([]retriever.RetrievedChunk, len(result.Chunks))
	copy(chunks, result.Chunks)
	sort.SliceStable(chunks, func(i, j int) bool {
		ri, rj := priorityRank(chunks[i].Metadata), priorityRank(chunks[j].Metadata)
		if ri != rj {
			return ri < rj
		}
		return chunks[i].Score > chunks[j].Score
	})

	seen := make(map[string]struct{})
	items := make([]ChecklistItem, 0, maxItems)
	for _, chunk := range chunks {
		text := strings.TrimSpace(chunk.Text)
		if text == "" {
			continue
		}

		item := ChecklistItem{References: []string{chunk.ChunkID}}
		var nonFieldLines []string
		for _, line := range strings.Split(text, "\n") {
			trimmed := strings.TrimSpace(line)
			lower := strings.ToLower(trimmed)
			switch {
			case strings.HasPrefix(lower, "command:"):
				item.Command = strings.TrimSpace(trimmed[len("command:"):])
			case strings.HasPrefix(lower, "verify:"):
				item.Verify = strings.TrimSpace(trimmed[len("verify:"):])
			case strings.HasPrefix(lower, "rollback:"):
				item.Rollback = strings.TrimSpace(trimmed[len("rollback:"):])
			default:
				nonFieldLines = append(nonFieldLines, line)
			}
		}

		label := ""
		if len(nonFieldLines) > 0 {
			label = strings.TrimSpace(nonFieldLines[0])
		}
		if label == "" {
			if chunk.Section != "" {
				label = chunk.Section + " step"
			} else {
				label = "Action"
			}
		}
		if _, dup := seen[label]; dup {
			continue
		}
		seen[label] = struct{}{}

		item.Text = label
		details := strings.TrimSpace(strings.Join(nonFieldLines, "\n"))
		if details != label {
			item.Details = details
		}
		item.Priority = len(items) + 1
		items = append(items, item)

		if len(items) >= maxItems {
			break
		}
	}
	return items
}

// citationPattern matches inline chunk citations of the form [chunk:<id>].
var citationPattern = regexp.MustCompile(`\[chunk:([A-Za-z0-9_-]+)\]`)

// synthesizeGenerative delegates wording to the generator, grounding it on
// the retrieved chunks and requiring [chunk:<id>] citations per item.
// Citations that do not resolve into the retrieval result are dropped, never
// fabricated; an item left without references is discarded; a response with
// no surviving items fails with ErrUngroundedGeneration.
func (s *Synthesizer) synthesizeGenerative(ctx context.Context, result retriever.RetrievalResult, query string, opts Options) ([]ChecklistItem, error) {
	if s.generator == nil {
		return nil, fmt.Errorf("no generation capability configured")
	}

	valid := make(map[string]struct{}, len(result.Chunks))
	var contextBlocks []string
	for i, chunk := range result.Chunks {
		if i >= maxContextChunks {
			break
		}
		valid[chunk.ChunkID] = struct{}{}
		header := fmt.Sprintf("[chunk:%s] %s", chunk.ChunkID, sourceLabel(chunk))
		contextBlocks = append(contextBlocks, header+"\n"+chunk.Text)
	}

	severity := opts.Severity
	if severity == "" {
		severity = "P2"
	}

	systemPrompt := "You are an SRE incident assistant. Produce a prioritized, actionable checklist " +
		"for remediation and diagnosis. Use only the provided context. Every item must cite its source " +
		"as [chunk:<id>] taken from the context headers. Format each item as a \"- \" bullet, optionally " +
		"followed by indented \"Command:\", \"Verify:\" and \"Rollback:\" lines."

	userMessage := fmt.Sprintf("Severity: %s\nQuery: %s\nLimit to %d items.\n\nContext:\n%s",
		severity, query, opts.MaxItems, strings.Join(contextBlocks, "\n\n---\n\n"))

	answer, err := s.generator.ChatWithMessages(ctx, []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userMessage},
	}, llm.ChatParams{MaxTokens: generationMaxToken, Temperature: 0.2})
	if err != nil {
		return nil, fmt.Errorf("generation failed: %w", err)
	}

	items := parseGeneratedItems(answer, valid, opts.MaxItems)
	if len(items) == 0 {
		return nil, ErrUngroundedGeneration
	}
	return items, nil
}

// parseGeneratedItems converts bullet-formatted generator output into
// checklist items, keeping only citations that exist in valid.
func parseGeneratedItems(answer string, valid map[string]struct{}, maxItems int) []ChecklistItem {
	var items []ChecklistItem
	var current *ChecklistItem

	flush := func() {
		if current == nil {
			return
		}
		if current.Text != "" && len(current.References) > 0 {
			current.Priority = len(items) + 1
			items = append(items, *current)
		}
		current = nil
	}

	for _, line := range strings.Split(answer, "\n") {
		raw := strings.TrimSpace(line)
		if raw == "" {
			continue
		}
		lower := strings.ToLower(raw)
		switch {
		case strings.HasPrefix(raw, "- ") || strings.HasPrefix(raw, "* "):
			flush()
			if len(items) >= maxItems {
				return items
			}
			current = &ChecklistItem{}
			body := strings.TrimSpace(raw[2:])
			current.References = extractCitations(body, valid)
			current.Text = strings.TrimSpace(citationPattern.ReplaceAllString(body, ""))
		case current == nil:
			continue
		case strings.HasPrefix(lower, "command:"):
			current.Command = strings.TrimSpace(raw[len("command:"):])
		case strings.HasPrefix(lower, "verify:"):
			current.Verify = strings.TrimSpace(raw[len("verify:"):])
		case strings.HasPrefix(lower, "rollback:"):
			current.Rollback = strings.TrimSpace(raw[len("rollback:"):])
		default:
			// Continuation line: may still carry the citation.
			current.References = append(current.References, extractCitations(raw, valid)...)
			if current.Details != "" {
				current.Details += "\n"
			}
			current.Details += strings.TrimSpace(citationPattern.ReplaceAllString(raw, ""))
		}
	}
	flush()
	return items
}

// extractCitations returns the cited chunk IDs present in valid, in order,
// without duplicates.
func extractCitations(s string, valid map[string]struct{}) []string {
	var refs []string
	seen := make(map[string]struct{})
	for _, match := range citationPattern.FindAllStringSubmatch(s, -1) {
		id := match[1]
		if _, ok := valid[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		refs = append(refs, id)
	}
	return refs
}

// buildSources maps chunk IDs to human-readable source references.
func buildSources(result retriever.RetrievalResult) map[string]SourceRef {
	if len(result.Chunks) == 0 {
		return nil
	}
	sources := make(map[string]SourceRef, len(result.Chunks))
	for _, chunk := range result.Chunks {
		name, _ := chunk.Metadata["document_name"].(string)
		if name == "" {
			name = chunk.DocumentID
		}
		sources[chunk.ChunkID] = SourceRef{
			ChunkID:      chunk.ChunkID,
			DocumentName: name,
			Location:     chunkLocation(chunk),
		}
	}
	return sources
}

// sourceLabel formats a chunk origin for the generation prompt.
func sourceLabel(chunk retriever.RetrievedChunk) string {
	name, _ := chunk.Metadata["document_name"].(string)
	if name == "" {
		name = chunk.DocumentID
	}
	if loc := chunkLocation(chunk); loc != "" {
		return fmt.Sprintf("(%s, %s)", name, loc)
	}
	return fmt.Sprintf("(%s)", name)
}

// chunkLocation describes where in its document a chunk sits.
func chunkLocation(chunk retriever.RetrievedChunk) string {
	if chunk.LineEnd > 0 {
		return fmt.Sprintf("lines %d-%d", chunk.LineStart, chunk.LineEnd)
	}
	return chunk.Section
}
