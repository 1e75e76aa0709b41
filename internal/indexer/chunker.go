package indexer

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"

	"incident-assist/internal/document"
)

const (
	minChunkRunes = 50
	maxChunkRunes = 700 // Max runes per chunk (targets ~450 tokens for small-context embedding models)

	logWindowLines  = 40
	logOverlapLines = 8
)

// playbookMetaKeys are scalar playbook fields promoted into chunk metadata.
var playbookMetaKeys = map[string]struct{}{
	"id": {}, "title": {}, "section": {}, "severity": {}, "priority": {},
	"system": {}, "service": {}, "owner": {},
}

// Chunker splits documents into retrieval-sized chunks by source type:
// playbooks chunk per top-level YAML entry, runbooks per markdown heading
// section, logs as a sliding line window with overlap. Chunking is
// deterministic for identical input.
type Chunker struct {
	markdown goldmark.Markdown
}

// NewChunker creates a new chunker.
func NewChunker() *Chunker {
	return &Chunker{
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.Table),
		),
	}
}

// Chunk splits a document according to its source type. An empty document
// yields an empty chunk sequence without error; content that cannot be parsed
// for its declared source type fails with document.ErrInvalidDocument.
func (c *Chunker) Chunk(doc document.Document) ([]Chunk, error) {
	if doc.ID == "" {
		return nil, fmt.Errorf("%w: missing id", document.ErrInvalidDocument)
	}
	if strings.TrimSpace(doc.RawContent) == "" {
		return nil, nil
	}

	var (
		chunks []Chunk
		err    error
	)
	switch doc.SourceType {
	case document.SourcePlaybook:
		chunks, err = c.chunkPlaybook(doc)
	case document.SourceRunbook:
		chunks, err = c.chunkRunbook(doc)
	case document.SourceLog:
		chunks, err = c.chunkLog(doc)
	default:
		return nil, fmt.Errorf("%w: unknown source type %q", document.ErrInvalidDocument, doc.SourceType)
	}
	if err != nil {
		return nil, err
	}

	for i := range chunks {
		chunks[i].Index = i
		chunks[i].ID = chunkID(doc.ID, i)
		chunks[i].DocumentID = doc.ID
		chunks[i].Metadata = mergeMetadata(doc, chunks[i])
	}
	return chunks, nil
}

// chunkID derives a stable chunk identifier from the document ID and chunk
// offset. SHA1 UUIDs double as valid vector store point IDs, and identical
// input always maps to the same ID, which gives upserts replace semantics
// on re-ingestion.
func chunkID(documentID string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(documentID+"#"+strconv.Itoa(index))).String()
}

// mergeMetadata builds chunk metadata: document metadata first, then
// chunk-local fields on top.
func mergeMetadata(doc document.Document, chunk Chunk) map[string]any {
	meta := make(map[string]any, len(doc.Metadata)+len(chunk.Metadata)+6)
	for k, v := range doc.Metadata {
		meta[k] = v
	}
	for k, v := range chunk.Metadata {
		meta[k] = v
	}
	meta["document_id"] = doc.ID
	meta["document_name"] = doc.Name
	meta["source_type"] = string(doc.SourceType)
	meta["chunk_index"] = chunk.Index
	if chunk.Section != "" {
		meta["section"] = chunk.Section
	}
	if chunk.LineEnd > 0 {
		meta["line_start"] = chunk.LineStart
		meta["line_end"] = chunk.LineEnd
	}
	return meta
}

// chunkPlaybook splits a YAML playbook into one chunk per logical entry.
// Parsing goes through yaml.Node so source order is preserved and the output
// is deterministic. Scalar fields of an entry become chunk metadata.
func (c *Chunker) chunkPlaybook(doc document.Document) ([]Chunk, error) {
	var root yaml.Node
	if err := yaml.Unmarshal([]byte(doc.RawContent), &root); err != nil {
		return nil, fmt.Errorf("%w: unparseable playbook %s: %v", document.ErrInvalidDocument, doc.Name, err)
	}
	if len(root.Content) == 0 {
		return nil, nil
	}

	top := root.Content[0]
	var chunks []Chunk

	appendSection := func(label string, node *yaml.Node) error {
		body, err := yaml.Marshal(node)
		if err != nil {
			return fmt.Errorf("%w: unparseable playbook %s: %v", document.ErrInvalidDocument, doc.Name, err)
		}
		textBody := strings.TrimSpace(string(body))
		if textBody == "" {
			return nil
		}

		meta := playbookScalars(node)
		section := label
		if title, ok := meta["title"].(string); ok && title != "" {
			section = title
		} else if id, ok := meta["id"].(string); ok && section == "" {
			section = id
		}

		for _, part := range splitText(textBody) {
			chunks = append(chunks, Chunk{Section: section, Text: part, Metadata: meta})
		}
		return nil
	}

	switch top.Kind {
	case yaml.SequenceNode:
		for _, entry := range top.Content {
			if err := appendSection("", entry); err != nil {
				return nil, err
			}
		}
	case yaml.MappingNode:
		// Mapping pairs: key node, value node, key node, value node...
		for i := 0; i+1 < len(top.Content); i += 2 {
			if err := appendSection(top.Content[i].Value, top.Content[i+1]); err != nil {
				return nil, err
			}
		}
	case yaml.ScalarNode:
		if err := appendSection("", top); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: unsupported playbook structure in %s", document.ErrInvalidDocument, doc.Name)
	}

	return chunks, nil
}

// playbookScalars extracts known scalar fields from a mapping node.
func playbookScalars(node *yaml.Node) map[string]any {
	if node.Kind != yaml.MappingNode {
		return nil
	}
	meta := make(map[string]any)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		if value.Kind != yaml.ScalarNode {
			continue
		}
		if _, ok := playbookMetaKeys[key.Value]; !ok {
			continue
		}
		switch value.Tag {
		case "!!int":
			if n, err := strconv.Atoi(value.Value); err == nil {
				meta[key.Value] = n
			}
		case "!!float":
			if f, err := strconv.ParseFloat(value.Value, 64); err == nil {
				meta[key.Value] = f
			}
		case "!!bool":
			meta[key.Value] = value.Value == "true"
		default:
			meta[key.Value] = value.Value
		}
	}
	if len(meta) == 0 {
		return nil
	}
	return meta
}

// headingInfo tracks heading level and text for building heading paths.
type headingInfo struct {
	level int
	text  string
}

// chunkRunbook parses a markdown runbook and produces one chunk per heading
// section, capped at the rune budget. Sections smaller than the minimum are
// merged into their successor so stray one-liners do not become chunks.
func (c *Chunker) chunkRunbook(doc document.Document) ([]Chunk, error) {
	content := []byte(doc.RawContent)
	reader := text.NewReader(content)
	root := c.markdown.Parser().Parse(reader)

	var sections []Chunk
	var current *Chunk
	var stack []headingInfo

	flush := func() {
		if current != nil && strings.TrimSpace(current.Text) != "" {
			current.Text = strings.TrimSpace(current.Text)
			sections = append(sections, *current)
		}
		current = nil
	}

	for node := root.FirstChild(); node != nil; node = node.NextSibling() {
		if heading, ok := node.(*ast.Heading); ok {
			flush()
			for len(stack) > 0 && stack[len(stack)-1].level >= heading.Level {
				stack = stack[:len(stack)-1]
			}
			stack = append(stack, headingInfo{level: heading.Level, text: nodeText(heading, content)})
			current = &Chunk{Section: headingPath(stack)}
			continue
		}

		if current == nil {
			// Content before any heading falls under the document name.
			current = &Chunk{Section: doc.Name}
		}
		block := nodeText(node, content)
		if block == "" {
			continue
		}
		if current.Text != "" {
			current.Text += "\n\n"
		}
		current.Text += block
	}
	flush()

	// Merge undersized sections forward, then split oversized ones.
	var merged []Chunk
	for i := 0; i < len(sections); i++ {
		cur := sections[i]
		for utf8.RuneCountInString(cur.Text) < minChunkRunes && i+1 < len(sections) {
			next := sections[i+1]
			joined := cur.Text + "\n\n" + next.Text
			if utf8.RuneCountInString(joined) > maxChunkRunes {
				break
			}
			cur = Chunk{Section: cur.Section, Text: joined}
			i++
		}
		merged = append(merged, cur)
	}

	var chunks []Chunk
	for _, section := range merged {
		for _, part := range splitText(section.Text) {
			chunks = append(chunks, Chunk{Section: section.Section, Text: part})
		}
	}
	return chunks, nil
}

// headingPath formats a heading stack as "# Heading1 > ## Heading2".
func headingPath(stack []headingInfo) string {
	parts := make([]string, len(stack))
	for i, h := range stack {
		parts[i] = fmt.Sprintf("%s %s", strings.Repeat("#", h.level), h.text)
	}
	return strings.Join(parts, " > ")
}

// nodeText extracts the text content of a markdown node and its descendants.
func nodeText(n ast.Node, content []byte) string {
	var builder strings.Builder

	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := node.(type) {
		case *ast.Text:
			builder.Write(v.Segment.Value(content))
			if v.SoftLineBreak() || v.HardLineBreak() {
				builder.WriteByte('\n')
			}
		case *ast.String:
			builder.Write(v.Value)
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := node.Lines()
			for i := 0; i < lines.Len(); i++ {
				line := lines.At(i)
				builder.Write(line.Value(content))
			}
		case *ast.ListItem:
			if builder.Len() > 0 && !strings.HasSuffix(builder.String(), "\n") {
				builder.WriteByte('\n')
			}
		case *ast.Paragraph:
			if builder.Len() > 0 && !strings.HasSuffix(builder.String(), "\n") {
				builder.WriteByte('\n')
			}
		}
		return ast.WalkContinue, nil
	})

	return strings.TrimSpace(builder.String())
}

// chunkLog splits a log document into fixed-size sliding windows of lines
// with overlap, so context survives across chunk boundaries. Each chunk
// records the 1-based source line range it covers.
func (c *Chunker) chunkLog(doc document.Document) ([]Chunk, error) {
	lines := strings.Split(strings.TrimRight(doc.RawContent, "\n"), "\n")
	if len(lines) == 0 {
		return nil, nil
	}

	step := logWindowLines - logOverlapLines
	var chunks []Chunk
	for start := 0; start < len(lines); start += step {
		end := start + logWindowLines
		if end > len(lines) {
			end = len(lines)
		}

		windowText := strings.Join(lines[start:end], "\n")
		if strings.TrimSpace(windowText) != "" {
			chunks = append(chunks, Chunk{
				LineStart: start + 1,
				LineEnd:   end,
				Text:      windowText,
			})
		}

		if end == len(lines) {
			break
		}
	}
	return chunks, nil
}

// splitText splits text that exceeds the rune budget, preferring paragraph
// boundaries, then line boundaries, then sentence boundaries, and hard
// splitting only as a last resort.
func splitText(s string) []string {
	runes := []rune(s)
	if len(runes) <= maxChunkRunes {
		return []string{s}
	}

	var parts []string
	start := 0
	for start < len(runes) {
		end := start + maxChunkRunes
		if end >= len(runes) {
			parts = append(parts, strings.TrimSpace(string(runes[start:])))
			break
		}

		window := string(runes[start:end])
		splitPoint := end
		if i := strings.LastIndex(window, "\n\n"); i != -1 {
			splitPoint = start + utf8.RuneCountInString(window[:i]) + 2
		} else if i := strings.LastIndex(window, "\n"); i != -1 {
			splitPoint = start + utf8.RuneCountInString(window[:i]) + 1
		} else if i := strings.LastIndex(window, ". "); i != -1 {
			splitPoint = start + utf8.RuneCountInString(window[:i]) + 2
		}

		part := strings.TrimSpace(string(runes[start:splitPoint]))
		if part != "" {
			parts = append(parts, part)
		}
		start = splitPoint
	}
	return parts
}
