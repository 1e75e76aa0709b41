package indexer

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"incident-assist/internal/document"
)

func TestChunker_Playbook(t *testing.T) {
	chunker := NewChunker()

	doc := document.Document{
		ID:         "playbooks/db.yaml",
		Name:       "db.yaml",
		SourceType: document.SourcePlaybook,
		RawContent: `- id: restart-primary
  title: Restart the primary
  severity: critical
  steps:
    - Drain connections
    - Restart the service
- id: failover
  title: Fail over to the replica
  severity: high
  steps:
    - Promote replica
`,
	}

	chunks, err := chunker.Chunk(doc)
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("Chunk() returned %d chunks, want 2", len(chunks))
	}

	if chunks[0].Section != "Restart the primary" {
		t.Errorf("chunk[0].Section = %q, want %q", chunks[0].Section, "Restart the primary")
	}
	if chunks[1].Section != "Fail over to the replica" {
		t.Errorf("chunk[1].Section = %q", chunks[1].Section)
	}
	if got := chunks[0].Metadata["severity"]; got != "critical" {
		t.Errorf("chunk[0] severity metadata = %v, want critical", got)
	}
	if got := chunks[0].Metadata["document_id"]; got != doc.ID {
		t.Errorf("chunk[0] document_id metadata = %v, want %v", got, doc.ID)
	}
	if !strings.Contains(chunks[0].Text, "Drain connections") {
		t.Errorf("chunk[0].Text missing step content: %q", chunks[0].Text)
	}
}

func TestChunker_PlaybookMappingOrderIsStable(t *testing.T) {
	chunker := NewChunker()

	doc := document.Document{
		ID:         "playbooks/ordered.yaml",
		SourceType: document.SourcePlaybook,
		RawContent: `zeta:
  title: Last section
alpha:
  title: First section
`,
	}

	var firstOrder []string
	for run := 0; run < 5; run++ {
		chunks, err := chunker.Chunk(doc)
		if err != nil {
			t.Fatalf("Chunk() error = %v", err)
		}
		order := make([]string, len(chunks))
		for i, c := range chunks {
			order[i] = c.Section
		}
		if run == 0 {
			firstOrder = order
			if order[0] != "Last section" {
				t.Errorf("source order not preserved: %v", order)
			}
			continue
		}
		for i := range order {
			if order[i] != firstOrder[i] {
				t.Fatalf("run %d: order differs: %v vs %v", run, order, firstOrder)
			}
		}
	}
}

func TestChunker_PlaybookInvalidYAML(t *testing.T) {
	chunker := NewChunker()

	doc := document.Document{
		ID:         "playbooks/broken.yaml",
		Name:       "broken.yaml",
		SourceType: document.SourcePlaybook,
		RawContent: "key: [unclosed",
	}

	_, err := chunker.Chunk(doc)
	if !errors.Is(err, document.ErrInvalidDocument) {
		t.Errorf("Chunk() error = %v, want ErrInvalidDocument", err)
	}
}

func TestChunker_Runbook(t *testing.T) {
	chunker := NewChunker()

	doc := document.Document{
		ID:         "runbooks/outage.md",
		Name:       "outage.md",
		SourceType: document.SourceRunbook,
		RawContent: `# Database outage

General guidance for database incidents, including the escalation policy and who owns the service.

## Diagnosis

Check replication lag and open connections first. If lag exceeds one minute, the replica is not a viable failover target.

## Remediation

Command: systemctl restart postgresql
Verify: pg_isready returns accepting connections and replication resumes within two minutes of restart.
`,
	}

	chunks, err := chunker.Chunk(doc)
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if len(chunks) == 0 {
		t.Fatal("Chunk() returned no chunks")
	}

	var sections []string
	for _, c := range chunks {
		sections = append(sections, c.Section)
	}
	found := false
	for _, s := range sections {
		if strings.Contains(s, "# Database outage") && strings.Contains(s, "## Diagnosis") {
			found = true
		}
	}
	if !found {
		t.Errorf("no chunk carries the heading path, sections = %v", sections)
	}

	for _, c := range chunks {
		if n := utf8.RuneCountInString(c.Text); n > maxChunkRunes {
			t.Errorf("chunk %q exceeds rune budget: %d", c.Section, n)
		}
	}
}

func TestChunker_RunbookMergesSmallSections(t *testing.T) {
	chunker := NewChunker()

	doc := document.Document{
		ID:         "runbooks/short.md",
		SourceType: document.SourceRunbook,
		RawContent: "# A\n\nTiny.\n\n# B\n\nAlso tiny but together they clear the minimum chunk size threshold easily.\n",
	}

	chunks, err := chunker.Chunk(doc)
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("Chunk() returned %d chunks, want 1 merged chunk", len(chunks))
	}
	if !strings.Contains(chunks[0].Text, "Tiny.") || !strings.Contains(chunks[0].Text, "Also tiny") {
		t.Errorf("merged chunk missing content: %q", chunks[0].Text)
	}
}

func TestChunker_RunbookKeepsFencedCommands(t *testing.T) {
	chunker := NewChunker()

	doc := document.Document{
		ID:         "runbooks/restart.md",
		SourceType: document.SourceRunbook,
		RawContent: "# Service restart\n\nRun the restart sequence and confirm the health endpoint responds before closing the incident:\n\n```\nsystemctl stop app\nsystemctl start app\n```\n",
	}

	chunks, err := chunker.Chunk(doc)
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if len(chunks) == 0 {
		t.Fatal("Chunk() returned no chunks")
	}

	var joined strings.Builder
	for _, c := range chunks {
		joined.WriteString(c.Text)
	}
	for _, cmd := range []string{"systemctl stop app", "systemctl start app"} {
		if !strings.Contains(joined.String(), cmd) {
			t.Errorf("fenced command %q missing from chunk text", cmd)
		}
	}
}

func TestChunker_LogWindows(t *testing.T) {
	chunker := NewChunker()

	var lines []string
	for i := 1; i <= 100; i++ {
		lines = append(lines, "2024-03-01T10:00:00Z error connecting to upstream")
	}
	doc := document.Document{
		ID:         "logs/app.log",
		SourceType: document.SourceLog,
		RawContent: strings.Join(lines, "\n"),
	}

	chunks, err := chunker.Chunk(doc)
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("Chunk() returned %d chunks, want 3", len(chunks))
	}

	// Windows of 40 lines stepping by 32: 1-40, 33-72, 65-100.
	wantRanges := [][2]int{{1, 40}, {33, 72}, {65, 100}}
	for i, want := range wantRanges {
		if chunks[i].LineStart != want[0] || chunks[i].LineEnd != want[1] {
			t.Errorf("chunk[%d] range = %d-%d, want %d-%d",
				i, chunks[i].LineStart, chunks[i].LineEnd, want[0], want[1])
		}
	}

	// The recorded ranges must reconstruct the original lines.
	first := strings.Split(chunks[0].Text, "\n")
	if len(first) != 40 {
		t.Errorf("chunk[0] has %d lines, want 40", len(first))
	}

	if got := chunks[1].Metadata["line_start"]; got != 33 {
		t.Errorf("chunk[1] line_start metadata = %v, want 33", got)
	}
}

func TestChunker_EmptyDocument(t *testing.T) {
	chunker := NewChunker()

	doc := document.Document{
		ID:         "logs/empty.log",
		SourceType: document.SourceLog,
		RawContent: "   \n\n  ",
	}

	chunks, err := chunker.Chunk(doc)
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("Chunk() returned %d chunks for blank content, want 0", len(chunks))
	}
}

func TestChunker_UnknownSourceType(t *testing.T) {
	chunker := NewChunker()

	doc := document.Document{
		ID:         "misc/file",
		SourceType: "spreadsheet",
		RawContent: "content",
	}

	_, err := chunker.Chunk(doc)
	if !errors.Is(err, document.ErrInvalidDocument) {
		t.Errorf("Chunk() error = %v, want ErrInvalidDocument", err)
	}
}

func TestChunkID_Deterministic(t *testing.T) {
	a := chunkID("doc-1", 0)
	b := chunkID("doc-1", 0)
	c := chunkID("doc-1", 1)
	d := chunkID("doc-2", 0)

	if a != b {
		t.Errorf("chunkID not deterministic: %q != %q", a, b)
	}
	if a == c || a == d {
		t.Errorf("chunkID collisions: %q %q %q", a, c, d)
	}
}

func TestSplitText(t *testing.T) {
	t.Run("short text untouched", func(t *testing.T) {
		parts := splitText("short")
		if len(parts) != 1 || parts[0] != "short" {
			t.Errorf("splitText() = %v", parts)
		}
	})

	t.Run("splits on paragraph boundary", func(t *testing.T) {
		para := strings.Repeat("word ", 100)
		long := para + "\n\n" + para
		parts := splitText(long)
		if len(parts) < 2 {
			t.Fatalf("splitText() produced %d parts, want at least 2", len(parts))
		}
		for _, p := range parts {
			if utf8.RuneCountInString(p) > maxChunkRunes {
				t.Errorf("part exceeds budget: %d runes", utf8.RuneCountInString(p))
			}
		}
	})

	t.Run("hard split without boundaries", func(t *testing.T) {
		long := strings.Repeat("x", 2*maxChunkRunes)
		parts := splitText(long)
		if len(parts) != 2 {
			t.Errorf("splitText() produced %d parts, want 2", len(parts))
		}
	})
}

func TestComputeTokenStats(t *testing.T) {
	chunks := []Chunk{
		{Text: strings.Repeat("a", 400)},
		{Text: strings.Repeat("a", 400)},
		{Text: strings.Repeat("a", 40)},
	}

	stats := computeTokenStats(chunks)
	if stats.Min != 10 {
		t.Errorf("Min = %d, want 10", stats.Min)
	}
	if stats.Max != 100 {
		t.Errorf("Max = %d, want 100", stats.Max)
	}
	if stats.Mean != 70 {
		t.Errorf("Mean = %v, want 70", stats.Mean)
	}

	empty := computeTokenStats(nil)
	if empty.Max != 0 {
		t.Errorf("empty stats Max = %d, want 0", empty.Max)
	}
}
