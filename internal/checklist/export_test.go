package checklist

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExportMarkdown(t *testing.T) {
	cl := Checklist{
		Query:    "database is down",
		Severity: "P1",
		Mode:     ModeRuleBased,
		Items: []ChecklistItem{
			{
				Text:       "Restart the primary database",
				Command:    "systemctl restart postgresql",
				Verify:     "pg_isready reports accepting connections",
				Priority:   1,
				References: []string{"c1"},
			},
			{
				Text:       "Fail over to the replica",
				Rollback:   "Re-point traffic to the old primary",
				Priority:   2,
				References: []string{"c2"},
			},
		},
		Sources: map[string]SourceRef{
			"c1": {ChunkID: "c1", DocumentName: "db.yaml", Location: "Restart primary"},
			"c2": {ChunkID: "c2", DocumentName: "app.log", Location: "lines 33-72"},
		},
	}

	md := ExportMarkdown(cl)

	assert.True(t, strings.HasPrefix(md, "# database is down\n"))
	assert.Contains(t, md, "Severity: P1")
	assert.Contains(t, md, "- [ ] Restart the primary database")
	assert.Contains(t, md, "  - Command: `systemctl restart postgresql`")
	assert.Contains(t, md, "  - Verify: pg_isready reports accepting connections")
	assert.Contains(t, md, "  - Rollback: Re-point traffic to the old primary")
	assert.Contains(t, md, "  - Source: db.yaml, Restart primary")
	assert.Contains(t, md, "  - Source: app.log, lines 33-72")

	// The two items appear in priority order.
	assert.Less(t,
		strings.Index(md, "Restart the primary"),
		strings.Index(md, "Fail over to the replica"))
}

func TestExportMarkdown_Empty(t *testing.T) {
	md := ExportMarkdown(Checklist{Query: "anything"})
	assert.Contains(t, md, "_No matching guidance found._")
}
