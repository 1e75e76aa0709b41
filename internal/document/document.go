package document

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrInvalidDocument is returned when a document's raw content is empty or
// unparseable for its declared source type. It is local to one document:
// ingestion skips and reports it, never aborts the whole run.
var ErrInvalidDocument = errors.New("invalid document")

// SourceType classifies the shape of an incident-response document.
type SourceType string

const (
	SourcePlaybook SourceType = "playbook"
	SourceRunbook  SourceType = "runbook"
	SourceLog      SourceType = "log"
)

// Document is an uploaded source file. It is immutable once chunked; a
// re-upload with the same ID supersedes the prior version.
type Document struct {
	ID         string
	Name       string
	SourceType SourceType
	RawContent string
	Metadata   map[string]any
}

// Validate checks that the document can be chunked for its declared source type.
func (d Document) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidDocument)
	}
	if strings.TrimSpace(d.RawContent) == "" {
		return fmt.Errorf("%w: empty content in %s", ErrInvalidDocument, d.Name)
	}
	switch d.SourceType {
	case SourcePlaybook, SourceRunbook, SourceLog:
		return nil
	default:
		return fmt.Errorf("%w: unknown source type %q", ErrInvalidDocument, d.SourceType)
	}
}

var yamlKeyLine = regexp.MustCompile(`(?m)^[A-Za-z_][A-Za-z0-9_-]*:(\s|$)`)

// InferSourceType maps a filename (and, when the extension is ambiguous, the
// content shape) to a SourceType. YAML files are playbooks, markdown files
// are runbooks, everything else is treated as a log.
func InferSourceType(filename, content string) SourceType {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		return SourcePlaybook
	case ".md", ".markdown":
		return SourceRunbook
	case ".log":
		return SourceLog
	}

	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "---") || yamlKeyLine.MatchString(trimmed) {
		return SourcePlaybook
	}
	if strings.HasPrefix(trimmed, "#") {
		return SourceRunbook
	}
	return SourceLog
}
