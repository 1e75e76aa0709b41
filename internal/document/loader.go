package document

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Loader reads incident-response documents from a corpus directory tree.
type Loader struct {
	root string
}

// NewLoader creates a loader rooted at the given corpus directory.
func NewLoader(root string) *Loader {
	return &Loader{root: root}
}

// Root returns the corpus root directory.
func (l *Loader) Root() string {
	return l.root
}

// loadableExts is the set of file extensions mapped to documents during a scan.
var loadableExts = map[string]struct{}{
	".yaml": {}, ".yml": {}, ".md": {}, ".markdown": {}, ".log": {}, ".txt": {},
}

// ScanAll walks the corpus root and returns every loadable file as a Document.
// The document ID is the slash-normalized path relative to the corpus root,
// which keeps chunk IDs stable across rescans of the same tree.
func (l *Loader) ScanAll(ctx context.Context) ([]Document, error) {
	var docs []Document

	err := filepath.Walk(l.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return fmt.Errorf("failed to access path %s: %w", path, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if info.IsDir() {
			// Skip hidden directories (editor state, VCS)
			if strings.HasPrefix(info.Name(), ".") && path != l.root {
				return filepath.SkipDir
			}
			return nil
		}

		if _, ok := loadableExts[strings.ToLower(filepath.Ext(path))]; !ok {
			return nil
		}

		doc, err := l.Load(path)
		if err != nil {
			return err
		}
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan corpus %s: %w", l.root, err)
	}

	return docs, nil
}

// Load reads a single file under the corpus root into a Document.
func (l *Loader) Load(path string) (Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("failed to read file %s: %w", path, err)
	}

	relPath, err := filepath.Rel(l.root, path)
	if err != nil {
		return Document{}, fmt.Errorf("failed to compute relative path for %s: %w", path, err)
	}
	relPath = filepath.ToSlash(relPath)

	folder := filepath.Dir(relPath)
	if folder == "." {
		folder = ""
	}

	raw := string(content)
	return Document{
		ID:         relPath,
		Name:       filepath.Base(relPath),
		SourceType: InferSourceType(relPath, raw),
		RawContent: raw,
		Metadata: map[string]any{
			"source_path": relPath,
			"folder":      folder,
		},
	}, nil
}
