package document

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches the corpus tree and invokes a callback for documents that
// change on disk. Events are debounced so a burst of writes to the same file
// produces a single reindex.
type Watcher struct {
	loader   *Loader
	onChange func(ctx context.Context, doc Document)
	debounce time.Duration
	logger   *slog.Logger
}

// NewWatcher creates a watcher over the loader's corpus root. onChange is
// called with the reloaded document after a write or create settles.
func NewWatcher(loader *Loader, onChange func(ctx context.Context, doc Document)) *Watcher {
	return &Watcher{
		loader:   loader,
		onChange: onChange,
		debounce: 500 * time.Millisecond,
		logger:   slog.Default(),
	}
}

// Run blocks watching for filesystem events until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() {
		_ = fw.Close()
	}()

	// Watch the root and every subdirectory; fsnotify is not recursive.
	root := w.loader.Root()
	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		// Skip hidden directories (editor state, VCS)
		if strings.HasPrefix(info.Name(), ".") && path != root {
			return filepath.SkipDir
		}
		return fw.Add(path)
	})
	if err != nil {
		return err
	}

	pending := make(map[string]time.Time)
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
				_ = fw.Add(event.Name)
				continue
			}
			if _, ok := loadableExts[strings.ToLower(filepath.Ext(event.Name))]; !ok {
				continue
			}
			pending[event.Name] = time.Now()
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.WarnContext(ctx, "corpus watch error", "error", err)
		case now := <-ticker.C:
			for path, seen := range pending {
				if now.Sub(seen) < w.debounce {
					continue
				}
				delete(pending, path)
				doc, err := w.loader.Load(path)
				if err != nil {
					w.logger.WarnContext(ctx, "failed to reload changed document", "path", path, "error", err)
					continue
				}
				w.logger.InfoContext(ctx, "corpus file changed", "document_id", doc.ID)
				w.onChange(ctx, doc)
			}
		}
	}
}
