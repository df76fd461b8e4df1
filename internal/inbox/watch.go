package inbox

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// settleDelay is how long a draft must stay quiet before it is imported, so
// editors that write in several steps are seen once.
const settleDelay = 200 * time.Millisecond

// Watch imports existing drafts, then watches root (the directory behind
// the importer's storage) until ctx is cancelled. Only the top level is
// watched, so processed/ and rejected/ never re-trigger an import.
func (im *Importer) Watch(ctx context.Context, root string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(root); err != nil {
		return err
	}

	if n, err := im.Scan(ctx); err != nil {
		im.logger.Warn("inbox: initial scan failed", slog.String("error", err.Error()))
	} else {
		im.logger.Info("inbox: watcher started", slog.String("root", root), slog.Int("imported", n))
	}

	pending := make(map[string]struct{})
	var settle *time.Timer
	var settleCh <-chan time.Time

	schedule := func(name string) {
		pending[name] = struct{}{}
		if settle == nil {
			settle = time.NewTimer(settleDelay)
			settleCh = settle.C
		} else {
			settle.Reset(settleDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if settle != nil {
				settle.Stop()
			}
			im.logger.Info("inbox: watcher stopped")
			return nil

		case <-settleCh:
			for name := range pending {
				delete(pending, name)
				if _, err := im.Import(ctx, name); err != nil {
					im.logger.Debug("inbox: import skipped", slog.String("path", name), slog.String("error", err.Error()))
				}
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			name := filepath.Base(ev.Name)
			if !strings.HasSuffix(name, ".md") || strings.HasPrefix(name, ".") {
				continue
			}
			schedule(name)

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			im.logger.Error("inbox: watcher error", slog.String("error", watchErr.Error()))
		}
	}
}
