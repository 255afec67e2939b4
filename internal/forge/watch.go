package forge

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period Watch waits for before re-running.
const DefaultDebounce = 200 * time.Millisecond

type watchConfig struct {
	debounce time.Duration
	logger   *slog.Logger
}

// WatchOption configures Watch.
type WatchOption func(*watchConfig)

// WithDebounce sets the quiet period after the last change.
func WithDebounce(d time.Duration) WatchOption {
	return func(c *watchConfig) {
		if d > 0 {
			c.debounce = d
		}
	}
}

// WithWatchLogger sets the logger for watcher errors.
func WithWatchLogger(l *slog.Logger) WatchOption {
	return func(c *watchConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// Watch calls fn once, then again whenever a manifest or content document
// under paths changes, until ctx is done. Bursts of changes within the
// debounce window produce one call. Directories are watched recursively,
// including directories created later.
func Watch(ctx context.Context, paths []string, fn func(context.Context), opts ...WatchOption) error {
	cfg := watchConfig{debounce: DefaultDebounce, logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	files := make(map[string]bool)
	var roots []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return err
		}
		if info.IsDir() {
			if err := addRecursive(w, p); err != nil {
				return err
			}
			roots = append(roots, filepath.Clean(p))
			continue
		}
		// Editors replace files by rename, so watch the parent directory
		// and filter on the file name.
		files[filepath.Clean(p)] = true
		if err := w.Add(filepath.Dir(p)); err != nil {
			return err
		}
	}

	fn(ctx)

	timer := time.NewTimer(cfg.debounce)
	timer.Stop()
	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := addRecursive(w, ev.Name); err != nil {
						cfg.logger.Warn("watch: cannot add directory", "path", ev.Name, "error", err)
					}
					continue
				}
			}
			if !relevant(ev.Name, files, roots) {
				continue
			}
			timer.Reset(cfg.debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			cfg.logger.Warn("watch error", "error", err)
		case <-timer.C:
			fn(ctx)
		}
	}
}

func addRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}

// relevant reports whether a change to name should trigger a run: an
// explicitly watched file, or a document file under a watched directory.
func relevant(name string, files map[string]bool, roots []string) bool {
	name = filepath.Clean(name)
	if files[name] {
		return true
	}
	under := false
	for _, root := range roots {
		if rel, err := filepath.Rel(root, name); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			under = true
			break
		}
	}
	if !under {
		return false
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".cue":
		return true
	}
	return false
}
