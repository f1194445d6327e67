// Package watch re-extracts a route whenever its application source changes.
// Glue around the extractor: it watches the conventional app subdirectories,
// debounces bursts of events, and logs each re-extraction result.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/routepack/routepack/internal/extract"
)

// debounceDelay coalesces editor save bursts into one re-extraction.
const debounceDelay = 500 * time.Millisecond

// Watcher re-runs an extraction when watched files change.
type Watcher struct {
	extractor *extract.Extractor
	appRoot   string
	logger    *logrus.Logger
}

// NewWatcher creates a Watcher over the application root.
func NewWatcher(extractor *extract.Extractor, appRoot string, logger *logrus.Logger) *Watcher {
	return &Watcher{extractor: extractor, appRoot: appRoot, logger: logger}
}

// Run extracts the pattern once, then blocks re-extracting on changes until
// the context is cancelled.
func (w *Watcher) Run(ctx context.Context, pattern string, opts extract.Options) error {
	if _, err := w.extractor.ExtractRoute(pattern, opts); err != nil {
		return err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	for _, dir := range w.watchDirs() {
		if err := watchRecursive(fsw, dir); err != nil {
			w.logger.WithError(err).WithField("dir", dir).Warn("Failed to watch directory")
		}
	}

	var timer *time.Timer
	pending := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if !relevant(event.Name) {
				continue
			}
			w.logger.WithField("file", event.Name).Debug("Change detected")
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounceDelay, func() {
				select {
				case pending <- struct{}{}:
				default:
				}
			})
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.WithError(err).Warn("Watcher error")
		case <-pending:
			result, err := w.extractor.ExtractRoute(pattern, opts)
			switch {
			case err != nil:
				w.logger.WithError(err).Error("Re-extraction failed")
			case !result.Success:
				w.logger.WithField("error", result.Error).Warn("Re-extraction failed")
			default:
				w.logger.WithFields(logrus.Fields{
					"bundle": result.BundlePath,
					"files":  result.FileCount,
				}).Info("Re-extracted")
			}
		}
	}
}

func (w *Watcher) watchDirs() []string {
	var dirs []string
	for _, sub := range []string{"models", "views", "controllers", "helpers"} {
		dir := filepath.Join(w.appRoot, "app", sub)
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			dirs = append(dirs, dir)
		}
	}
	return dirs
}

func watchRecursive(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return fsw.Add(p)
		}
		return nil
	})
}

// relevant filters out editor temp files and hidden files.
func relevant(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") || strings.HasSuffix(base, ".swp") {
		return false
	}
	return true
}
