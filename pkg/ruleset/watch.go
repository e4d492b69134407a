package ruleset

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce coalesces the burst of events an editor save produces.
const reloadDebounce = 100 * time.Millisecond

// Reload recompiles the document at path and swaps it into h. The new
// snapshot's version is raised to one past the active version when the
// document does not already declare a higher one. On failure the active
// snapshot is kept.
func Reload(path string, h *Holder) (*RuleSet, error) {
	rs, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	if cur := h.Load(); cur != nil && rs.Version <= cur.Version {
		rs = rs.WithVersion(cur.Version + 1)
	}
	if err := h.Swap(rs); err != nil {
		return nil, err
	}
	return rs, nil
}

// Watch reloads the rule set at path into h whenever the file is written,
// until ctx is done. The parent directory is watched so editors that save
// by renaming are seen too.
func Watch(ctx context.Context, path string, h *Holder, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve rule set path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}
	logger.Debug("watching rule set", "path", abs)

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(reloadDebounce, func() {
				rs, err := Reload(abs, h)
				if err != nil {
					logger.Error("rule set reload failed, keeping current version", "path", abs, "error", err)
					return
				}
				logger.Info("rule set reloaded", "version", rs.Version, "tables", rs.Catalog.Len())
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher error", "error", err)
		}
	}
}
