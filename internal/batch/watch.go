package batch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/TravelModellingGroup/emmebridge/internal/logging"
)

// DefaultDebounce is how long Watch waits after the last change before
// calling back. Editors often emit several events for a single save.
const DefaultDebounce = 200 * time.Millisecond

// Watch calls onChange each time the file at path is written, created or
// replaced, until ctx is done. Bursts of events within debounce collapse
// into one call. onChange runs on the watching goroutine, so changes made
// while it runs are reported once it returns.
func Watch(ctx context.Context, path string, debounce time.Duration, logger *logging.Logger, onChange func()) error {
	if logger == nil {
		logger = logging.NopLogger()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve batch file path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	// Watch the directory: editors that save by rename drop a watch on the
	// file itself.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			logger.Debug("batch file changed", "path", abs, "op", ev.Op.String())
			timer.Reset(debounce)

		case <-timer.C:
			onChange()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("batch file watcher error", "path", abs, "error", err)
		}
	}
}
