package memory

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/iddaa-lens/jobrunner/pkg/logger"
)

const reloadDelay = 250 * time.Millisecond

// Watch reloads the store from path whenever the file changes, until ctx is done.
// A file that fails to parse is logged and the previous definitions stay in place.
func (s *Store) Watch(ctx context.Context, path string, log *logger.Logger) error {
	if log == nil {
		log = logger.New("job-store")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	// Watch the directory so editors that replace the file are still seen
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	target := filepath.Clean(path)

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	reload := func() {
		defs, err := readYAML(path)
		if err == nil {
			err = s.Replace(defs)
		}
		if err != nil {
			log.Warn().
				Err(err).
				Str("action", "jobs_reload_failed").
				Str("file", path).
				Msg("Keeping previous job definitions")
			return
		}
		log.Info().
			Str("action", "jobs_reloaded").
			Str("file", path).
			Int("job_count", len(defs)).
			Msg("Reloaded job definitions")
	}
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			// Debounce partial writes
			timerMu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDelay, reload)
			timerMu.Unlock()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().
				Err(err).
				Str("action", "jobs_watch_error").
				Str("file", path).
				Msg("File watcher error")
		}
	}
}
