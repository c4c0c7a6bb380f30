package settings

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// Watch reloads the settings whenever the file is changed by another
// process and calls onChange with the new value. It blocks until ctx is
// done.
func (s *Store) Watch(ctx context.Context, logger *log.Logger, onChange func(Settings)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	// Writes go through a rename, so watch the directory.
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("watch settings directory: %w", err)
	}

	name := filepath.Clean(s.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != name || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			loaded, err := s.read()
			if err != nil {
				logger.Warn("ignoring unreadable settings change", "err", err)
				continue
			}
			s.mu.Lock()
			changed := loaded != s.current
			s.current = loaded
			s.mu.Unlock()
			if changed && onChange != nil {
				onChange(loaded)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("settings watcher error", "err", err)
		}
	}
}
