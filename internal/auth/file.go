package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// LoadFile applies the token stored in path. A missing or empty file
// clears the session.
func (s *TokenSource) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.Clear()
			return nil
		}
		return fmt.Errorf("read token file: %w", err)
	}

	token := strings.TrimSpace(string(data))
	if token == "" {
		s.Clear()
		return nil
	}
	return s.SetToken(token)
}

// WatchFile loads path and reloads it whenever it is written, replaced or
// removed, until ctx is done. The parent directory is watched so that
// atomic rename-into-place updates are seen. An invalid token in the file
// is logged and the previous session is kept.
func (s *TokenSource) WatchFile(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	path = filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	s.reload(path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				s.reload(path)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("Token file watcher error", "path", path, "error", err)
		}
	}
}

func (s *TokenSource) reload(path string) {
	if err := s.LoadFile(path); err != nil {
		s.logger.Warn("Failed to load token file", "path", path, "error", err)
	}
}
