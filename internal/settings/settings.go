// Package settings persists the user's local playback preferences.
package settings

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/tessro/spool/internal/core"
)

const (
	// DefaultFileName is the default name for the settings file.
	DefaultFileName = "settings.toml"

	// DefaultVolume is used when no volume has been saved yet.
	DefaultVolume = 80
)

// Settings are local preferences that are not part of the remote queue.
type Settings struct {
	Volume      int             `toml:"volume"`
	Repeat      core.RepeatMode `toml:"repeat"`
	LastQueueID int64           `toml:"last_queue_id"`
	ClientID    string          `toml:"client_id"`
}

// Store reads and writes settings on disk and keeps the current value in
// memory for synchronous reads.
type Store struct {
	path string
	lock *flock.Flock

	mu      sync.RWMutex
	current Settings
}

// NewStore creates a settings store at the specified path.
// If path is empty, uses the default location (~/.config/spool/settings.toml).
func NewStore(path string) (*Store, error) {
	if path == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get config directory: %w", err)
		}
		path = filepath.Join(configDir, "spool", DefaultFileName)
	}

	return &Store{
		path:    path,
		lock:    flock.New(path + ".lock"),
		current: Settings{Volume: DefaultVolume},
	}, nil
}

// Load reads settings from disk. A missing file yields defaults, and a
// client identifier is generated and saved on first use.
func (s *Store) Load() (Settings, error) {
	loaded, err := s.read()
	if err != nil {
		return Settings{}, err
	}

	s.mu.Lock()
	s.current = loaded
	s.mu.Unlock()

	if loaded.ClientID == "" {
		err := s.Update(func(st *Settings) {
			st.ClientID = uuid.New().String()
		})
		if err != nil {
			return Settings{}, err
		}
	}

	return s.Get(), nil
}

// Get returns the in-memory settings.
func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Update applies fn to the current settings and persists the result.
func (s *Store) Update(fn func(*Settings)) error {
	s.mu.Lock()
	next := s.current
	fn(&next)
	next.Volume = clampVolume(next.Volume)
	s.current = next
	s.mu.Unlock()

	return s.write(next)
}

// Path returns the path to the settings file.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) read() (Settings, error) {
	st := Settings{Volume: DefaultVolume}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return st, nil
		}
		return Settings{}, fmt.Errorf("failed to read settings file: %w", err)
	}

	if _, err := toml.Decode(string(data), &st); err != nil {
		return Settings{}, fmt.Errorf("failed to parse settings file: %w", err)
	}
	st.Volume = clampVolume(st.Volume)
	return st, nil
}

func (s *Store) write(st Settings) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock settings file: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(st); err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace settings file: %w", err)
	}

	return nil
}

func clampVolume(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
