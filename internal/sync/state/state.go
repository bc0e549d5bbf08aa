// Package state persists per-book synckey cursors between runs. The cursors
// are a fetch optimization only; the markers embedded in each issue body
// remain the dedup authority.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	// CurrentVersion is the current version of the sync state format
	CurrentVersion = "1.0"
	// DefaultStateFile is the default path for the sync state file
	DefaultStateFile = "./data/sync_state.json"
	// ZeroSynckey requests a stream from the beginning
	ZeroSynckey = "0"
)

// State is the on-disk sync state
type State struct {
	Version  string          `json:"version"`
	LastSync int64           `json:"lastSync"`
	Books    map[string]Book `json:"books,omitempty"`
	mu       sync.RWMutex
}

// Book holds the two independent stream cursors for one book
type Book struct {
	HighlightsSynckey string `json:"highlightsSynckey"`
	ThoughtsSynckey   string `json:"thoughtsSynckey"`
	LastSync          int64  `json:"lastSync"`
}

// NewState creates a new empty state with the current version
func NewState() *State {
	return &State{
		Version: CurrentVersion,
		Books:   make(map[string]Book),
	}
}

// LoadState loads the sync state from a file. A missing file yields a fresh
// zero-cursor state, which is saved immediately to verify the directory is
// writable.
func LoadState(path string) (*State, error) {
	if path == "" {
		path = DefaultStateFile
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			state := NewState()
			if err := state.Save(path); err != nil {
				return nil, fmt.Errorf("failed to initialize state file at %q: %w", path, err)
			}
			return state, nil
		}
		return nil, fmt.Errorf("failed to read state file at %q: %w", path, err)
	}

	state := &State{Books: make(map[string]Book)}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("invalid state file format: %w", err)
	}
	if state.Books == nil {
		state.Books = make(map[string]Book)
	}
	if state.Version == "" {
		state.Version = CurrentVersion
	}

	return state, nil
}

// Save writes the state atomically via a temp file in the target directory
func (s *State) Save(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if path == "" {
		path = DefaultStateFile
	}

	targetDir := filepath.Dir(path)
	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(targetDir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %q: %w", targetDir, err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		tmpFile.Close()
		os.Remove(tmpPath)
	}()

	encoder := json.NewEncoder(tmpFile)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(s); err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync state file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file to %q: %w", path, err)
	}

	return nil
}

// GetBook returns the cursors for a book, defaulting to zero cursors when
// the book has never been synced. It never fails.
func (s *State) GetBook(bookID string) Book {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if book, exists := s.Books[bookID]; exists {
		if book.HighlightsSynckey == "" {
			book.HighlightsSynckey = ZeroSynckey
		}
		if book.ThoughtsSynckey == "" {
			book.ThoughtsSynckey = ZeroSynckey
		}
		return book
	}
	return Book{
		HighlightsSynckey: ZeroSynckey,
		ThoughtsSynckey:   ZeroSynckey,
	}
}

// UpdateBook overwrites a book's cursors after a successful fetch. Empty
// cursors keep the previous value, so a failed stream never resets progress.
func (s *State) UpdateBook(bookID, highlightsSynckey, thoughtsSynckey string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().Unix()

	book := s.Books[bookID]
	if highlightsSynckey != "" {
		book.HighlightsSynckey = highlightsSynckey
	}
	if thoughtsSynckey != "" {
		book.ThoughtsSynckey = thoughtsSynckey
	}
	book.LastSync = now

	s.Books[bookID] = book
	s.LastSync = now
}
