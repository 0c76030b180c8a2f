package batch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// State tracks progress for resumable batch runs.
type State struct {
	StartedAt       time.Time `json:"started_at"`
	LastProcessedAt time.Time `json:"last_processed_at"`
	Processed       []string  `json:"processed"`
	Errors          []string  `json:"errors"`

	path string
	seen map[string]bool
}

// LoadState loads the state file at path, or starts a new one.
func LoadState(path string) (*State, error) {
	s := &State{path: path, seen: make(map[string]bool)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.StartedAt = time.Now().UTC()
			return s, nil
		}
		return nil, fmt.Errorf("read state: %w", err)
	}

	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}
	for _, id := range s.Processed {
		s.seen[id] = true
	}
	return s, nil
}

// Save writes the state through a temp file so a crash never leaves it truncated.
func (s *State) Save() error {
	s.LastProcessedAt = time.Now().UTC()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return os.Rename(tmp, s.path)
}

// IsProcessed reports whether the ticket id has already been triaged.
func (s *State) IsProcessed(id string) bool {
	return s.seen[id]
}

func (s *State) MarkProcessed(id string) {
	if s.seen[id] {
		return
	}
	s.seen[id] = true
	s.Processed = append(s.Processed, id)
}

func (s *State) AddError(msg string) {
	s.Errors = append(s.Errors, msg)
}
