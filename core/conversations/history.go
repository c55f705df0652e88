package conversations

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"
)

// History receives turns once they are delivered. Implementations own the
// stored turns; callers never mutate what they appended.
type History interface {
	AppendCompletedTurn(turn Turn) error
}

// MemoryHistory keeps turns in memory.
type MemoryHistory struct {
	mu    sync.Mutex
	turns []Turn
}

func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{}
}

func (h *MemoryHistory) AppendCompletedTurn(turn Turn) error {
	stored, err := CloneTurn(turn)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = append(h.turns, stored)
	return nil
}

// Turns returns the stored turns, oldest first.
func (h *MemoryHistory) Turns() []Turn {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.turns)
}

func (h *MemoryHistory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.turns)
}

// FileHistory is a MemoryHistory that rewrites a JSON session file after
// every append.
type FileHistory struct {
	MemoryHistory

	path      string
	profile   Profile
	startedAt time.Time
	writeMu   sync.Mutex
}

type sessionFile struct {
	StartedAt time.Time `json:"started_at"`
	SavedAt   time.Time `json:"saved_at"`
	Profile   Profile   `json:"profile,omitzero"`
	Turns     []Turn    `json:"turns"`
}

// OpenFileHistory loads path when it exists so a session can be resumed.
func OpenFileHistory(path string, profile Profile) (*FileHistory, error) {
	h := &FileHistory{path: path, profile: profile, startedAt: time.Now()}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		return h, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read history %s: %w", path, err)
	}

	var file sessionFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse history %s: %w", path, err)
	}
	h.turns = file.Turns
	if !file.StartedAt.IsZero() {
		h.startedAt = file.StartedAt
	}
	if profile.IsZero() {
		h.profile = file.Profile
	}
	return h, nil
}

func (h *FileHistory) Path() string {
	return h.path
}

// ProfileSnapshot returns the profile stored with the session, so a resumed
// session is personalized like the one it continues.
func (h *FileHistory) ProfileSnapshot() Profile {
	return StaticProfile(h.profile).ProfileSnapshot()
}

func (h *FileHistory) AppendCompletedTurn(turn Turn) error {
	if err := h.MemoryHistory.AppendCompletedTurn(turn); err != nil {
		return err
	}
	return h.Save()
}

// Save writes the session file atomically.
func (h *FileHistory) Save() error {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	data, err := json.MarshalIndent(sessionFile{
		StartedAt: h.startedAt,
		SavedAt:   time.Now(),
		Profile:   h.profile,
		Turns:     h.Turns(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	if dir := filepath.Dir(h.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create history directory: %w", err)
		}
	}
	tmp := h.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	if err := os.Rename(tmp, h.path); err != nil {
		return fmt.Errorf("failed to replace history: %w", err)
	}
	return nil
}
