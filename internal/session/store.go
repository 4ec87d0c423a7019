// Package session persists the controller's conversational state between runs.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/turnpilot/internal/codec"
	"github.com/danielpatrickdp/turnpilot/internal/notes"
)

// #region types

// HistoryLimit bounds the number of history messages kept.
const HistoryLimit = 20

const formatVersion = 1

// Features are the per-session toggles.
type Features struct {
	Screenshot bool `json:"screenshot"`
	Thinking   bool `json:"thinking"`
}

// State is everything written to the session file.
type State struct {
	Version     int             `json:"version"`
	SessionID   string          `json:"session_id"`
	Model       string          `json:"model"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
	Features    Features        `json:"features"`
	History     []codec.Message `json:"history"`
	Notes       []notes.Note    `json:"notes"`
	NextNoteID  int             `json:"next_note_id"`
	TurnCount   int             `json:"turn_count"`
	SavedAt     time.Time       `json:"saved_at"`
}

// Default returns a fresh session.
func Default() State {
	return State{
		Version:    formatVersion,
		SessionID:  uuid.NewString(),
		NextNoteID: 1,
	}
}

// Bound trims history and notes to their limits. History never starts with
// an assistant message.
func Bound(st State) State {
	if n := len(st.History); n > HistoryLimit {
		st.History = append([]codec.Message(nil), st.History[n-HistoryLimit:]...)
	}
	for len(st.History) > 0 && st.History[0].Role != codec.RoleUser {
		st.History = st.History[1:]
	}
	if n := len(st.Notes); n > notes.Capacity {
		st.Notes = append([]notes.Note(nil), st.Notes[n-notes.Capacity:]...)
	}
	if st.NextNoteID < 1 {
		st.NextNoteID = 1
	}
	return st
}

// #endregion types

// #region store

// Store reads and writes one session file.
type Store struct {
	path string
	log  *zap.Logger
	now  func() time.Time
}

// NewStore returns a store for path.
func NewStore(path string, log *zap.Logger) *Store {
	return &Store{path: path, log: log.Named("session"), now: time.Now}
}

// Path returns the session file location.
func (s *Store) Path() string { return s.path }

// Load returns the saved session, or a fresh one when the file is missing
// or unreadable.
func (s *Store) Load() State {
	st, err := s.Read()
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.log.Warn("session unreadable, starting fresh", zap.String("path", s.path), zap.Error(err))
		}
		return Default()
	}
	return st
}

// Read loads the session file without falling back.
func (s *Store) Read() (State, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return State{}, fmt.Errorf("read session: %w", err)
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, fmt.Errorf("decode session: %w", err)
	}
	if st.SessionID == "" {
		st.SessionID = uuid.NewString()
	}
	st.Version = formatVersion
	return Bound(st), nil
}

// Save writes st, logging instead of returning failures.
func (s *Store) Save(st State) {
	if err := s.Write(st); err != nil {
		s.log.Error("session save failed", zap.String("path", s.path), zap.Error(err))
	}
}

// Write atomically replaces the session file with st.
func (s *Store) Write(st State) error {
	st = Bound(st)
	st.Version = formatVersion
	st.SavedAt = s.now().UTC()

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".session-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace session: %w", err)
	}
	return nil
}

// #endregion store
