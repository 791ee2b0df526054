// Package settings persists values that moderators change at runtime
// through slash commands, such as the notice message IDs that grant roles.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/tidwall/jsonc"
)

// Keys understood by the bot.
const (
	MemberNoticeMessageID = "MEMBER_NOTICE_MESSAGE_ID"
	GuestNoticeMessageID  = "GUEST_NOTICE_MESSAGE_ID"
	ErrorChannelID        = "ERROR_CHANNEL_ID"
)

// Store is a flat string map backed by a JSON file. The file may contain
// comments; writes replace it with plain indented JSON.
type Store struct {
	mu   sync.Mutex
	path string
}

// Open returns a Store for path. The file is created on first Set.
func Open(path string) *Store {
	return &Store{path: path}
}

// Get returns the value for key, or "" when unset or unreadable.
func (s *Store) Get(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, err := s.load()
	if err != nil {
		return ""
	}
	return values[key]
}

// All returns a copy of every stored value.
func (s *Store) All() (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Set stores value under key and rewrites the file.
func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return err
	}
	values[key] = value

	data, err := json.MarshalIndent(values, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace settings file %s: %w", filepath.Base(s.path), err)
	}
	return nil
}

func (s *Store) load() (map[string]string, error) {
	values := make(map[string]string)
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return values, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(jsonc.ToJSON(data), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse settings %s: %w", s.path, err)
	}
	for k, v := range raw {
		switch v := v.(type) {
		case string:
			values[k] = v
		case float64:
			// IDs hand-written as numbers lose precision past 2^53; keep what survived.
			values[k] = fmt.Sprintf("%.0f", v)
		default:
			values[k] = fmt.Sprint(v)
		}
	}
	return values, nil
}
