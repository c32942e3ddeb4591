package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"lanchat/internal/models"
)

const (
	roomsFileName     = "rooms.json"
	nicknamesFileName = "nicknames.json"
)

// FileStore keeps rooms and nicknames as JSON documents in a directory.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) LoadRooms(_ context.Context) (map[string]*models.Room, error) {
	rooms := make(map[string]*models.Room)
	if err := s.readJSON(roomsFileName, &rooms); err != nil {
		return nil, err
	}
	if rooms == nil {
		rooms = make(map[string]*models.Room)
	}
	return rooms, nil
}

func (s *FileStore) SaveRooms(_ context.Context, rooms map[string]*models.Room) error {
	return s.writeJSON(roomsFileName, rooms)
}

func (s *FileStore) LoadNicknames(_ context.Context) (map[string][]string, error) {
	nicknames := make(map[string][]string)
	if err := s.readJSON(nicknamesFileName, &nicknames); err != nil {
		return nil, err
	}
	if nicknames == nil {
		nicknames = make(map[string][]string)
	}
	return nicknames, nil
}

func (s *FileStore) SaveNicknames(_ context.Context, nicknames map[string][]string) error {
	return s.writeJSON(nicknamesFileName, nicknames)
}

// readJSON leaves v untouched when the file is missing or empty.
func (s *FileStore) readJSON(name string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return nil
}

func (s *FileStore) writeJSON(name string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}
	return nil
}
