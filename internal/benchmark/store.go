package benchmark

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Store persists benchmark sessions.
type Store interface {
	Save(s Session) error
	Load(uid string) (*Session, error)
	LoadLatest() (*Session, error)
	LoadAll() ([]Session, error)
}

// FileStore keeps one JSON file per session, named <uid>.json.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Path returns the file a session is stored in.
func (s *FileStore) Path(uid string) string {
	return filepath.Join(s.dir, uid+".json")
}

func (s *FileStore) Save(session Session) error {
	if session.UID == "" {
		return fmt.Errorf("session has no uid")
	}
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	return os.WriteFile(s.Path(session.UID), data, 0644)
}

func (s *FileStore) Load(uid string) (*Session, error) {
	return LoadSessionFile(s.Path(uid))
}

// LoadSessionFile reads a session saved by a FileStore.
func LoadSessionFile(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session %s: %w", path, err)
	}
	return &session, nil
}

func (s *FileStore) LoadAll() ([]Session, error) {
	paths, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return nil, err
	}

	sessions := []Session{}
	for _, p := range paths {
		session, err := LoadSessionFile(p)
		if err != nil {
			// Other JSON files (build event logs) may share the directory.
			continue
		}
		if session.UID == "" {
			continue
		}
		sessions = append(sessions, *session)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartedAt.Before(sessions[j].StartedAt)
	})
	return sessions, nil
}

func (s *FileStore) LoadLatest() (*Session, error) {
	sessions, err := s.LoadAll()
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, nil
	}
	return &sessions[len(sessions)-1], nil
}
