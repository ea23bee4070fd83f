package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileStore keeps the secret in a small JSON file on local disk.
type FileStore struct {
	mu   sync.Mutex
	path string
}

type fileRecord struct {
	Values map[string]string `json:"values"`
}

func NewFileStore(path string) (*FileStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("credential file path must not be empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create credential dir: %w", err)
		}
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) Get(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.read()
	if err != nil {
		return "", err
	}
	secret, ok := rec.Values[Key]
	if !ok || secret == "" {
		return "", ErrNotFound
	}
	return secret, nil
}

func (s *FileStore) Save(_ context.Context, secret string) error {
	if strings.TrimSpace(secret) == "" {
		return ErrEmptySecret
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.read()
	if err != nil {
		return err
	}
	rec.Values[Key] = secret
	return s.write(rec)
}

func (s *FileStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.read()
	if err != nil {
		return err
	}
	delete(rec.Values, Key)
	return s.write(rec)
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) read() (fileRecord, error) {
	rec := fileRecord{Values: make(map[string]string)}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return rec, nil
	}
	if err != nil {
		return rec, fmt.Errorf("read credential file: %w", err)
	}
	if len(data) == 0 {
		return rec, nil
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("parse credential file: %w", err)
	}
	if rec.Values == nil {
		rec.Values = make(map[string]string)
	}
	return rec, nil
}

func (s *FileStore) write(rec fileRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	// Write-then-rename keeps the file whole if the process dies mid-write.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write credential file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace credential file: %w", err)
	}
	return nil
}
