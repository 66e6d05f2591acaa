package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const localExt = ".val"

// LocalStore keeps one file per key under a single directory. Files are
// named by the SHA-256 of the key so any key fits the file system's name
// limit; the key itself is kept inside the record. Every call completes
// synchronously; ctx is accepted only to satisfy Backend.
type LocalStore struct {
	mu  sync.RWMutex
	dir string
}

type localRecord struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create local store dir: %w", err)
	}
	return &LocalStore{dir: dir}, nil
}

func (s *LocalStore) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, err := s.read(s.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", err
	}
	if rec.Key != key {
		return "", ErrNotFound
	}
	return rec.Value, nil
}

func (s *LocalStore) Set(_ context.Context, key, value string) error {
	data, err := json.Marshal(localRecord{Key: key, Value: value})
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path(key))
}

func (s *LocalStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *LocalStore) Keys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, localExt) {
			continue
		}
		rec, err := s.read(filepath.Join(s.dir, name))
		if err != nil {
			// removed or rewritten by someone else since ReadDir
			continue
		}
		keys = append(keys, rec.Key)
	}
	return keys, nil
}

func (s *LocalStore) read(path string) (localRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return localRecord{}, err
	}
	var rec localRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return localRecord{}, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return rec, nil
}

func (s *LocalStore) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(s.dir, hex.EncodeToString(sum[:])+localExt)
}
