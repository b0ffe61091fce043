// Package storage keeps JSON documents on disk, one file per key, grouped
// into collections (directories). Writes are atomic and serialized with an
// advisory lock so several agentcmd processes can share a data directory.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrInvalidKey = errors.New("invalid key")
)

const ext = ".json"

// Store is a directory of JSON collections.
type Store struct {
	root  string
	mu    sync.Mutex
	locks map[string]*fileLock
}

// Open creates the root directory if needed and returns a store over it.
func Open(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &Store{root: root, locks: make(map[string]*fileLock)}, nil
}

// Root returns the directory backing the store.
func (s *Store) Root() string {
	return s.root
}

func validKey(key string) error {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return fmt.Errorf("%q: %w", key, ErrInvalidKey)
	}
	return nil
}

func (s *Store) file(collection, key string) (string, error) {
	if err := validKey(collection); err != nil {
		return "", err
	}
	if err := validKey(key); err != nil {
		return "", err
	}
	return filepath.Join(s.root, collection, key+ext), nil
}

// Get decodes the document at collection/key into v.
func (s *Store) Get(ctx context.Context, collection, key string, v any) error {
	path, err := s.file(collection, key)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read %s/%s: %w", collection, key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s/%s: %w", collection, key, err)
	}
	return nil
}

// Put stores v at collection/key, replacing any previous document.
func (s *Store) Put(ctx context.Context, collection, key string, v any) error {
	path, err := s.file(collection, key)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, key, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create collection: %w", err)
	}

	lock := s.lockFor(path)
	if err := lock.acquire(); err != nil {
		return fmt.Errorf("lock %s/%s: %w", collection, key, err)
	}
	defer lock.release()

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write %s/%s: %w", collection, key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("commit %s/%s: %w", collection, key, err)
	}
	return nil
}

// Delete removes collection/key. Missing documents are not an error.
func (s *Store) Delete(ctx context.Context, collection, key string) error {
	path, err := s.file(collection, key)
	if err != nil {
		return err
	}
	lock := s.lockFor(path)
	if err := lock.acquire(); err != nil {
		return fmt.Errorf("lock %s/%s: %w", collection, key, err)
	}
	defer lock.release()

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %s/%s: %w", collection, key, err)
	}
	return nil
}

// Keys lists the documents of a collection in lexical order.
func (s *Store) Keys(ctx context.Context, collection string) ([]string, error) {
	if err := validKey(collection); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(filepath.Join(s.root, collection))
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}

	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ext) {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, ext))
	}
	sort.Strings(keys)
	return keys, nil
}

// Each calls fn with every document of a collection in key order. It stops
// at the first error fn returns or when ctx is done.
func (s *Store) Each(ctx context.Context, collection string, fn func(key string, raw json.RawMessage) error) error {
	keys, err := s.Keys(ctx, collection)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := os.ReadFile(filepath.Join(s.root, collection, key+ext))
		if err != nil {
			// Deleted between listing and reading.
			continue
		}
		if err := fn(key, data); err != nil {
			return err
		}
	}
	return nil
}

// Drop removes a whole collection.
func (s *Store) Drop(ctx context.Context, collection string) error {
	if err := validKey(collection); err != nil {
		return err
	}
	if err := os.RemoveAll(filepath.Join(s.root, collection)); err != nil {
		return fmt.Errorf("drop %s: %w", collection, err)
	}
	return nil
}

func (s *Store) lockFor(path string) *fileLock {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[path]
	if !ok {
		l = &fileLock{path: path + ".lock"}
		s.locks[path] = l
	}
	return l
}
