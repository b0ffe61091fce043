// Package memory stores text the agent should remember, such as chunks
// produced by ingest_file.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/opencode-ai/agentcmd/internal/storage"
	"github.com/rs/zerolog/log"
)

const collection = "memory"

// Entry is one remembered text.
type Entry struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store keeps entries in a storage collection keyed by ULID, so listing
// returns them in insertion order.
type Store struct {
	db *storage.Store
}

// New wraps db.
func New(db *storage.Store) *Store {
	return &Store{db: db}
}

// Add remembers text and returns its id.
func (s *Store) Add(ctx context.Context, text string) (string, error) {
	e := Entry{ID: ulid.Make().String(), Text: text, CreatedAt: time.Now().UTC()}
	if err := s.db.Put(ctx, collection, e.ID, e); err != nil {
		return "", fmt.Errorf("add memory: %w", err)
	}
	log.Debug().Str("id", e.ID).Int("length", len(text)).Msg("memory added")
	return e.ID, nil
}

// Get returns one entry; storage.ErrNotFound when absent.
func (s *Store) Get(ctx context.Context, id string) (Entry, error) {
	var e Entry
	err := s.db.Get(ctx, collection, id, &e)
	return e, err
}

// List returns every entry, oldest first.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	entries := []Entry{}
	err := s.db.Each(ctx, collection, func(key string, raw json.RawMessage) error {
		var e Entry
		if err := json.Unmarshal(raw, &e); err != nil {
			log.Warn().Str("id", key).Err(err).Msg("skipping unreadable memory")
			return nil
		}
		entries = append(entries, e)
		return nil
	})
	return entries, err
}

// Search returns entries containing every word of query, case-insensitively.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]Entry, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	words := strings.Fields(strings.ToLower(query))
	var hits []Entry
	for _, e := range all {
		text := strings.ToLower(e.Text)
		match := true
		for _, w := range words {
			if !strings.Contains(text, w) {
				match = false
				break
			}
		}
		if match {
			hits = append(hits, e)
			if limit > 0 && len(hits) == limit {
				break
			}
		}
	}
	return hits, nil
}

// Clear forgets everything.
func (s *Store) Clear(ctx context.Context) error {
	return s.db.Drop(ctx, collection)
}
