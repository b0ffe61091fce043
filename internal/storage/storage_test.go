package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

type doc struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

func open(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "storage"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return s
}

func TestStore_PutGet(t *testing.T) {
	s := open(t)
	ctx := context.Background()

	if err := s.Put(ctx, "items", "a", doc{Name: "a", Value: 1}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(s.Root(), "items", "a.json")); err != nil {
		t.Fatalf("document file missing: %v", err)
	}

	var got doc
	if err := s.Get(ctx, "items", "a", &got); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != (doc{Name: "a", Value: 1}) {
		t.Errorf("got %+v", got)
	}
}

func TestStore_GetNotFound(t *testing.T) {
	s := open(t)
	var got doc
	if err := s.Get(context.Background(), "items", "missing", &got); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_InvalidKeys(t *testing.T) {
	s := open(t)
	ctx := context.Background()
	for _, key := range []string{"", "..", "a/b", `a\b`} {
		if err := s.Put(ctx, "items", key, doc{}); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("Put(%q) error = %v", key, err)
		}
	}
	if _, err := s.Keys(ctx, "../x"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Keys with traversal error = %v", err)
	}
}

func TestStore_DeleteAndKeys(t *testing.T) {
	s := open(t)
	ctx := context.Background()

	keys, err := s.Keys(ctx, "items")
	if err != nil || len(keys) != 0 {
		t.Fatalf("empty collection keys = %v, %v", keys, err)
	}

	for _, k := range []string{"c", "a", "b"} {
		if err := s.Put(ctx, "items", k, doc{Name: k}); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Delete(ctx, "items", "b"); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "items", "b"); err != nil {
		t.Errorf("deleting twice should be a no-op: %v", err)
	}

	keys, err = s.Keys(ctx, "items")
	if err != nil {
		t.Fatal(err)
	}
	if fmt.Sprint(keys) != "[a c]" {
		t.Errorf("keys = %v", keys)
	}
}

func TestStore_EachAndDrop(t *testing.T) {
	s := open(t)
	ctx := context.Background()
	for i := 3; i > 0; i-- {
		s.Put(ctx, "items", fmt.Sprintf("k%d", i), doc{Value: i})
	}

	var values []int
	err := s.Each(ctx, "items", func(key string, raw json.RawMessage) error {
		var d doc
		if err := json.Unmarshal(raw, &d); err != nil {
			return err
		}
		values = append(values, d.Value)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if fmt.Sprint(values) != "[1 2 3]" {
		t.Errorf("values = %v", values)
	}

	stop := errors.New("stop")
	calls := 0
	err = s.Each(ctx, "items", func(string, json.RawMessage) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) || calls != 1 {
		t.Errorf("Each should stop at the first error: err=%v calls=%d", err, calls)
	}

	if err := s.Drop(ctx, "items"); err != nil {
		t.Fatal(err)
	}
	keys, _ := s.Keys(ctx, "items")
	if len(keys) != 0 {
		t.Errorf("keys after drop = %v", keys)
	}
}

func TestStore_ConcurrentPut(t *testing.T) {
	s := open(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := s.Put(ctx, "items", "shared", doc{Value: i}); err != nil {
				t.Errorf("Put failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	var got doc
	if err := s.Get(ctx, "items", "shared", &got); err != nil {
		t.Fatalf("document corrupted: %v", err)
	}
	if _, err := os.Stat(filepath.Join(s.Root(), "items", "shared.json.tmp")); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}
}
