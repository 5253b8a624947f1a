package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rmax-ai/bookgraph/pkg/cache"
	"github.com/rmax-ai/bookgraph/pkg/cache/cachetest"
)

// setupTestStore creates a temporary database for testing
func setupTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "bookgraph.db")
	store, err := NewStore(dbPath)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, dbPath
}

func TestNewStore(t *testing.T) {
	store, dbPath := setupTestStore(t)

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Errorf("database file was not created at %s", dbPath)
	}

	var tableName string
	err := store.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='cache_entries'").Scan(&tableName)
	if err != nil {
		t.Fatalf("failed to query sqlite_master for cache_entries table: %v", err)
	}

	var indexName string
	err = store.db.QueryRow("SELECT name FROM sqlite_master WHERE type='index' AND name='idx_cache_entries_updated_at'").Scan(&indexName)
	if err != nil {
		t.Errorf("idx_cache_entries_updated_at not found: %v", err)
	}
}

func TestStoreBackend(t *testing.T) {
	store, _ := setupTestStore(t)
	cachetest.RunBackendTests(t, store)
}

func TestStoreSurvivesReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "bookgraph.db")
	ctx := context.Background()

	first, err := NewStore(dbPath)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	pc := cache.NewPersistentCache(first, nil)
	pc.Save(ctx, cache.GraphScope, map[string]string{"k": "v"})
	first.Close()

	second, err := NewStore(dbPath)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer second.Close()

	var out map[string]string
	if _, ok := cache.NewPersistentCache(second, nil).LoadIfValid(ctx, cache.GraphScope, &out, 0); !ok {
		t.Fatal("expected entry to survive reopening the database")
	}
	if out["k"] != "v" {
		t.Errorf("expected k=v, got %v", out)
	}
}
