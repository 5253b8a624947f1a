package blob

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rmax-ai/bookgraph/pkg/cache/cachetest"
)

func TestFileStore(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	cachetest.RunBackendTests(t, store)
}

func TestFileStoreLayout(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "cache")
	store, err := NewFileStore(root)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	ctx := context.Background()

	if err := store.Put(ctx, "bookgraph:recommendations:alice", []byte("[]")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Put(ctx, "bookgraph:graph", []byte("{}")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 files and no leftover temp files, got %d", len(entries))
	}

	keys, err := store.List(ctx, "bookgraph:recommendations:")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(keys) != 1 || keys[0] != "bookgraph:recommendations:alice" {
		t.Errorf("unexpected keys %v", keys)
	}
}

func TestFileStorePruneUsesModTime(t *testing.T) {
	root := t.TempDir()
	store, err := NewFileStore(root)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	ctx := context.Background()

	_ = store.Put(ctx, "old", []byte("1"))
	_ = store.Put(ctx, "new", []byte("2"))
	past := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(store.path("old"), past, past); err != nil {
		t.Fatalf("Chtimes failed: %v", err)
	}

	n, err := store.Prune(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 pruned entry, got %d", n)
	}
	if _, ok, _ := store.Get(ctx, "new"); !ok {
		t.Error("recent entry should survive pruning")
	}
}
