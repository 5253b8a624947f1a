package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/rmax-ai/bookgraph/pkg/cache/cachetest"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { client.Close() })

	return NewStore(client, ""), mr
}

func TestRedisStore(t *testing.T) {
	store, _ := newTestStore(t)
	cachetest.RunBackendTests(t, store)
}

func TestRedisStoreKeyLayout(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, "bookgraph:graph", []byte(`{"payload":{}}`)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := mr.Get(DefaultPrefix + "bookgraph:graph")
	if err != nil {
		t.Fatalf("expected prefixed key in redis: %v", err)
	}
	if got != `{"payload":{}}` {
		t.Errorf("unexpected value %q", got)
	}

	members, err := mr.ZMembers(DefaultPrefix + "index")
	if err != nil {
		t.Fatalf("expected index sorted set: %v", err)
	}
	if len(members) != 1 || members[0] != DefaultPrefix+"bookgraph:graph" {
		t.Errorf("unexpected index members %v", members)
	}

	if err := store.Delete(ctx, "bookgraph:graph"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if mr.Exists(DefaultPrefix + "bookgraph:graph") {
		t.Error("key should be gone after Delete")
	}
}

func TestRedisStoreUnavailable(t *testing.T) {
	store, mr := newTestStore(t)
	mr.Close()

	if _, _, err := store.Get(context.Background(), "k"); err == nil {
		t.Error("expected error when redis is down")
	}
	if err := store.Put(context.Background(), "k", []byte("v")); err == nil {
		t.Error("expected error when redis is down")
	}
}
