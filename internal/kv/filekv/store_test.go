package filekv

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/yang-catalog/catalog-cache/internal/kv"
)

func TestStoreSetAndGet(t *testing.T) {
	store := newTestStore(t)
	key := "yang-catalog@2018-04-03/ietf"

	if err := store.Set(context.Background(), key, []byte(`{"name":"yang-catalog"}`)); err != nil {
		t.Fatalf("set error: %v", err)
	}
	value, err := store.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("get error: %v", err)
	}
	if string(value) != `{"name":"yang-catalog"}` {
		t.Fatalf("value mismatch: %s", value)
	}

	entries, err := os.ReadDir(store.basePath)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 || entries[0].IsDir() {
		t.Fatalf("key with slash should map to a single flat file, got %v", entries)
	}
}

func TestStoreGetMissing(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Get(context.Background(), "missing@2020-01-01/x"); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreApplySetsAndDeletes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if err := store.Set(ctx, "stale", []byte("old")); err != nil {
		t.Fatalf("set error: %v", err)
	}

	batch := kv.Batch{
		Set:    []kv.Entry{{Key: "a", Value: []byte("1")}, {Key: "b", Value: []byte("2")}},
		Delete: []string{"stale", "never-existed"},
	}
	if err := store.Apply(ctx, batch); err != nil {
		t.Fatalf("apply error: %v", err)
	}
	for _, key := range []string{"a", "b"} {
		if _, err := store.Get(ctx, key); err != nil {
			t.Fatalf("expected %s to exist: %v", key, err)
		}
	}
	if _, err := store.Get(ctx, "stale"); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("stale key should be removed, got %v", err)
	}
}

func TestStoreApplyReportsPartialBatch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	batch := kv.Batch{Set: []kv.Entry{
		{Key: "a", Value: []byte("1")},
		{Key: "", Value: []byte("2")},
		{Key: "b", Value: []byte("3")},
	}}
	err := store.Apply(ctx, batch)
	var partial *kv.PartialApplyError
	if !errors.As(err, &partial) {
		t.Fatalf("expected PartialApplyError, got %v", err)
	}
	if partial.Applied != 1 {
		t.Fatalf("expected 1 applied entry, got %d", partial.Applied)
	}
	if _, err := store.Get(ctx, "a"); err != nil {
		t.Fatalf("entry before the failure should be visible: %v", err)
	}
	if _, err := store.Get(ctx, "b"); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("entry after the failure should not be written, got %v", err)
	}
}

func TestStoreIgnoresDirectories(t *testing.T) {
	store := newTestStore(t)
	filePath, err := store.entryPath("dir")
	if err != nil {
		t.Fatalf("path error: %v", err)
	}
	if err := os.MkdirAll(filePath, 0o755); err != nil {
		t.Fatalf("mkdir error: %v", err)
	}
	if _, err := store.Get(context.Background(), "dir"); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for directory, got %v", err)
	}
}

func TestStorePingFailsWhenRootRemoved(t *testing.T) {
	root := filepath.Join(t.TempDir(), "kv")
	store, err := NewStore(root)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("ping should succeed: %v", err)
	}
	if err := os.RemoveAll(root); err != nil {
		t.Fatalf("remove root: %v", err)
	}
	if err := store.Ping(context.Background()); !errors.Is(err, kv.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestDriverRegistered(t *testing.T) {
	driver, ok := kv.Resolve("file")
	if !ok {
		t.Fatalf("file driver should be registered")
	}
	if driver.AtomicBatch {
		t.Fatalf("file driver must not advertise atomic batches")
	}
}

// newTestStore returns a Store backed by a temporary directory.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store
}
