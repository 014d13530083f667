package kv

import (
	"context"
	"errors"
	"testing"
)

func replaceRegistry(t *testing.T) func() {
	t.Helper()
	prev := globalRegistry
	globalRegistry = newRegistry()
	return func() { globalRegistry = prev }
}

func TestRegisterResolveAndList(t *testing.T) {
	cleanup := replaceRegistry(t)
	defer cleanup()

	open := func(Options) (Backend, error) { return &stubBackend{}, nil }
	if err := Register(Driver{Key: "sqlite", AtomicBatch: true, Open: open}); err != nil {
		t.Fatalf("register sqlite failed: %v", err)
	}
	if err := Register(Driver{Key: "Redis", AtomicBatch: true, Open: open}); err != nil {
		t.Fatalf("register redis failed: %v", err)
	}

	if _, ok := Resolve("REDIS"); !ok {
		t.Fatalf("resolve should be case-insensitive")
	}
	keys := Keys()
	if len(keys) != 2 || keys[0] != "redis" || keys[1] != "sqlite" {
		t.Fatalf("unexpected order: %v", keys)
	}
}

func TestRegisterRejectsDuplicatesAndMissingOpen(t *testing.T) {
	cleanup := replaceRegistry(t)
	defer cleanup()

	open := func(Options) (Backend, error) { return &stubBackend{}, nil }
	if err := Register(Driver{Key: "file", Open: open}); err != nil {
		t.Fatalf("first registration should succeed: %v", err)
	}
	if err := Register(Driver{Key: "file", Open: open}); err == nil {
		t.Fatalf("duplicate registration should fail")
	}
	if err := Register(Driver{Key: "broken"}); err == nil {
		t.Fatalf("driver without Open should fail")
	}
}

func TestOpenWrapsWithInstrumentation(t *testing.T) {
	cleanup := replaceRegistry(t)
	defer cleanup()

	stub := &stubBackend{values: map[string][]byte{"a": []byte("1")}}
	MustRegister(Driver{Key: "stub", Open: func(Options) (Backend, error) { return stub, nil }})

	backend, err := Open("stub", Options{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, ok := backend.(*instrumentedBackend); !ok {
		t.Fatalf("expected instrumented backend, got %T", backend)
	}
	value, err := backend.Get(context.Background(), "a")
	if err != nil || string(value) != "1" {
		t.Fatalf("instrumented get should delegate, got %q (%v)", value, err)
	}
	if _, err := Open("missing", Options{}); err == nil {
		t.Fatalf("unknown driver should fail")
	}
}

func TestUnavailableKeepsBothErrors(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := Unavailable("get", cause)
	if !errors.Is(err, ErrUnavailable) || !errors.Is(err, cause) {
		t.Fatalf("wrapped error should match both sentinel and cause: %v", err)
	}
}

// stubBackend 是内存实现，pingErrs 依次作为 Ping 的返回值。
type stubBackend struct {
	values   map[string][]byte
	pingErrs []error
	pings    int
}

func (s *stubBackend) Get(_ context.Context, key string) ([]byte, error) {
	if v, ok := s.values[key]; ok {
		return v, nil
	}
	return nil, ErrNotFound
}

func (s *stubBackend) Set(_ context.Context, key string, value []byte) error {
	if s.values == nil {
		s.values = map[string][]byte{}
	}
	s.values[key] = value
	return nil
}

func (s *stubBackend) Apply(ctx context.Context, batch Batch) error {
	for _, e := range batch.Set {
		_ = s.Set(ctx, e.Key, e.Value)
	}
	for _, k := range batch.Delete {
		delete(s.values, k)
	}
	return nil
}

func (s *stubBackend) Ping(context.Context) error {
	s.pings++
	if len(s.pingErrs) == 0 {
		return nil
	}
	err := s.pingErrs[0]
	s.pingErrs = s.pingErrs[1:]
	return err
}

func (s *stubBackend) Close() error { return nil }
