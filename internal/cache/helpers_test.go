package cache

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/yang-catalog/catalog-cache/internal/catalog"
	"github.com/yang-catalog/catalog-cache/internal/kv"
	"github.com/yang-catalog/catalog-cache/internal/kv/filekv"
)

func newTestBackend(t *testing.T) kv.Backend {
	t.Helper()
	store, err := filekv.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("filekv.NewStore: %v", err)
	}
	return store
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func mustDescriptor(t *testing.T, name, revision, organization string, extra map[string]interface{}) catalog.ModuleDescriptor {
	t.Helper()
	d, err := catalog.NewDescriptor(name, revision, organization, extra)
	if err != nil {
		t.Fatalf("NewDescriptor: %v", err)
	}
	return d
}

// downBackend 模拟不可达的后端，所有调用都返回 kv.ErrUnavailable。
type downBackend struct{}

var errConnRefused = errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")

func (downBackend) Get(context.Context, string) ([]byte, error) {
	return nil, kv.Unavailable("get", errConnRefused)
}

func (downBackend) Set(context.Context, string, []byte) error {
	return kv.Unavailable("set", errConnRefused)
}

func (downBackend) Apply(context.Context, kv.Batch) error {
	return kv.Unavailable("apply", errConnRefused)
}

func (downBackend) Ping(context.Context) error {
	return kv.Unavailable("ping", errConnRefused)
}

func (downBackend) Close() error { return nil }

// countingBackend 包装真实后端并记录 Apply 次数。
type countingBackend struct {
	kv.Backend
	applies int
	sets    int
}

func (c *countingBackend) Set(ctx context.Context, key string, value []byte) error {
	c.sets++
	return c.Backend.Set(ctx, key, value)
}

func (c *countingBackend) Apply(ctx context.Context, batch kv.Batch) error {
	c.applies++
	return c.Backend.Apply(ctx, batch)
}

// flakyBackend 在 failApply 为 true 时让 Apply 返回 kv.ErrUnavailable。
type flakyBackend struct {
	kv.Backend
	failApply bool
}

func (f *flakyBackend) Apply(ctx context.Context, batch kv.Batch) error {
	if f.failApply {
		return kv.Unavailable("apply", errConnRefused)
	}
	return f.Backend.Apply(ctx, batch)
}

// partialBackend 写入前 limit 条后中断，模拟非事务后端在批次中途失败。
type partialBackend struct {
	kv.Backend
	limit int
}

func (p *partialBackend) Apply(ctx context.Context, batch kv.Batch) error {
	for i, entry := range batch.Set {
		if i == p.limit {
			return &kv.PartialApplyError{Applied: i, Err: kv.Unavailable("set", errConnRefused)}
		}
		if err := p.Backend.Set(ctx, entry.Key, entry.Value); err != nil {
			return err
		}
	}
	return nil
}
