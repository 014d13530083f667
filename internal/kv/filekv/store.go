// Package filekv 把每个键保存为 <Address>/<escaped key> 文件，写入通过临时文件 + rename
// 保证单键原子性。适合单机部署与测试，批量写入不提供跨键原子性。
package filekv

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/yang-catalog/catalog-cache/internal/kv"
)

func init() {
	kv.MustRegister(kv.Driver{
		Key:         "file",
		Description: "Directory backend storing one file per key (single-host, best-effort batches)",
		AtomicBatch: false,
		Open: func(opts kv.Options) (kv.Backend, error) {
			return NewStore(opts.Address)
		},
	})
}

// NewStore 以 basePath 为根目录构建文件后端，整进程复用一份实例。
func NewStore(basePath string) (*Store, error) {
	if basePath == "" {
		return nil, errors.New("storage path required")
	}

	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve storage path: %w", err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage path: %w", err)
	}

	return &Store{
		basePath: abs,
		locks:    make(map[string]*entryLock),
	}, nil
}

// Store 通过 entryLock 避免同一键并发写入。
type Store struct {
	basePath string

	mu    sync.Mutex
	locks map[string]*entryLock
}

type entryLock struct {
	mu   sync.Mutex
	refs int
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, kv.Unavailable("get", err)
	}

	filePath, err := s.entryPath(key)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, kv.ErrNotFound
		}
		return nil, kv.Unavailable("get", err)
	}
	if info.IsDir() {
		return nil, kv.ErrNotFound
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, kv.ErrNotFound
		}
		return nil, kv.Unavailable("get", err)
	}
	return data, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return kv.Unavailable("set", err)
	}
	unlock := s.lockEntry(key)
	defer unlock()

	filePath, err := s.entryPath(key)
	if err != nil {
		return err
	}

	tempFile, err := os.CreateTemp(s.basePath, ".kv-*")
	if err != nil {
		return kv.Unavailable("set", err)
	}
	tempName := tempFile.Name()

	_, err = tempFile.Write(value)
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempName)
		return kv.Unavailable("set", err)
	}

	if err := os.Rename(tempName, filePath); err != nil {
		os.Remove(tempName)
		return kv.Unavailable("set", err)
	}
	return nil
}

// Apply 依次写入与删除；中途失败时已完成的部分保持可见。
func (s *Store) Apply(ctx context.Context, batch kv.Batch) error {
	for i, entry := range batch.Set {
		if err := s.Set(ctx, entry.Key, entry.Value); err != nil {
			return &kv.PartialApplyError{Applied: i, Err: err}
		}
	}
	for _, key := range batch.Delete {
		if err := s.remove(key); err != nil {
			return &kv.PartialApplyError{Applied: len(batch.Set), Err: err}
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return kv.Unavailable("ping", err)
	}
	info, err := os.Stat(s.basePath)
	if err != nil {
		return kv.Unavailable("ping", err)
	}
	if !info.IsDir() {
		return kv.Unavailable("ping", fmt.Errorf("%s is not a directory", s.basePath))
	}
	return nil
}

func (s *Store) Close() error {
	return nil
}

func (s *Store) remove(key string) error {
	unlock := s.lockEntry(key)
	defer unlock()

	filePath, err := s.entryPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(filePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return kv.Unavailable("delete", err)
	}
	return nil
}

func (s *Store) lockEntry(key string) func() {
	s.mu.Lock()
	lock := s.locks[key]
	if lock == nil {
		lock = &entryLock{}
		s.locks[key] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		s.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(s.locks, key)
		}
		s.mu.Unlock()
	}
}

// entryPath 将键转义为单个文件名，键中的 "/" 不会产生子目录。
func (s *Store) entryPath(key string) (string, error) {
	if key == "" {
		return "", errors.New("key required")
	}
	name := url.PathEscape(key)
	if name == "." || name == ".." {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(s.basePath, name), nil
}
