package loader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/sirupsen/logrus"
)

// lockRetryInterval 是两次尝试获取文件锁之间的间隔。
const lockRetryInterval = 50 * time.Millisecond

// ErrLocked 表示在超时前未能获得加载锁，另一个加载器正在运行。
var ErrLocked = errors.New("another loader holds the lock")

// Lock 是跨进程的加载器互斥锁。
type Lock struct {
	fl *flock.Flock
}

// AcquireLock 在 timeout 内获取 path 上的排他文件锁；timeout <= 0 时只尝试一次。
func AcquireLock(ctx context.Context, path string, timeout time.Duration) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	fl := flock.New(path)

	if timeout <= 0 {
		locked, err := fl.TryLock()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", path, err)
		}
		if !locked {
			return nil, fmt.Errorf("%w: %s", ErrLocked, path)
		}
		return &Lock{fl: fl}, nil
	}

	lockCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	locked, err := fl.TryLockContext(lockCtx, lockRetryInterval)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: %s", ErrLocked, path)
		}
		return nil, fmt.Errorf("acquire lock %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}
	return &Lock{fl: fl}, nil
}

// Release 释放锁并关闭文件描述符。锁文件保留在磁盘上，避免删除与他人加锁竞争。
func (l *Lock) Release(logger *logrus.Logger) {
	if l == nil || l.fl == nil {
		return
	}
	if err := l.fl.Close(); err != nil && logger != nil {
		logger.WithFields(logrus.Fields{"action": "release_lock", "path": l.fl.Path()}).Debug(err.Error())
	}
}
