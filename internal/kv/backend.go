package kv

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound 表示键不存在，不代表后端故障。
	ErrNotFound = errors.New("kv: key not found")
	// ErrUnavailable 表示后端无法连接或超时，调用方不应在本层重试。
	ErrUnavailable = errors.New("kv: backend unavailable")
)

// Entry 是一次写入的键值对。
type Entry struct {
	Key   string
	Value []byte
}

// Batch 聚合一次批量写入：先写 Set，再删除 Delete。
type Batch struct {
	Set    []Entry
	Delete []string
}

// Empty 表示批次中没有任何操作。
func (b Batch) Empty() bool {
	return len(b.Set) == 0 && len(b.Delete) == 0
}

// Backend 是进程外的键值存储。所有方法都是同步往返，超时由驱动自身配置。
type Backend interface {
	// Get 返回键对应的值；不存在时返回 ErrNotFound。
	Get(ctx context.Context, key string) ([]byte, error)

	// Set 写入或覆盖单个键。
	Set(ctx context.Context, key string, value []byte) error

	// Apply 一次性提交批次。支持事务的驱动保证全部可见或全部不可见。
	Apply(ctx context.Context, batch Batch) error

	// Ping 检查后端是否可达。
	Ping(ctx context.Context) error

	// Close 释放连接。
	Close() error
}

// Unavailable 将驱动返回的底层错误包装为 ErrUnavailable，同时保留原始错误链。
func Unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
}

// PartialApplyError 由非事务驱动在批次中途失败时返回，Applied 是已经生效的 Set 条目数。
// 事务驱动失败时什么都没写入，直接返回底层错误。
type PartialApplyError struct {
	Applied int
	Err     error
}

func (e *PartialApplyError) Error() string {
	return fmt.Sprintf("batch stopped after %d entries: %v", e.Applied, e.Err)
}

func (e *PartialApplyError) Unwrap() error {
	return e.Err
}
