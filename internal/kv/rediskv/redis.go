// Package rediskv 是默认的 Redis 后端。批量写入使用 MULTI/EXEC，整批要么全部生效要么全部失败。
package rediskv

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yang-catalog/catalog-cache/internal/kv"
)

func init() {
	kv.MustRegister(kv.Driver{
		Key:         "redis",
		Description: "Redis backend; batches run inside MULTI/EXEC",
		AtomicBatch: true,
		Open: func(opts kv.Options) (kv.Backend, error) {
			return New(opts), nil
		},
	})
}

// Client 包装 go-redis 客户端，连接池与超时由 go-redis 管理。
type Client struct {
	rdb *redis.Client
}

// New 根据 Options 构造客户端；Timeout 同时作用于拨号与读写。
func New(opts kv.Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		rdb: redis.NewClient(&redis.Options{
			Addr:         opts.Address,
			Password:     opts.Password,
			DB:           opts.DB,
			DialTimeout:  timeout,
			ReadTimeout:  timeout,
			WriteTimeout: timeout,
		}),
	}
}

func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, kv.ErrNotFound
		}
		return nil, kv.Unavailable("get", err)
	}
	return value, nil
}

func (c *Client) Set(ctx context.Context, key string, value []byte) error {
	if err := c.rdb.Set(ctx, key, value, 0).Err(); err != nil {
		return kv.Unavailable("set", err)
	}
	return nil
}

func (c *Client) Apply(ctx context.Context, batch kv.Batch) error {
	if batch.Empty() {
		return nil
	}
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(batch.Set) > 0 {
			pairs := make([]interface{}, 0, len(batch.Set)*2)
			for _, entry := range batch.Set {
				pairs = append(pairs, entry.Key, entry.Value)
			}
			pipe.MSet(ctx, pairs...)
		}
		if len(batch.Delete) > 0 {
			pipe.Del(ctx, batch.Delete...)
		}
		return nil
	})
	if err != nil {
		return kv.Unavailable("apply", err)
	}
	return nil
}

func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return kv.Unavailable("ping", err)
	}
	return nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}
