// Package memcachedkv stores cache entries in memcached. memcached has no
// multi-key transaction, so Apply writes entry by entry and a failure part way
// through leaves the earlier writes visible and is reported as a
// kv.PartialApplyError carrying how many entries landed.
package memcachedkv

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/sirupsen/logrus"

	"github.com/yang-catalog/catalog-cache/internal/kv"
)

func init() {
	kv.MustRegister(kv.Driver{
		Key:         "memcached",
		Description: "memcached backend; comma-separated server list, best-effort batches, 1 MiB item limit",
		AtomicBatch: false,
		Open: func(opts kv.Options) (kv.Backend, error) {
			return New(opts)
		},
	})
}

// maxItemSize is memcached's default item size limit (-I 1m). Larger values
// are rejected locally instead of coming back as a server error.
const maxItemSize = 1 << 20

// ErrValueTooLarge is returned by Set and Apply for values above maxItemSize.
var ErrValueTooLarge = errors.New("memcached: value exceeds item size limit")

// Client is a memcache client with a fixed server list.
type Client struct {
	client *memcache.Client
	logger *logrus.Logger
}

// New accepts Address as "host:port[,host:port...]".
func New(opts kv.Options) (*Client, error) {
	servers := splitServers(opts.Address)
	if len(servers) == 0 {
		return nil, errors.New("memcached server list is empty")
	}

	var list memcache.ServerList
	if err := list.SetServers(servers...); err != nil {
		return nil, err
	}
	client := memcache.NewFromSelector(&list)
	if opts.Timeout > 0 {
		client.Timeout = opts.Timeout
	} else {
		client.Timeout = time.Second
	}

	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Client{client: client, logger: logger}, nil
}

func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, kv.Unavailable("get", err)
	}
	item, err := c.client.Get(key)
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			// Don't log on cache miss
			return nil, kv.ErrNotFound
		}
		c.logger.WithFields(logrus.Fields{"action": "memcached_get", "key": key}).Warn(err.Error())
		return nil, classify("get", err)
	}
	return item.Value, nil
}

func (c *Client) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return kv.Unavailable("set", err)
	}
	if err := checkItem(key, value); err != nil {
		return err
	}
	if err := c.client.Set(&memcache.Item{Key: key, Value: value}); err != nil {
		c.logger.WithFields(logrus.Fields{"action": "memcached_set", "key": key}).Warn(err.Error())
		return classify("set", err)
	}
	return nil
}

func (c *Client) Apply(ctx context.Context, batch kv.Batch) error {
	for i, entry := range batch.Set {
		if err := c.Set(ctx, entry.Key, entry.Value); err != nil {
			return &kv.PartialApplyError{Applied: i, Err: err}
		}
	}
	for _, key := range batch.Delete {
		if err := c.client.Delete(key); err != nil && !errors.Is(err, memcache.ErrCacheMiss) {
			return &kv.PartialApplyError{Applied: len(batch.Set), Err: classify("delete", err)}
		}
	}
	return nil
}

func (c *Client) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return kv.Unavailable("ping", err)
	}
	if err := c.client.Ping(); err != nil {
		return classify("ping", err)
	}
	return nil
}

// Close is a no-op; idle connections are dropped by the server.
func (c *Client) Close() error {
	return nil
}

func splitServers(raw string) []string {
	var servers []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			servers = append(servers, trimmed)
		}
	}
	return servers
}

// checkItem mirrors the client's key rules so a bad key or an oversized value
// fails before any network round trip.
func checkItem(key string, value []byte) error {
	if len(key) > 250 {
		return fmt.Errorf("%w: %d bytes", memcache.ErrMalformedKey, len(key))
	}
	for i := 0; i < len(key); i++ {
		if key[i] <= ' ' || key[i] == 0x7f {
			return fmt.Errorf("%w: %q", memcache.ErrMalformedKey, key)
		}
	}
	if len(value) > maxItemSize {
		return fmt.Errorf("%w: key %q is %d bytes", ErrValueTooLarge, key, len(value))
	}
	return nil
}

// classify maps connection-level failures to kv.ErrUnavailable. Protocol and
// server errors (SERVER_ERROR, malformed keys) are reported as they are since
// retrying against the same server would not help.
func classify(op string, err error) error {
	var timeout *memcache.ConnectTimeoutError
	var netErr net.Error
	switch {
	case errors.Is(err, memcache.ErrNoServers),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &timeout),
		errors.As(err, &netErr):
		return kv.Unavailable(op, err)
	}
	return fmt.Errorf("memcached %s: %w", op, err)
}
