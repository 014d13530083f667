// Package sqlitekv 将缓存保存在单个 SQLite 文件中，批量写入在一个事务里完成。
package sqlitekv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	// 纯 Go 实现的 SQLite 驱动（无需 CGO）。
	_ "modernc.org/sqlite"

	"github.com/yang-catalog/catalog-cache/internal/kv"
)

func init() {
	kv.MustRegister(kv.Driver{
		Key:         "sqlite",
		Description: "SQLite file backend; batches run in one transaction",
		AtomicBatch: true,
		Open: func(opts kv.Options) (kv.Backend, error) {
			return Open(opts.Address, opts.Timeout)
		},
	})
}

const schema = `CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value BLOB NOT NULL
)`

const upsert = `INSERT INTO kv (key, value) VALUES (?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value`

// DB 持有到 SQLite 文件的连接。
type DB struct {
	db *sql.DB
}

// Open 打开（必要时创建）path 指向的数据库文件并建表。
func Open(path string, timeout time.Duration) (*DB, error) {
	if path == "" {
		return nil, errors.New("sqlite path must not be empty")
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)", path, timeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// 单连接串行化写入，避免 database is locked。
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create kv table: %w", err)
	}
	return &DB{db: db}, nil
}

func (d *DB) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := d.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, kv.ErrNotFound
		}
		return nil, kv.Unavailable("get", err)
	}
	return value, nil
}

func (d *DB) Set(ctx context.Context, key string, value []byte) error {
	if _, err := d.db.ExecContext(ctx, upsert, key, value); err != nil {
		return kv.Unavailable("set", err)
	}
	return nil
}

func (d *DB) Apply(ctx context.Context, batch kv.Batch) error {
	if batch.Empty() {
		return nil
	}
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return kv.Unavailable("begin", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	for _, entry := range batch.Set {
		if _, err := tx.ExecContext(ctx, upsert, entry.Key, entry.Value); err != nil {
			return kv.Unavailable("apply", err)
		}
	}
	for _, key := range batch.Delete {
		if _, err := tx.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
			return kv.Unavailable("apply", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return kv.Unavailable("commit", err)
	}
	return nil
}

func (d *DB) Ping(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return kv.Unavailable("ping", err)
	}
	return nil
}

func (d *DB) Close() error {
	return d.db.Close()
}
