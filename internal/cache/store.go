package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Jeffail/gabs"
	"github.com/sirupsen/logrus"

	"github.com/yang-catalog/catalog-cache/internal/catalog"
	"github.com/yang-catalog/catalog-cache/internal/kv"
	"github.com/yang-catalog/catalog-cache/internal/logging"
)

// ErrKeyMismatch 表示写入的键与记录派生出的身份键不一致。
var ErrKeyMismatch = errors.New("key does not match module identity")

// ModuleStore 负责模块记录的读写，键均由 catalog.DeriveKey 派生。
type ModuleStore struct {
	backend kv.Backend
	logger  *logrus.Logger
}

// NewModuleStore 注入后端与日志实例，生命周期由调用方管理。
func NewModuleStore(backend kv.Backend, logger *logrus.Logger) *ModuleStore {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ModuleStore{backend: backend, logger: logger}
}

// SetOne 通过单键路径写入或覆盖一条记录。key 必须等于 DeriveKey(d)。
// 后端不可达时返回包装了 kv.ErrUnavailable 的错误，本层不重试。
func (s *ModuleStore) SetOne(ctx context.Context, key string, d catalog.ModuleDescriptor) error {
	if derived := catalog.DeriveKey(d); derived != key {
		return fmt.Errorf("%w: %s != %s", ErrKeyMismatch, key, derived)
	}
	payload, err := d.Payload()
	if err != nil {
		return fmt.Errorf("encode module %s: %w", key, err)
	}
	if err := s.backend.Set(ctx, key, payload); err != nil {
		return fmt.Errorf("set module %s: %w", key, err)
	}
	return nil
}

// SetMany 为每条记录派生键，在内存中构建完整映射后一次性提交。
// 同键记录以后出现者为准；缺少 name 的记录被跳过，缺少 revision/organization 的记录
// 以占位符键写入。两种情况都会输出一条 warning。
func (s *ModuleStore) SetMany(ctx context.Context, descriptors []catalog.ModuleDescriptor) (Result, error) {
	var result Result
	if len(descriptors) == 0 {
		return result, nil
	}

	index := make(map[string]int, len(descriptors))
	entries := make([]kv.Entry, 0, len(descriptors))
	for i, d := range descriptors {
		key := catalog.DeriveKey(d)
		missing := d.Missing()
		if len(missing) > 0 {
			fields := logging.RecordFields("set_many", i, key)
			fields["missing"] = strings.Join(missing, ",")
			if strings.TrimSpace(d.Name) == "" {
				s.logger.WithFields(fields).Warn("skipping module without name")
				result.Skipped = append(result.Skipped, SkippedRecord{Index: i, Key: key, Reason: "missing name"})
				continue
			}
			s.logger.WithFields(fields).Warn("module stored under placeholder key")
		}

		payload, err := d.Payload()
		if err != nil {
			s.logger.WithFields(logging.RecordFields("set_many", i, key)).Warn(err.Error())
			result.Skipped = append(result.Skipped, SkippedRecord{Index: i, Key: key, Reason: err.Error()})
			continue
		}

		if pos, ok := index[key]; ok {
			entries[pos].Value = payload
			continue
		}
		index[key] = len(entries)
		entries = append(entries, kv.Entry{Key: key, Value: payload})
	}

	if len(entries) == 0 {
		return result, nil
	}
	if err := s.backend.Apply(ctx, kv.Batch{Set: entries}); err != nil {
		// 非事务后端可能已写入前面一部分
		var partial *kv.PartialApplyError
		if errors.As(err, &partial) {
			result.Written = partial.Applied
		}
		return result, fmt.Errorf("bulk set %d modules: %w", len(entries), err)
	}
	result.Written = len(entries)
	return result, nil
}

// GetOne 按身份键读取记录。found=false 表示不存在，与后端故障（err != nil）区分。
func (s *ModuleStore) GetOne(ctx context.Context, key string) (catalog.ModuleDescriptor, bool, error) {
	raw, err := s.backend.Get(ctx, key)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return catalog.ModuleDescriptor{}, false, nil
		}
		return catalog.ModuleDescriptor{}, false, fmt.Errorf("get module %s: %w", key, err)
	}
	d, err := catalog.ParseDescriptor(raw)
	if err != nil {
		return catalog.ModuleDescriptor{}, false, fmt.Errorf("decode module %s: %w", key, err)
	}
	return d, true, nil
}

// GetField 返回记录中的一个顶层字段。记录或字段不存在时 found=false。
func (s *ModuleStore) GetField(ctx context.Context, key, field string) (interface{}, bool, error) {
	d, found, err := s.GetOne(ctx, key)
	if err != nil || !found {
		return nil, false, err
	}
	container, err := gabs.ParseJSON(d.Raw)
	if err != nil {
		return nil, false, fmt.Errorf("decode module %s: %w", key, err)
	}
	if !container.Exists(field) {
		return nil, false, nil
	}
	return container.Search(field).Data(), true, nil
}
