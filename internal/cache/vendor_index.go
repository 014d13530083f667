package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/yang-catalog/catalog-cache/internal/catalog"
	"github.com/yang-catalog/catalog-cache/internal/kv"
	"github.com/yang-catalog/catalog-cache/internal/logging"
)

const (
	// VendorsDataKey 保存全部平台摘要。
	VendorsDataKey = "vendors-data"
	// VendorsManifestKey 保存上一次发布的 implementations:* 键列表，用于清理过期键。
	VendorsManifestKey = "vendors-index"
	// ImplementationsPrefix 是模块反向索引键的前缀。
	ImplementationsPrefix = "implementations:"
)

// PlatformSummary 是 vendors-data 中的一项：一个厂商平台及其实现的模块键。
type PlatformSummary struct {
	Vendor          string   `json:"vendor"`
	Platform        string   `json:"platform"`
	SoftwareVersion string   `json:"software-version"`
	SoftwareFlavor  string   `json:"software-flavor"`
	Modules         []string `json:"modules"`
}

// associationID 唯一标识工作集中的一条关联。
type associationID struct {
	platform catalog.PlatformID
	module   string
}

// VendorIndex 维护厂商实现的工作集并负责整体发布。
// 状态流转：Empty → Populating（PopulateImplementation）→ Published（ReloadVendorsCache）。
// Reset 随时把工作集退回 Empty，已发布的索引不受影响。
type VendorIndex struct {
	backend kv.Backend
	logger  *logrus.Logger

	mu      sync.Mutex
	working map[associationID]catalog.Implementation
}

// NewVendorIndex 注入后端与日志实例。
func NewVendorIndex(backend kv.Backend, logger *logrus.Logger) *VendorIndex {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &VendorIndex{
		backend: backend,
		logger:  logger,
		working: make(map[associationID]catalog.Implementation),
	}
}

// ImplementationsKey 返回模块反向索引的键。
func ImplementationsKey(moduleKey string) string {
	return ImplementationsPrefix + moduleKey
}

// PopulateImplementation 展开厂商记录并把实现关联累积到内存工作集，不写后端。
// 格式错误的厂商或内部节点被跳过并记录 warning。Written 为本次接纳的关联数。
func (v *VendorIndex) PopulateImplementation(vendors []json.RawMessage) Result {
	var result Result

	v.mu.Lock()
	defer v.mu.Unlock()

	for i, raw := range vendors {
		impls, issues, err := catalog.WalkVendor(raw)
		if err != nil {
			v.logger.WithFields(logging.RecordFields("populate_implementation", i, "")).Warn(err.Error())
			result.Skipped = append(result.Skipped, SkippedRecord{Index: i, Reason: err.Error()})
			continue
		}
		for _, issue := range issues {
			v.logger.WithFields(logging.RecordFields("populate_implementation", i, issue.Path)).Warn("skipping vendor node: " + issue.Reason)
			result.Skipped = append(result.Skipped, SkippedRecord{Index: i, Key: issue.Path, Reason: issue.Reason})
		}
		for _, impl := range impls {
			v.working[associationID{platform: impl.PlatformID(), module: impl.ModuleKey}] = impl
			result.Written++
		}
	}
	return result
}

// Reset 丢弃尚未发布的工作集。每个加载周期从空工作集开始，
// 上一周期发布失败残留的关联不会混入本次发布。
func (v *VendorIndex) Reset() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	dropped := len(v.working)
	v.working = make(map[associationID]catalog.Implementation)
	return dropped
}

// Pending 返回工作集中尚未发布的关联数。
func (v *VendorIndex) Pending() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.working)
}

// ReloadVendorsCache 用工作集整体替换已发布的索引：写入新的平台摘要、反向索引与清单，
// 并在同一批次中删除上一份清单里不再出现的反向索引键。工作集为空时发布空索引。
// 发布成功后清空工作集，返回发布的关联数。
func (v *VendorIndex) ReloadVendorsCache(ctx context.Context) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	impls := make([]catalog.Implementation, 0, len(v.working))
	for _, impl := range v.working {
		impls = append(impls, impl)
	}
	sort.Slice(impls, func(i, j int) bool {
		pi, pj := impls[i].PlatformID(), impls[j].PlatformID()
		if pi != pj {
			return pi.Less(pj)
		}
		return impls[i].ModuleKey < impls[j].ModuleKey
	})

	previous, err := v.readManifest(ctx)
	if err != nil {
		return 0, err
	}

	batch, manifest, err := buildIndexBatch(impls)
	if err != nil {
		return 0, err
	}
	current := make(map[string]struct{}, len(manifest))
	for _, key := range manifest {
		current[key] = struct{}{}
	}
	for _, key := range previous {
		if _, ok := current[key]; !ok {
			batch.Delete = append(batch.Delete, key)
		}
	}

	if err := v.backend.Apply(ctx, batch); err != nil {
		return 0, fmt.Errorf("publish vendor index: %w", err)
	}

	v.logger.WithFields(logrus.Fields{
		"action":       "reload_vendors_cache",
		"associations": len(impls),
		"modules":      len(manifest),
		"stale":        len(batch.Delete),
	}).Info("vendor index published")

	v.working = make(map[associationID]catalog.Implementation)
	return len(impls), nil
}

// Implementations 返回已发布索引中某个模块的实现列表；未发布时返回空。
func (v *VendorIndex) Implementations(ctx context.Context, moduleKey string) ([]catalog.Implementation, error) {
	raw, err := v.backend.Get(ctx, ImplementationsKey(moduleKey))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get implementations for %s: %w", moduleKey, err)
	}
	var impls []catalog.Implementation
	if err := json.Unmarshal(raw, &impls); err != nil {
		return nil, fmt.Errorf("decode implementations for %s: %w", moduleKey, err)
	}
	return impls, nil
}

// Platforms 返回已发布的平台摘要。
func (v *VendorIndex) Platforms(ctx context.Context) ([]PlatformSummary, error) {
	raw, err := v.backend.Get(ctx, VendorsDataKey)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get %s: %w", VendorsDataKey, err)
	}
	var platforms []PlatformSummary
	if err := json.Unmarshal(raw, &platforms); err != nil {
		return nil, fmt.Errorf("decode %s: %w", VendorsDataKey, err)
	}
	return platforms, nil
}

// Associations 汇总清单中每个模块的实现，得到已发布的全部关联。
func (v *VendorIndex) Associations(ctx context.Context) ([]catalog.Implementation, error) {
	keys, err := v.readManifest(ctx)
	if err != nil {
		return nil, err
	}
	var all []catalog.Implementation
	for _, key := range keys {
		impls, err := v.Implementations(ctx, strings.TrimPrefix(key, ImplementationsPrefix))
		if err != nil {
			return nil, err
		}
		all = append(all, impls...)
	}
	return all, nil
}

// readManifest 读取上一份清单。清单损坏时视为空并记录 warning，过期键将无法清理。
func (v *VendorIndex) readManifest(ctx context.Context) ([]string, error) {
	raw, err := v.backend.Get(ctx, VendorsManifestKey)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get %s: %w", VendorsManifestKey, err)
	}
	var keys []string
	if err := json.Unmarshal(raw, &keys); err != nil {
		v.logger.WithFields(logrus.Fields{"action": "reload_vendors_cache", "key": VendorsManifestKey}).Warn("ignoring unreadable manifest: " + err.Error())
		return nil, nil
	}
	return keys, nil
}

// buildIndexBatch 由已排序的关联构建待写入的批次，并返回新的清单。
func buildIndexBatch(impls []catalog.Implementation) (kv.Batch, []string, error) {
	var (
		platforms []PlatformSummary
		byModule  = make(map[string][]catalog.Implementation)
	)
	for _, impl := range impls {
		if n := len(platforms); n == 0 || platforms[n-1].id() != impl.PlatformID() {
			platforms = append(platforms, PlatformSummary{
				Vendor:          impl.Vendor,
				Platform:        impl.Platform,
				SoftwareVersion: impl.SoftwareVersion,
				SoftwareFlavor:  impl.SoftwareFlavor,
			})
		}
		last := &platforms[len(platforms)-1]
		last.Modules = append(last.Modules, impl.ModuleKey)
		byModule[impl.ModuleKey] = append(byModule[impl.ModuleKey], impl)
	}
	if platforms == nil {
		platforms = []PlatformSummary{}
	}

	manifest := make([]string, 0, len(byModule))
	for moduleKey := range byModule {
		manifest = append(manifest, ImplementationsKey(moduleKey))
	}
	sort.Strings(manifest)

	var batch kv.Batch
	for _, key := range manifest {
		value, err := json.Marshal(byModule[strings.TrimPrefix(key, ImplementationsPrefix)])
		if err != nil {
			return kv.Batch{}, nil, err
		}
		batch.Set = append(batch.Set, kv.Entry{Key: key, Value: value})
	}

	platformsValue, err := json.Marshal(platforms)
	if err != nil {
		return kv.Batch{}, nil, err
	}
	manifestValue, err := json.Marshal(manifest)
	if err != nil {
		return kv.Batch{}, nil, err
	}
	batch.Set = append(batch.Set,
		kv.Entry{Key: VendorsDataKey, Value: platformsValue},
		kv.Entry{Key: VendorsManifestKey, Value: manifestValue},
	)
	return batch, manifest, nil
}

func (p PlatformSummary) id() catalog.PlatformID {
	return catalog.PlatformID{
		Vendor:          p.Vendor,
		Platform:        p.Platform,
		SoftwareVersion: p.SoftwareVersion,
		SoftwareFlavor:  p.SoftwareFlavor,
	}
}
