package loader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yang-catalog/catalog-cache/internal/cache"
	"github.com/yang-catalog/catalog-cache/internal/catalog"
	"github.com/yang-catalog/catalog-cache/internal/kv"
	"github.com/yang-catalog/catalog-cache/internal/logging"
)

// Phase 标识加载周期中的一个阶段。
type Phase string

const (
	PhaseWait      Phase = "wait"
	PhaseBootstrap Phase = "bootstrap"
	PhaseModules   Phase = "modules"
	PhaseVendors   Phase = "vendors"
	PhaseReload    Phase = "reload"
)

const (
	// BootstrapName/BootstrapRevision 定位目录自描述模块。
	BootstrapName     = "yang-catalog"
	BootstrapRevision = "2018-04-03"
)

// PhaseError 说明周期在哪个阶段失败，以及失败前已持久化的记录数。
type PhaseError struct {
	Phase   Phase
	Written int
	Err     error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("load phase %s failed after %d records: %v", e.Phase, e.Written, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}

// Report 汇总一次加载周期的结果。
type Report struct {
	CycleID      string
	Bootstrapped bool
	Modules      cache.Result
	Vendors      cache.Result
	Published    int
}

// Written 返回本周期已持久化的记录数（bootstrap + 模块 + 发布的关联）。
func (r Report) Written() int {
	n := r.Modules.Written + r.Published
	if r.Bootstrapped {
		n++
	}
	return n
}

// Options 注入加载器依赖。Backend 仅用于就绪等待，读写均经过 Store/Index。
type Options struct {
	Store        *cache.ModuleStore
	Index        *cache.VendorIndex
	Backend      kv.Backend
	WaitInterval time.Duration
	WaitAttempts int
	Logger       *logrus.Logger
}

// Loader 按顺序执行各阶段，可重复调用 Run。vendors 阶段开始时清空 VendorIndex 的工作集，
// 上一周期 reload 失败遗留的关联不会被带入下一周期。
type Loader struct {
	store        *cache.ModuleStore
	index        *cache.VendorIndex
	backend      kv.Backend
	waitInterval time.Duration
	waitAttempts int
	logger       *logrus.Logger
}

// New 构建 Loader。
func New(opts Options) (*Loader, error) {
	if opts.Store == nil || opts.Index == nil {
		return nil, errors.New("loader requires module store and vendor index")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Loader{
		store:        opts.Store,
		index:        opts.Index,
		backend:      opts.Backend,
		waitInterval: opts.WaitInterval,
		waitAttempts: opts.WaitAttempts,
		logger:       logger,
	}, nil
}

// Run 执行一次完整的加载周期。返回的 Report 在失败时也包含已完成阶段的结果。
func (l *Loader) Run(ctx context.Context, snap *catalog.Snapshot) (Report, error) {
	report := Report{CycleID: uuid.NewString()}
	if snap == nil {
		return report, &PhaseError{Phase: PhaseBootstrap, Err: catalog.ErrInvalidSnapshot}
	}

	if l.backend != nil {
		l.logPhase(report.CycleID, PhaseWait).Info("waiting for backend")
		if err := kv.WaitReady(ctx, l.backend, l.waitInterval, l.waitAttempts, l.logger); err != nil {
			return report, &PhaseError{Phase: PhaseWait, Err: err}
		}
	}

	if err := l.bootstrap(ctx, snap, &report); err != nil {
		return report, &PhaseError{Phase: PhaseBootstrap, Written: report.Written(), Err: err}
	}

	modules, err := l.store.SetMany(ctx, snap.Descriptors())
	report.Modules = modules
	if err != nil {
		return report, &PhaseError{Phase: PhaseModules, Written: report.Written(), Err: err}
	}
	l.logPhase(report.CycleID, PhaseModules).WithFields(logrus.Fields{
		"written": modules.Written,
		"skipped": len(modules.Skipped),
	}).Info("modules stored")

	if dropped := l.index.Reset(); dropped > 0 {
		l.logPhase(report.CycleID, PhaseVendors).WithField("dropped", dropped).
			Warn("discarding associations left by an unfinished cycle")
	}
	report.Vendors = l.index.PopulateImplementation(snap.Vendors)
	l.logPhase(report.CycleID, PhaseVendors).WithFields(logrus.Fields{
		"vendors":      len(snap.Vendors),
		"associations": l.index.Pending(),
		"skipped":      len(report.Vendors.Skipped),
	}).Info("implementations collected")

	published, err := l.index.ReloadVendorsCache(ctx)
	if err != nil {
		return report, &PhaseError{Phase: PhaseReload, Written: report.Written(), Err: err}
	}
	report.Published = published

	l.logPhase(report.CycleID, PhaseReload).WithFields(logrus.Fields{
		"modules":      report.Modules.Written,
		"vendors":      len(snap.Vendors),
		"associations": published,
		"written":      report.Written(),
	}).Info("load cycle finished")
	return report, nil
}

// bootstrap 单独写入目录自描述模块，键取自记录本身。记录缺失时仅告警。
func (l *Loader) bootstrap(ctx context.Context, snap *catalog.Snapshot, report *Report) error {
	d, ok := snap.Find(BootstrapName, BootstrapRevision)
	if !ok {
		l.logPhase(report.CycleID, PhaseBootstrap).Warn("bootstrap module not present in snapshot")
		return nil
	}
	if err := l.store.SetOne(ctx, d.Key(), d); err != nil {
		return err
	}
	report.Bootstrapped = true
	l.logPhase(report.CycleID, PhaseBootstrap).WithField("key", d.Key()).Info("bootstrap module stored")
	return nil
}

func (l *Loader) logPhase(cycleID string, phase Phase) *logrus.Entry {
	return l.logger.WithFields(logging.LoadFields(cycleID, string(phase)))
}
