package main

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yang-catalog/catalog-cache/internal/cache"
	"github.com/yang-catalog/catalog-cache/internal/catalog"
	"github.com/yang-catalog/catalog-cache/internal/loader"
	"github.com/yang-catalog/catalog-cache/internal/logging"
)

type loadOpts struct {
	*rootOpts
	snapshotPath string
}

func newLoad(parent *rootOpts) *loadOpts {
	return &loadOpts{rootOpts: parent}
}

func (opts *loadOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load",
		Short: "把目录快照写入缓存（bootstrap → modules → vendors → reload）",
		Args:  cobra.NoArgs,
		RunE:  opts.RunE,
	}
	cmd.Flags().StringVarP(&opts.snapshotPath, "snapshot", "s", "", "快照 JSON 路径，覆盖 Loader.SnapshotPath")
	return cmd
}

func (opts *loadOpts) RunE(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := opts.setup()
	if err != nil {
		return err
	}

	path := opts.snapshotPath
	if path == "" {
		path = cfg.Loader.SnapshotPath
	}
	if path == "" {
		return errors.New("未指定快照路径：请使用 --snapshot 或配置 Loader.SnapshotPath")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	lock, err := loader.AcquireLock(ctx, cfg.Loader.LockPath, cfg.Loader.LockTimeout.DurationValue())
	if err != nil {
		return err
	}
	defer lock.Release(logger)

	// 快照只解码一次，之后各阶段共用同一份结果。
	snap, err := catalog.ReadSnapshot(path)
	if err != nil {
		return err
	}

	backend, err := openBackend(cfg, logger)
	if err != nil {
		return err
	}
	defer closeBackend(backend, logger)

	l, err := loader.New(loader.Options{
		Store:        cache.NewModuleStore(backend, logger),
		Index:        cache.NewVendorIndex(backend, logger),
		Backend:      backend,
		WaitInterval: cfg.Backend.WaitInterval.DurationValue(),
		WaitAttempts: cfg.Backend.WaitAttempts,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	fields := logging.BaseFields("load", opts.resolveConfigPath())
	fields["snapshot"] = path
	fields["modules"] = len(snap.Modules)
	fields["vendors"] = len(snap.Vendors)
	for k, v := range logging.BackendFields(cfg.Backend.Type, cfg.Backend.Address, cfg.Backend.AuthMode()) {
		fields[k] = v
	}
	logger.WithFields(fields).Info("开始加载快照")

	report, err := l.Run(ctx, snap)
	if err != nil {
		return fmt.Errorf("加载失败: %w", err)
	}
	logSkipped(logger, report)
	fmt.Fprintf(stdOut, "cycle %s: %d modules, %d implementations, %d skipped\n",
		report.CycleID, report.Modules.Written, report.Published,
		len(report.Modules.Skipped)+len(report.Vendors.Skipped))
	return nil
}

func logSkipped(logger *logrus.Logger, report loader.Report) {
	if !report.Modules.Partial() && !report.Vendors.Partial() {
		return
	}
	logger.WithFields(logrus.Fields{
		"action":          "load",
		"cycle_id":        report.CycleID,
		"skipped_modules": len(report.Modules.Skipped),
		"skipped_vendors": len(report.Vendors.Skipped),
	}).Warn("部分记录被跳过")
}
