package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yang-catalog/catalog-cache/internal/cache"
	"github.com/yang-catalog/catalog-cache/internal/logging"
	"github.com/yang-catalog/catalog-cache/internal/server"
	"github.com/yang-catalog/catalog-cache/internal/server/routes"
	"github.com/yang-catalog/catalog-cache/internal/version"
)

// shutdownTimeout 是收到退出信号后等待在途请求完成的时间。
const shutdownTimeout = 10 * time.Second

type serveOpts struct {
	*rootOpts
}

func newServe(parent *rootOpts) *serveOpts {
	return &serveOpts{rootOpts: parent}
}

func (opts *serveOpts) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "启动管理接口（模块读写、实现查询、诊断）",
		Args:  cobra.NoArgs,
		RunE:  opts.RunE,
	}
}

func (opts *serveOpts) RunE(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := opts.setup()
	if err != nil {
		return err
	}

	// 启动顺序：配置 → 后端 → Store/Index → Fiber server，所有请求共享同一后端实例。
	backend, err := openBackend(cfg, logger)
	if err != nil {
		return err
	}
	defer closeBackend(backend, logger)

	store := cache.NewModuleStore(backend, logger)
	index := cache.NewVendorIndex(backend, logger)

	app, err := server.NewApp(server.AppOptions{Logger: logger})
	if err != nil {
		return err
	}
	routes.RegisterAdminRoutes(app, store, index, logger)
	routes.RegisterDiagnosticsRoutes(app, backend, cfg.Backend.Type)

	fields := logging.BaseFields("startup", opts.resolveConfigPath())
	fields["listen_port"] = cfg.Global.ListenPort
	fields["version"] = version.Full()
	for k, v := range logging.BackendFields(cfg.Backend.Type, cfg.Backend.Address, cfg.Backend.AuthMode()) {
		fields[k] = v
	}
	logger.WithFields(fields).Info("配置加载完成")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			logger.WithField("action", "shutdown").Warn(err.Error())
		}
	}()

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   cfg.Global.ListenPort,
	}).Info("Fiber 服务启动")

	if err := app.Listen(fmt.Sprintf(":%d", cfg.Global.ListenPort)); err != nil {
		return fmt.Errorf("HTTP 服务启动失败: %w", err)
	}
	return nil
}
