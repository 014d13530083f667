package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yang-catalog/catalog-cache/internal/logging"
)

type checkOpts struct {
	*rootOpts
	ping bool
}

func newCheck(parent *rootOpts) *checkOpts {
	return &checkOpts{rootOpts: parent}
}

func (opts *checkOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "仅校验配置后退出",
		Args:  cobra.NoArgs,
		RunE:  opts.RunE,
	}
	cmd.Flags().BoolVar(&opts.ping, "ping", false, "同时检查后端是否可达")
	return cmd
}

func (opts *checkOpts) RunE(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := opts.setup()
	if err != nil {
		return err
	}

	fields := logging.BaseFields("check_config", opts.resolveConfigPath())
	for k, v := range logging.BackendFields(cfg.Backend.Type, cfg.Backend.Address, cfg.Backend.AuthMode()) {
		fields[k] = v
	}

	if opts.ping {
		backend, err := openBackend(cfg, logger)
		if err != nil {
			return err
		}
		defer closeBackend(backend, logger)

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Backend.Timeout.DurationValue())
		defer cancel()
		if err := backend.Ping(ctx); err != nil {
			return fmt.Errorf("后端不可达: %w", err)
		}
		fields["ping"] = "ok"
	}

	fields["result"] = "ok"
	logger.WithFields(fields).Info("配置校验通过")
	return nil
}
