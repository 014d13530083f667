package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/yang-catalog/catalog-cache/internal/config"
	"github.com/yang-catalog/catalog-cache/internal/kv"
	"github.com/yang-catalog/catalog-cache/internal/logging"
)

// EnvConfigPath 覆盖默认配置路径，优先级低于 --config。
const EnvConfigPath = "CATALOG_CACHE_CONFIG"

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

// rootOpts 汇总所有子命令共享的标志，便于在测试中注入。
type rootOpts struct {
	configPath string
}

var rootLongHelp = strings.TrimSpace(`
catalog-cache keeps the YANG module catalog in a key-value cache.

Workflow:
  catalog-cache check --config config.toml            # Validate configuration.
  catalog-cache load  --snapshot cache_data.json      # Push a catalog snapshot into the cache.
  catalog-cache serve                                 # Serve the admin API on ListenPort.
`)

func main() {
	os.Exit(execute(os.Args[1:]))
}

// execute 运行 CLI 并返回退出码，方便测试。
func execute(args []string) int {
	cmd := newRoot().Command()
	cmd.SetArgs(args)
	cmd.SetOut(stdOut)
	cmd.SetErr(stdErr)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(stdErr, err.Error())
		return 1
	}
	return 0
}

func newRoot() *rootOpts {
	return &rootOpts{}
}

func (opts *rootOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "catalog-cache",
		Long:          rootLongHelp,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	opts.bindFlags(cmd.PersistentFlags())

	cmd.AddCommand(
		newServe(opts).Command(),
		newLoad(opts).Command(),
		newCheck(opts).Command(),
		newVersionCommand(),
	)
	return cmd
}

func (opts *rootOpts) bindFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&opts.configPath, "config", "c", "",
		fmt.Sprintf("配置文件路径（默认 ./config.toml，可被 %s 覆盖）", EnvConfigPath))
}

// resolveConfigPath 结合 --config 与环境变量计算最终的配置路径。
func (opts *rootOpts) resolveConfigPath() string {
	if opts.configPath != "" {
		return opts.configPath
	}
	if path := os.Getenv(EnvConfigPath); path != "" {
		return path
	}
	return "config.toml"
}

// setup 加载配置并初始化日志，所有子命令共用。
func (opts *rootOpts) setup() (*config.Config, *logrus.Logger, error) {
	path := opts.resolveConfigPath()
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("加载配置失败: %w", err)
	}
	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		return nil, nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	return cfg, logger, nil
}

// openBackend 通过驱动注册表打开配置的后端。
func openBackend(cfg *config.Config, logger *logrus.Logger) (kv.Backend, error) {
	backend, err := kv.Open(cfg.Backend.Type, cfg.Backend.Options(logger))
	if err != nil {
		return nil, fmt.Errorf("初始化后端失败: %w", err)
	}
	return backend, nil
}

func closeBackend(backend kv.Backend, logger *logrus.Logger) {
	if err := backend.Close(); err != nil {
		logger.WithField("action", "backend_close").Warn(err.Error())
	}
}
