package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yang-catalog/catalog-cache/internal/kv"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if seconds, err := time.ParseDuration(raw); err == nil {
		*d = Duration(seconds)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// GlobalConfig 描述进程级行为：管理接口端口与日志输出。
type GlobalConfig struct {
	ListenPort    int    `mapstructure:"ListenPort"`
	LogLevel      string `mapstructure:"LogLevel"`
	LogFilePath   string `mapstructure:"LogFilePath"`
	LogMaxSize    int    `mapstructure:"LogMaxSize"`
	LogMaxBackups int    `mapstructure:"LogMaxBackups"`
	LogCompress   bool   `mapstructure:"LogCompress"`
}

// BackendConfig 决定模块缓存使用哪种键值后端及其连接参数。
// Address 的含义随 Type 变化：redis 为 host:port，memcached 为逗号分隔的服务器列表，
// sqlite 为数据库文件路径，file 为目录。
type BackendConfig struct {
	Type         string   `mapstructure:"Type"`
	Address      string   `mapstructure:"Address"`
	Password     string   `mapstructure:"Password"`
	DB           int      `mapstructure:"DB"`
	Timeout      Duration `mapstructure:"Timeout"`
	WaitInterval Duration `mapstructure:"WaitInterval"`
	WaitAttempts int      `mapstructure:"WaitAttempts"`
}

// LoaderConfig 控制一次性快照加载。
type LoaderConfig struct {
	SnapshotPath string   `mapstructure:"SnapshotPath"`
	LockPath     string   `mapstructure:"LockPath"`
	LockTimeout  Duration `mapstructure:"LockTimeout"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global  GlobalConfig  `mapstructure:",squash"`
	Backend BackendConfig `mapstructure:"Backend"`
	Loader  LoaderConfig  `mapstructure:"Loader"`
}

// Options 将后端配置映射为 kv 驱动参数。
func (b BackendConfig) Options(logger *logrus.Logger) kv.Options {
	return kv.Options{
		Address:  b.Address,
		Password: b.Password,
		DB:       b.DB,
		Timeout:  b.Timeout.DurationValue(),
		Logger:   logger,
	}
}

// AuthMode 输出 `password` 或 `anonymous`，供日志字段使用，不暴露口令本身。
func (b BackendConfig) AuthMode() string {
	if b.Password != "" {
		return "password"
	}
	return "anonymous"
}
