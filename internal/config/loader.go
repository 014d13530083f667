package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load 读取并解析 TOML 配置文件，同时注入默认值与校验逻辑。
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.toml"
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}

	if err := rejectLegacyRedisKeys(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyGlobalDefaults(&cfg.Global)
	applyBackendDefaults(&cfg.Backend)
	applyLoaderDefaults(&cfg.Loader)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Loader.SnapshotPath != "" {
		abs, err := filepath.Abs(cfg.Loader.SnapshotPath)
		if err != nil {
			return nil, fmt.Errorf("无法解析快照路径: %w", err)
		}
		cfg.Loader.SnapshotPath = abs
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenPort", 5000)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("Backend.Type", "redis")
	v.SetDefault("Backend.Address", "localhost:6379")
	v.SetDefault("Backend.DB", 1)
	v.SetDefault("Backend.Timeout", "5s")
	v.SetDefault("Backend.WaitInterval", "5s")
	v.SetDefault("Backend.WaitAttempts", 12)
	v.SetDefault("Loader.LockPath", filepath.Join("/tmp", "catalog-cache.lock"))
	v.SetDefault("Loader.LockTimeout", "30s")
}

func applyGlobalDefaults(g *GlobalConfig) {
	if g.ListenPort == 0 {
		g.ListenPort = 5000
	}
	if strings.TrimSpace(g.LogLevel) == "" {
		g.LogLevel = "info"
	}
}

func applyBackendDefaults(b *BackendConfig) {
	b.Type = strings.ToLower(strings.TrimSpace(b.Type))
	if b.Type == "" {
		b.Type = "redis"
	}
	if b.Timeout.DurationValue() == 0 {
		b.Timeout = Duration(5 * time.Second)
	}
	if b.WaitInterval.DurationValue() == 0 {
		b.WaitInterval = Duration(5 * time.Second)
	}
}

func applyLoaderDefaults(l *LoaderConfig) {
	if l.LockTimeout.DurationValue() == 0 {
		l.LockTimeout = Duration(30 * time.Second)
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}

// legacyRedisKeys 是旧版 DB-Section 风格的字段，已由 [Backend] 取代。
var legacyRedisKeys = map[string]string{
	"redishost":  "Backend.Address",
	"redisport":  "Backend.Address",
	"redis-host": "Backend.Address",
	"redis-port": "Backend.Address",
}

func rejectLegacyRedisKeys(v *viper.Viper) error {
	for _, key := range v.AllKeys() {
		if replacement, ok := legacyRedisKeys[strings.ToLower(key)]; ok {
			return newFieldError(key, "字段已弃用，请改用 "+replacement)
		}
	}
	return nil
}
