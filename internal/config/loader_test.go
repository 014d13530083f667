package config

import (
	"errors"
	"testing"
)

func TestLoadFailsWithMissingFields(t *testing.T) {
	if _, err := Load(testConfigPath(t, "missing.toml")); err == nil {
		t.Fatalf("缺失字段的配置应返回错误")
	}
}

func TestLoadRejectsInvalidDuration(t *testing.T) {
	cfg := `
LogLevel = "info"

[Backend]
Type = "redis"
Address = "localhost:6379"
Timeout = "boom"
`
	path := writeTempConfig(t, cfg)
	if _, err := Load(path); err == nil {
		t.Fatalf("无效 Duration 应失败")
	}
}

func TestLoadRejectsLegacyRedisKeys(t *testing.T) {
	cfg := `
RedisHost = "localhost"
RedisPort = 6379

[Backend]
Type = "redis"
Address = "localhost:6379"
`
	path := writeTempConfig(t, cfg)
	_, err := Load(path)
	var fieldErr FieldError
	if !errors.As(err, &fieldErr) {
		t.Fatalf("旧字段应返回 FieldError，得到 %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(testConfigPath(t, "does-not-exist.toml")); err == nil {
		t.Fatalf("配置文件不存在时应返回错误")
	}
}
