package config

import (
	"errors"
	"net"
	"strings"

	"github.com/yang-catalog/catalog-cache/internal/kv"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if g.LogMaxSize < 0 {
		return newFieldError("Global.LogMaxSize", "不能为负数")
	}
	if g.LogMaxBackups < 0 {
		return newFieldError("Global.LogMaxBackups", "不能为负数")
	}

	if err := c.Backend.validate(); err != nil {
		return err
	}

	if c.Loader.LockTimeout.DurationValue() < 0 {
		return newFieldError("Loader.LockTimeout", "不能为负数")
	}
	return nil
}

func (b *BackendConfig) validate() error {
	normalizedType := strings.ToLower(strings.TrimSpace(b.Type))
	if normalizedType == "" {
		return newFieldError(backendField("Type"), "不能为空")
	}
	if _, ok := kv.Resolve(normalizedType); !ok {
		return newFieldError(backendField("Type"), "仅支持 "+strings.Join(kv.Keys(), "|"))
	}
	b.Type = normalizedType

	if strings.TrimSpace(b.Address) == "" {
		return newFieldError(backendField("Address"), "不能为空")
	}
	if b.Type == "redis" {
		if _, _, err := net.SplitHostPort(b.Address); err != nil {
			return newFieldError(backendField("Address"), "redis 地址应为 host:port")
		}
	}
	if b.DB < 0 {
		return newFieldError(backendField("DB"), "不能为负数")
	}
	if b.Timeout.DurationValue() <= 0 {
		return newFieldError(backendField("Timeout"), "必须大于 0")
	}
	if b.WaitInterval.DurationValue() <= 0 {
		return newFieldError(backendField("WaitInterval"), "必须大于 0")
	}
	if b.WaitAttempts < 0 {
		return newFieldError(backendField("WaitAttempts"), "不能为负数")
	}
	return nil
}
