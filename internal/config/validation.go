package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var supportedLogFormats = map[string]struct{}{
	"":     {},
	"json": {},
	"text": {},
}

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort < 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 0-65535（0 表示关闭诊断服务）")
	}
	if _, ok := supportedLogFormats[strings.ToLower(g.LogFormat)]; !ok {
		return newFieldError("Global.LogFormat", "仅支持 json/text")
	}
	if g.RequestTimeout.DurationValue() <= 0 {
		return newFieldError("Global.RequestTimeout", "必须大于 0")
	}
	if g.MaxResponseBytes < 0 {
		return newFieldError("Global.MaxResponseBytes", "不能为负数")
	}
	if g.RefreshConcurrency < 1 {
		return newFieldError("Global.RefreshConcurrency", "必须大于 0")
	}
	if g.ServerURL != "" {
		if err := validateServerURL(g.ServerURL); err != nil {
			return fmt.Errorf("Global.ServerURL: %w", err)
		}
	}

	seen := map[string]struct{}{}
	for i, unit := range c.Units {
		field := func(name string) string { return unitField(i, unit.Alias, name) }
		if unit.IsArbiter() && unit.Data != nil {
			return newFieldError(field("Route/Data"), "只能二选一")
		}
		if !unit.IsArbiter() && unit.Data == nil {
			return newFieldError(field("Route/Data"), "必须二选一")
		}
		if !unit.IsArbiter() && unit.Alias == "" {
			return newFieldError(field("Alias"), "静态单元必须提供 Alias")
		}
		if unit.IsArbiter() && g.ServerURL == "" {
			return newFieldError(field("Route"), "需要配置 Global.ServerURL")
		}
		// 冲突策略允许覆盖时，重复键交给 storage 层处理。
		if !g.AllowCollisions && !g.DontCreateUnitOnCollision {
			key := unit.Location()
			if _, exists := seen[key]; exists {
				return newFieldError(field("Alias"), "重复")
			}
			seen[key] = struct{}{}
		}
	}

	return nil
}

func validateServerURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("缺少 Host: %s", raw)
	}
	return nil
}
