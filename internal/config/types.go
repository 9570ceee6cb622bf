package config

import (
	"strings"
	"time"
)

// Duration 由 durationDecodeHook 解析，兼容纯秒数值与 Go Duration 字符串。
type Duration time.Duration

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// GlobalConfig 描述全局运行时行为：远端基础地址、冲突策略、日志与诊断端口。
type GlobalConfig struct {
	ServerURL                 string   `mapstructure:"ServerURL"`
	ListenPort                int      `mapstructure:"ListenPort"`
	LogLevel                  string   `mapstructure:"LogLevel"`
	LogFormat                 string   `mapstructure:"LogFormat"`
	LogFilePath               string   `mapstructure:"LogFilePath"`
	LogMaxSize                int      `mapstructure:"LogMaxSize"`
	LogMaxBackups             int      `mapstructure:"LogMaxBackups"`
	LogCompress               bool     `mapstructure:"LogCompress"`
	AllowCollisions           bool     `mapstructure:"AllowCollisions"`
	DontCreateUnitOnCollision bool     `mapstructure:"DontCreateUnitOnCollision"`
	KeepLastGoodOnFailure     bool     `mapstructure:"KeepLastGoodOnFailure"`
	RequestTimeout            Duration `mapstructure:"RequestTimeout"`
	MaxResponseBytes          int64    `mapstructure:"MaxResponseBytes"`
	RefreshConcurrency        int      `mapstructure:"RefreshConcurrency"`
}

// UnitConfig 声明启动时预加载的单元：Route 与 Data 二选一。
// Route 非空时创建 Arbiter，Alias 为空则以 Route 作为注册键。
type UnitConfig struct {
	Alias string `mapstructure:"Alias"`
	Route string `mapstructure:"Route"`
	Data  any    `mapstructure:"Data"`
}

// IsArbiter 表示该条目是否指向远端路由。
func (u UnitConfig) IsArbiter() bool {
	return strings.TrimSpace(u.Route) != ""
}

// Location 返回该条目在注册表中的键。
func (u UnitConfig) Location() string {
	if u.Alias != "" {
		return u.Alias
	}
	return u.Route
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global GlobalConfig `mapstructure:",squash"`
	Units  []UnitConfig `mapstructure:"Unit"`
}

// ArbiterCount 返回配置中远端单元的数量，供启动日志使用。
func (c *Config) ArbiterCount() int {
	if c == nil {
		return 0
	}
	count := 0
	for _, u := range c.Units {
		if u.IsArbiter() {
			count++
		}
	}
	return count
}
