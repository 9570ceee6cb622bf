package config

import (
	"fmt"
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

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyGlobalDefaults(&cfg.Global)
	for i := range cfg.Units {
		normalizeUnit(&cfg.Units[i])
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ServerURL", "")
	v.SetDefault("ListenPort", 0)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFormat", "json")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("AllowCollisions", false)
	v.SetDefault("DontCreateUnitOnCollision", false)
	v.SetDefault("KeepLastGoodOnFailure", false)
	v.SetDefault("RequestTimeout", "30s")
	v.SetDefault("MaxResponseBytes", 32*1024*1024)
	v.SetDefault("RefreshConcurrency", 4)
}

func applyGlobalDefaults(g *GlobalConfig) {
	g.ServerURL = strings.TrimSpace(g.ServerURL)
	if g.LogLevel == "" {
		g.LogLevel = "info"
	}
	if g.RequestTimeout.DurationValue() == 0 {
		g.RequestTimeout = Duration(30 * time.Second)
	}
	if g.RefreshConcurrency == 0 {
		g.RefreshConcurrency = 4
	}
}

// normalizeUnit 只裁剪空白；Route 保持原样拼接，不做斜杠补全。
func normalizeUnit(u *UnitConfig) {
	u.Alias = strings.TrimSpace(u.Alias)
	u.Route = strings.TrimSpace(u.Route)
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
