package unit

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument 表示构造参数缺失，例如空 alias。
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotImplemented 表示调用了未提供具体拉取实现的 Dispatch。
	ErrNotImplemented = errors.New("dispatch not implemented")
	// ErrConfiguration 是 ConfigurationError 的哨兵值，便于 errors.Is 判断。
	ErrConfiguration = errors.New("configuration error")
)

// ConfigurationError 指出缺失或为空的配置字段（serverUrl/arbiterRoute/fullUrl）。
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "not given"
	}
	return fmt.Sprintf("%s: %s", e.Field, reason)
}

// Is 让 errors.Is(err, ErrConfiguration) 对所有 ConfigurationError 成立。
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// NewConfigurationError 创建包含字段名的配置错误。
func NewConfigurationError(field, reason string) error {
	return &ConfigurationError{Field: field, Reason: reason}
}
