// Package transport performs the single GET/POST round trip behind every
// fetchable unit. It owns the shared http.Client, JSON encoding of payloads and
// decoding of responses. Failures are returned as errors; deciding whether a
// failure should clear cached data is left to the caller.
package transport

import (
	"context"
	"errors"
	"reflect"
)

// ErrUnexpectedStatus 表示远端返回了非 2xx 状态码。
var ErrUnexpectedStatus = errors.New("unexpected upstream status")

// Transport 对单个 URL 执行一次请求：payload 为 nil 时 GET，否则以 JSON 正文 POST。
type Transport interface {
	Perform(ctx context.Context, url string, payload any) (any, error)
}

// Func 让普通函数满足 Transport，便于测试注入。
type Func func(ctx context.Context, url string, payload any) (any, error)

// Perform 使 Func 满足 Transport。
func (f Func) Perform(ctx context.Context, url string, payload any) (any, error) {
	return f(ctx, url, payload)
}

// IsAbsent 报告 payload 是否视为缺失：nil 以及包装在接口中的 nil map/slice/指针等。
// 这类值编码后为 null，按 GET 处理。
func IsAbsent(payload any) bool {
	if payload == nil {
		return true
	}
	v := reflect.ValueOf(payload)
	switch v.Kind() {
	case reflect.Map, reflect.Slice, reflect.Pointer, reflect.Interface, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}
