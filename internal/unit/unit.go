package unit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/tidwall/gjson"
)

// Holder 是注册表实际保存的对象，静态 Unit 与 Arbiter 都满足该接口。
type Holder interface {
	Alias() string
	Data() any
	SetData(any)
}

// Fetchable 描述可以从远端刷新数据的单元。payload 为 nil 时走 GET，否则走 POST。
type Fetchable interface {
	Holder
	Dispatch(ctx context.Context, payload any) (any, error)
}

// Unit 是最基础的数据单元：alias 构造后不可变，data 可随时替换。
type Unit struct {
	alias string

	mu   sync.RWMutex
	data any
}

// New 创建静态单元，alias 不能为空。
func New(alias string, data any) (*Unit, error) {
	if alias == "" {
		return nil, fmt.Errorf("unit alias: %w", ErrInvalidArgument)
	}
	return &Unit{alias: alias, data: data}, nil
}

// Alias 返回单元的别名。
func (u *Unit) Alias() string {
	return u.alias
}

// Data 返回当前缓存的数据，nil 表示缺失。
func (u *Unit) Data() any {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.data
}

// SetData 覆盖当前数据。
func (u *Unit) SetData(data any) {
	u.mu.Lock()
	u.data = data
	u.mu.Unlock()
}

// Query 以 gjson 路径语法读取当前数据中的字段，例如 "items.0.name"。
// 数据缺失或无法编码为 JSON 时返回空结果。
func (u *Unit) Query(path string) gjson.Result {
	data := u.Data()
	if data == nil {
		return gjson.Result{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return gjson.Result{}
	}
	return gjson.GetBytes(raw, path)
}

// Dynamic 是仅声明拉取能力、未提供具体实现的单元。
type Dynamic struct {
	*Unit
}

// NewDynamic 创建一个没有远端来源的动态单元。
func NewDynamic(alias string) (*Dynamic, error) {
	base, err := New(alias, nil)
	if err != nil {
		return nil, err
	}
	return &Dynamic{Unit: base}, nil
}

// Dispatch 对基础动态单元总是返回 ErrNotImplemented。
func (d *Dynamic) Dispatch(context.Context, any) (any, error) {
	return nil, fmt.Errorf("unit %s: %w", d.alias, ErrNotImplemented)
}
