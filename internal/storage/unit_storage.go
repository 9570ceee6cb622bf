package storage

import (
	"sort"

	"github.com/any-hub/arbiter/internal/unit"
)

// View 是注册表的只读视图，CollisionHandler 通过它观察实时成员。
type View interface {
	Has(alias string) bool
}

// UnitStorage 是 alias → Holder 的纯存储，不做任何校验；覆盖与否由调用方先行决定。
type UnitStorage struct {
	units map[string]unit.Holder
}

// NewUnitStorage 创建空注册表。
func NewUnitStorage() *UnitStorage {
	return &UnitStorage{units: make(map[string]unit.Holder)}
}

// GetUnit 返回 alias 对应的单元。
func (s *UnitStorage) GetUnit(alias string) (unit.Holder, bool) {
	u, ok := s.units[alias]
	return u, ok
}

// SetUnit 无条件写入并返回该单元，只应在冲突策略放行后调用。
func (s *UnitStorage) SetUnit(alias string, u unit.Holder) unit.Holder {
	s.units[alias] = u
	return u
}

// DeleteUnit 删除 alias，返回删除前是否存在。
func (s *UnitStorage) DeleteUnit(alias string) bool {
	if _, ok := s.units[alias]; !ok {
		return false
	}
	delete(s.units, alias)
	return true
}

// Has 实现 View。
func (s *UnitStorage) Has(alias string) bool {
	_, ok := s.units[alias]
	return ok
}

// Len 返回已注册单元数量。
func (s *UnitStorage) Len() int {
	return len(s.units)
}

// Aliases 返回按字典序排列的全部 alias。
func (s *UnitStorage) Aliases() []string {
	if len(s.units) == 0 {
		return nil
	}
	keys := make([]string, 0, len(s.units))
	for key := range s.units {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
