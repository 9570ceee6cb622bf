package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrCollision 是 CollisionError 的哨兵值。
	ErrCollision = errors.New("unit collision")
	// ErrUnitNotFound 表示注册表中不存在该 alias。
	ErrUnitNotFound = errors.New("unit not found")
	// ErrNotFetchable 表示该单元不具备远端拉取能力。
	ErrNotFetchable = errors.New("unit is not fetchable")
)

// CollisionError 表示 alias 已被占用且当前策略禁止覆盖。
type CollisionError struct {
	Alias string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("unit %q already exists: collisions are not allowed", e.Alias)
}

// Is 让 errors.Is(err, ErrCollision) 对所有 CollisionError 成立。
func (e *CollisionError) Is(target error) bool {
	return target == ErrCollision
}
