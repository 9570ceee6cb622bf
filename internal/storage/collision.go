package storage

// CollisionOptions 描述冲突策略，零值即最严格策略：任何冲突都返回错误。
type CollisionOptions struct {
	// AllowCollisions 允许在已存在的 alias 上覆盖写入。
	AllowCollisions bool
	// DontCreateUnitOnCollision 优先于 AllowCollisions：冲突时静默跳过，不返回错误。
	DontCreateUnitOnCollision bool
}

// CollisionHandler 借用注册表的实时视图，判断某个 alias 是否允许创建单元。
type CollisionHandler struct {
	view    View
	options CollisionOptions
}

// NewCollisionHandler 绑定注册表视图与策略。
func NewCollisionHandler(view View, opts CollisionOptions) *CollisionHandler {
	return &CollisionHandler{view: view, options: opts}
}

// Options 返回当前策略。
func (h *CollisionHandler) Options() CollisionOptions {
	return h.options
}

// CanCreateUnitAt 返回 alias 是否可以写入：
// 未占用 → true；跳过模式 → false；禁止覆盖 → *CollisionError；其余 → true（覆盖）。
func (h *CollisionHandler) CanCreateUnitAt(alias string) (bool, error) {
	if !h.view.Has(alias) {
		return true, nil
	}
	if h.options.DontCreateUnitOnCollision {
		return false, nil
	}
	if !h.options.AllowCollisions {
		return false, &CollisionError{Alias: alias}
	}
	return true, nil
}
