package storage

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/any-hub/arbiter/internal/logging"
	"github.com/any-hub/arbiter/internal/transport"
	"github.com/any-hub/arbiter/internal/unit"
)

// Options 控制 Manager 的冲突策略与依赖注入，零值即最严格策略。
type Options struct {
	Collision CollisionOptions
	Logger    *logrus.Logger
	// Transport 由所有 Arbiter 共享；为 nil 时使用默认 HTTPTransport。
	Transport transport.Transport
	// KeepLastGoodOnFailure 透传给新建的 Arbiter。
	KeepLastGoodOnFailure bool
}

// Manager 组合 UnitStorage 与 CollisionHandler，是创建、替换、删除与刷新单元的唯一入口。
// 冲突检查与写入在同一把锁内完成，多个 goroutine 并发调用时语义与单线程一致。
type Manager struct {
	serverURL string
	logger    *logrus.Logger
	transport transport.Transport
	keepLast  bool

	mu        sync.RWMutex
	storage   *UnitStorage
	collision *CollisionHandler
}

// NewManager 创建 Manager。serverURL 可以为空，此时只能创建静态单元。
func NewManager(serverURL string, opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	tr := opts.Transport
	if tr == nil {
		tr = transport.NewHTTPTransport(nil, logger)
	}

	store := NewUnitStorage()
	return &Manager{
		serverURL: serverURL,
		logger:    logger,
		transport: tr,
		keepLast:  opts.KeepLastGoodOnFailure,
		storage:   store,
		collision: NewCollisionHandler(store, opts.Collision),
	}
}

// ServerURL 返回 Arbiter 使用的基础地址。
func (m *Manager) ServerURL() string {
	return m.serverURL
}

// CollisionOptions 返回当前冲突策略。
func (m *Manager) CollisionOptions() CollisionOptions {
	return m.collision.Options()
}

// AppendUnit 在冲突策略放行时写入单元并返回它；跳过模式下记录警告并返回当前占用者
// （可能为 nil）；禁止覆盖时返回 *CollisionError，注册表保持不变。
func (m *Manager) AppendUnit(alias string, u unit.Holder) (unit.Holder, error) {
	if alias == "" {
		return nil, fmt.Errorf("append alias: %w", unit.ErrInvalidArgument)
	}
	if isNilHolder(u) {
		return nil, fmt.Errorf("append %s: nil unit: %w", alias, unit.ErrInvalidArgument)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendLocked(alias, u)
}

func (m *Manager) appendLocked(alias string, u unit.Holder) (unit.Holder, error) {
	ok, err := m.collision.CanCreateUnitAt(alias)
	if err != nil {
		return nil, err
	}
	if ok {
		return m.storage.SetUnit(alias, u), nil
	}
	return m.skipLocked(alias), nil
}

// skipLocked 处理跳过模式：记录警告并返回当前占用者。
func (m *Manager) skipLocked(alias string) unit.Holder {
	m.logger.WithFields(logrus.Fields{
		"action": "append_unit",
		"alias":  alias,
	}).Warn("unit collides with an existing unit, skipped")

	existing, _ := m.storage.GetUnit(alias)
	return existing
}

// isNilHolder 同时识别 nil 接口与包装了 nil 指针的 Holder（如 (*unit.Unit)(nil)）。
func isNilHolder(u unit.Holder) bool {
	if u == nil {
		return true
	}
	v := reflect.ValueOf(u)
	return v.Kind() == reflect.Pointer && v.IsNil()
}

// CreateAndAppendUnit 创建静态单元并追加到 alias。
func (m *Manager) CreateAndAppendUnit(alias string, data any) (unit.Holder, error) {
	u, err := unit.New(alias, data)
	if err != nil {
		return nil, err
	}
	return m.AppendUnit(alias, u)
}

// CreateAndAppendArbiterUnit 以 serverURL + arbiterRoute 创建 Arbiter。
// 注册键为 alias，alias 为空时使用 arbiterRoute（推荐用法）；Arbiter 自身的 Alias
// 在 alias 为空时回退为完整 URL。serverURL 或 arbiterRoute 为空时在修改注册表之前
// 返回 ConfigurationError；冲突处理与 AppendUnit 完全一致。
func (m *Manager) CreateAndAppendArbiterUnit(arbiterRoute, alias string) (unit.Holder, error) {
	if err := m.checkArbiterUnitData(arbiterRoute); err != nil {
		return nil, err
	}

	fullURL := m.serverURL + arbiterRoute
	location := alias
	if location == "" {
		location = arbiterRoute
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// 先检查冲突，跳过模式下无需构造 Arbiter。
	ok, err := m.collision.CanCreateUnitAt(location)
	if err != nil {
		return nil, err
	}
	if !ok {
		return m.skipLocked(location), nil
	}

	arbiter, err := unit.NewArbiter(fullURL, alias, unit.ArbiterOptions{
		Transport:             m.transport,
		Logger:                m.logger,
		KeepLastGoodOnFailure: m.keepLast,
	})
	if err != nil {
		return nil, err
	}
	return m.storage.SetUnit(location, arbiter), nil
}

func (m *Manager) checkArbiterUnitData(arbiterRoute string) error {
	if m.serverURL == "" {
		return unit.NewConfigurationError("serverUrl", "server url not given")
	}
	if arbiterRoute == "" {
		return unit.NewConfigurationError("arbiterRoute", "arbiter route not given")
	}
	return nil
}

// GetUnit 返回 alias 对应的单元。
func (m *Manager) GetUnit(alias string) (unit.Holder, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.storage.GetUnit(alias)
}

// RemoveUnit 删除 alias，返回删除前是否存在。
func (m *Manager) RemoveUnit(alias string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := m.storage.DeleteUnit(alias)
	if removed {
		m.logger.WithFields(logrus.Fields{
			"action": "remove_unit",
			"alias":  alias,
		}).Debug("unit removed")
	}
	return removed
}

// Aliases 返回按字典序排列的全部注册键。
func (m *Manager) Aliases() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.storage.Aliases()
}

// Len 返回已注册单元数量。
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.storage.Len()
}

// Dispatch 查找 alias 并在其可拉取时执行 Dispatch；payload 为 nil 时发送 GET。
// 网络请求在锁外执行，不会阻塞注册表的其它操作。
func (m *Manager) Dispatch(ctx context.Context, alias string, payload any) (any, error) {
	held, ok := m.GetUnit(alias)
	if !ok {
		return nil, fmt.Errorf("%s: %w", alias, ErrUnitNotFound)
	}
	fetchable, ok := held.(unit.Fetchable)
	if !ok {
		return nil, fmt.Errorf("%s: %w", alias, ErrNotFetchable)
	}
	return fetchable.Dispatch(ctx, payload)
}

// RefreshAll 以最多 concurrency 个并发对所有可拉取单元执行 GET 刷新，返回刷新后持有数据的
// 单元数量。拉取失败的单元数据被清空（或保留旧值）且不返回错误，只有返回非 nil 数据的才计数。
// 未实现拉取的动态单元会被跳过。
func (m *Manager) RefreshAll(ctx context.Context, concurrency int) (int, error) {
	targets := m.fetchables()
	if len(targets) == 0 {
		return 0, nil
	}
	if concurrency < 1 {
		concurrency = 1
	}

	var refreshed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, target := range targets {
		g.Go(func() error {
			data, err := target.Dispatch(gctx, nil)
			if err != nil {
				if errors.Is(err, unit.ErrNotImplemented) {
					return nil
				}
				return err
			}
			if data != nil {
				refreshed.Add(1)
			}
			return nil
		})
	}
	err := g.Wait()

	m.logger.WithFields(logrus.Fields{
		"action":    "refresh_all",
		"targets":   len(targets),
		"refreshed": refreshed.Load(),
	}).Info("refresh complete")

	return int(refreshed.Load()), err
}

func (m *Manager) fetchables() []unit.Fetchable {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []unit.Fetchable
	for _, alias := range m.storage.Aliases() {
		held, _ := m.storage.GetUnit(alias)
		if f, ok := held.(unit.Fetchable); ok {
			result = append(result, f)
		}
	}
	return result
}
