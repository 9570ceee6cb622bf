package storage

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/arbiter/internal/config"
	"github.com/any-hub/arbiter/internal/transport"
)

// NewManagerFromConfig 根据全局配置构建 Manager 及其共享 HTTPTransport。
func NewManagerFromConfig(cfg *config.Config, logger *logrus.Logger) *Manager {
	g := cfg.Global
	client := transport.NewClient(g.RequestTimeout.DurationValue())
	tr := transport.NewHTTPTransport(client, logger).WithMaxResponseBytes(g.MaxResponseBytes)

	return NewManager(g.ServerURL, Options{
		Collision: CollisionOptions{
			AllowCollisions:           g.AllowCollisions,
			DontCreateUnitOnCollision: g.DontCreateUnitOnCollision,
		},
		Logger:                logger,
		Transport:             tr,
		KeepLastGoodOnFailure: g.KeepLastGoodOnFailure,
	})
}

// Preload 按顺序创建配置中声明的单元；单个失败不会中断其余条目，所有错误合并返回。
func (m *Manager) Preload(units []config.UnitConfig) error {
	var errs *multierror.Error
	for i, uc := range units {
		var err error
		if uc.IsArbiter() {
			_, err = m.CreateAndAppendArbiterUnit(uc.Route, uc.Alias)
		} else {
			_, err = m.CreateAndAppendUnit(uc.Alias, uc.Data)
		}
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("unit #%d (%s): %w", i, uc.Location(), err))
		}
	}

	m.logger.WithFields(logrus.Fields{
		"action":   "preload",
		"declared": len(units),
		"stored":   m.Len(),
	}).Info("units preloaded")

	return errs.ErrorOrNil()
}
