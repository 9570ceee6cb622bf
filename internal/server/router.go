package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/arbiter/internal/unit"
)

// UnitRegistry 是诊断服务依赖的注册表能力，storage.Manager 满足该接口。
type UnitRegistry interface {
	Aliases() []string
	GetUnit(alias string) (unit.Holder, bool)
	RemoveUnit(alias string) bool
	Dispatch(ctx context.Context, alias string, payload any) (any, error)
}

// AppOptions 控制诊断服务的依赖与监听端口。
type AppOptions struct {
	Logger     *logrus.Logger
	Registry   UnitRegistry
	ListenPort int
}

const contextKeyRequestID = "_arbiter_request_id"

// NewApp 构建带 recover 与请求 ID 中间件的 Fiber 应用，路由由 routes 包注册。
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Registry == nil {
		return nil, errors.New("unit registry is required")
	}
	if opts.ListenPort <= 0 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestContextMiddleware(opts.Logger))

	return app, nil
}

// requestContextMiddleware 为每个请求生成请求 ID，并在完成后输出访问日志。
func requestContextMiddleware(logger *logrus.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)

		err := c.Next()

		logger.WithFields(logrus.Fields{
			"action":     "diagnostics",
			"method":     c.Method(),
			"path":       c.Path(),
			"status":     c.Response().StatusCode(),
			"request_id": reqID,
		}).Debug("request handled")
		return err
	}
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}
