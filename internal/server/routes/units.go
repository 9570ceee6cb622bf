package routes

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/any-hub/arbiter/internal/server"
	"github.com/any-hub/arbiter/internal/storage"
	"github.com/any-hub/arbiter/internal/unit"
)

// RegisterUnitRoutes 暴露 /-/units 诊断接口，用于查看、刷新与删除注册表中的单元。
// alias 通过查询参数传递，因为 Arbiter 的默认键就是以 / 开头的路由。
func RegisterUnitRoutes(app *fiber.App, registry server.UnitRegistry) {
	if app == nil || registry == nil {
		return
	}

	app.Get("/-/units", func(c fiber.Ctx) error {
		aliases := registry.Aliases()
		result := make([]unitSummary, 0, len(aliases))
		for _, alias := range aliases {
			if held, ok := registry.GetUnit(alias); ok {
				result = append(result, summarize(alias, held))
			}
		}
		return c.JSON(fiber.Map{"units": result})
	})

	app.Get("/-/unit", func(c fiber.Ctx) error {
		alias := c.Query("alias")
		if alias == "" {
			return writeError(c, fiber.StatusBadRequest, "alias_required")
		}
		held, ok := registry.GetUnit(alias)
		if !ok {
			return writeError(c, fiber.StatusNotFound, "unit_not_found")
		}
		summary := summarize(alias, held)
		summary.Data = held.Data()
		return c.JSON(summary)
	})

	app.Post("/-/unit/dispatch", func(c fiber.Ctx) error {
		alias := c.Query("alias")
		if alias == "" {
			return writeError(c, fiber.StatusBadRequest, "alias_required")
		}
		var payload any
		if body := c.Body(); len(strings.TrimSpace(string(body))) > 0 {
			if err := json.Unmarshal(body, &payload); err != nil {
				return writeError(c, fiber.StatusBadRequest, "invalid_payload")
			}
		}

		ctx := c.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		data, err := registry.Dispatch(ctx, alias, payload)
		switch {
		case errors.Is(err, storage.ErrUnitNotFound):
			return writeError(c, fiber.StatusNotFound, "unit_not_found")
		case errors.Is(err, storage.ErrNotFetchable), errors.Is(err, unit.ErrNotImplemented):
			return writeError(c, fiber.StatusConflict, "unit_not_fetchable")
		case err != nil:
			return writeError(c, fiber.StatusInternalServerError, "dispatch_failed")
		}
		return c.JSON(fiber.Map{
			"alias":      alias,
			"data":       data,
			"request_id": server.RequestID(c),
		})
	})

	app.Delete("/-/unit", func(c fiber.Ctx) error {
		alias := c.Query("alias")
		if alias == "" {
			return writeError(c, fiber.StatusBadRequest, "alias_required")
		}
		if !registry.RemoveUnit(alias) {
			return writeError(c, fiber.StatusNotFound, "unit_not_found")
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

type unitSummary struct {
	Alias     string `json:"alias"`
	UnitAlias string `json:"unit_alias"`
	Kind      string `json:"kind"`
	FullURL   string `json:"full_url,omitempty"`
	Data      any    `json:"data,omitempty"`
}

func summarize(location string, held unit.Holder) unitSummary {
	summary := unitSummary{
		Alias:     location,
		UnitAlias: held.Alias(),
		Kind:      kindOf(held),
	}
	if arbiter, ok := held.(*unit.Arbiter); ok {
		summary.FullURL = arbiter.FullURL()
	}
	return summary
}

func kindOf(held unit.Holder) string {
	switch held.(type) {
	case *unit.Arbiter:
		return "arbiter"
	case *unit.Dynamic:
		return "dynamic"
	default:
		return "static"
	}
}

func writeError(c fiber.Ctx, status int, code string) error {
	return c.Status(status).JSON(fiber.Map{"error": code})
}
