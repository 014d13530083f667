package routes

import (
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yang-catalog/catalog-cache/internal/kv"
)

type backendPayload struct {
	Key         string `json:"key"`
	Description string `json:"description"`
	AtomicBatch bool   `json:"atomic_batch"`
	Active      bool   `json:"active"`
}

// RegisterDiagnosticsRoutes 暴露 /-/backends、/-/healthz 与 /metrics，供 SRE 排查后端状态。
// activeType 为当前配置使用的后端驱动。
func RegisterDiagnosticsRoutes(app *fiber.App, backend kv.Backend, activeType string) {
	if app == nil {
		return
	}

	app.Get("/-/backends", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"backends": encodeBackends(kv.List(), activeType)})
	})

	app.Get("/-/healthz", func(c fiber.Ctx) error {
		if backend == nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "no_backend"})
		}
		if err := backend.Ping(c.Context()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "unavailable",
				"error":  err.Error(),
			})
		}
		return c.JSON(fiber.Map{"status": "ok", "backend": activeType})
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
}

func encodeBackends(drivers []kv.Driver, activeType string) []backendPayload {
	if len(drivers) == 0 {
		return nil
	}
	result := make([]backendPayload, 0, len(drivers))
	for _, d := range drivers {
		result = append(result, backendPayload{
			Key:         d.Key,
			Description: d.Description,
			AtomicBatch: d.AtomicBatch,
			Active:      d.Key == activeType,
		})
	}
	return result
}
