package routes

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/yang-catalog/catalog-cache/internal/cache"
	"github.com/yang-catalog/catalog-cache/internal/catalog"
	"github.com/yang-catalog/catalog-cache/internal/server"
)

const moduleNotFoundInfo = "Module does not exist."

// RegisterAdminRoutes 暴露按身份键读取/更新单个模块与查询其实现的接口。
// URL 中 :module 为 name@revision，与 :organization 拼成身份键。
func RegisterAdminRoutes(app *fiber.App, store *cache.ModuleStore, index *cache.VendorIndex, logger *logrus.Logger) {
	if app == nil || store == nil {
		return
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	group := app.Group("/api/admin/module")

	group.Get("/:module/:organization", func(c fiber.Ctx) error {
		key := moduleKey(c)
		d, found, err := store.GetOne(c.Context(), key)
		if err != nil {
			return err
		}
		if !found || d.Empty() {
			return renderModuleMissing(c, key)
		}
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Send(d.Raw)
	})

	group.Put("/:module/:organization", func(c fiber.Ctx) error {
		key := moduleKey(c)
		existing, found, err := store.GetOne(c.Context(), key)
		if err != nil {
			return err
		}
		if !found || existing.Empty() {
			return renderModuleMissing(c, key)
		}

		d, err := catalog.ParseDescriptor(c.Body())
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		if err := store.SetOne(c.Context(), key, d); err != nil {
			if errors.Is(err, cache.ErrKeyMismatch) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
			}
			return err
		}

		logger.WithFields(logrus.Fields{
			"action":     "update_module",
			"request_id": server.RequestID(c),
			"module_key": key,
		}).Info("module updated")
		return c.JSON(fiber.Map{"message": "Module " + key + " updated successfully."})
	})

	if index == nil {
		return
	}
	group.Get("/:module/:organization/implementations", func(c fiber.Ctx) error {
		key := moduleKey(c)
		impls, err := index.Implementations(c.Context(), key)
		if err != nil {
			return err
		}
		if impls == nil {
			impls = []catalog.Implementation{}
		}
		return c.JSON(fiber.Map{
			"module":          key,
			"implementations": impls,
		})
	})
}

func moduleKey(c fiber.Ctx) string {
	return c.Params("module") + "/" + c.Params("organization")
}

func renderModuleMissing(c fiber.Ctx, key string) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		key: fiber.Map{"info": moduleNotFoundInfo},
	})
}
