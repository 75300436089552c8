package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/clubops/supporter360/internal/pkg/cache"
	"github.com/clubops/supporter360/internal/pkg/database"
)

// HandleHealthz reports liveness: database and redis must both answer.
func HandleHealthz(c *fiber.Ctx) error {
	db := database.GetDB()
	if db == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "down", "database": "unavailable"})
	}
	sqlDB, err := db.DB()
	if err != nil || sqlDB.Ping() != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "down", "database": "unreachable"})
	}

	if err := cache.Ping(c.Context()); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "down", "cache": "unreachable"})
	}

	return c.JSON(fiber.Map{"status": "ok"})
}
