package handlers

import (
	"quicksurf/internal/repositories"
	"quicksurf/internal/utils"

	"github.com/gofiber/fiber/v2"
)

// HealthCheck reports the service and its dependencies.
func HealthCheck(c *fiber.Ctx) error {
	status := fiber.Map{"status": "ok"}

	if repositories.DB != nil {
		sqlDB, err := repositories.DB.DB()
		if err != nil || sqlDB.Ping() != nil {
			status["database"] = "down"
			status["status"] = "degraded"
		} else {
			status["database"] = "up"
		}
	}

	if repositories.CacheService != nil {
		if err := repositories.CacheService.HealthCheck(c.Context()); err != nil {
			status["cache"] = "down"
			status["status"] = "degraded"
		} else {
			status["cache"] = "up"
		}
	}

	return utils.Success(c, status)
}
