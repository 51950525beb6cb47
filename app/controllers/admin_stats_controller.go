package controllers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/skillmarket/SkillMarket/internal/pkg/statistics"
)

// HandleAdminRevenueStats is GET /api/v1/admin/stats/revenue. Admin only,
// enforced by the router middleware.
func HandleAdminRevenueStats(c *fiber.Ctx) error {
	statistics.UpdateCacheIfNeeded()

	data, err := statistics.GetRevenueData()
	if err != nil {
		log.Printf("[Admin] revenue statistics failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}
	return c.JSON(data)
}
