package controllers

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/skillmarket/SkillMarket/app/models"
	"github.com/skillmarket/SkillMarket/internal/pkg/usercontext"
)

// HandleUserPurchases is GET /api/v1/user/purchases. It lists the caller's
// active entitlements grouped by product kind.
func HandleUserPurchases(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	owned, err := checkoutService.ListActivePurchases(ctx, userCtx.UserID)
	if err != nil {
		log.Printf("[Library] listing purchases for user %d failed: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	return c.JSON(fiber.Map{
		"videos":  emptyIfNil(owned[models.ProductTypeVideo]),
		"courses": emptyIfNil(owned[models.ProductTypeCourse]),
		"prompts": emptyIfNil(owned[models.ProductTypePrompt]),
	})
}

func emptyIfNil(purchases []models.Purchase) []models.Purchase {
	if purchases == nil {
		return []models.Purchase{}
	}
	return purchases
}
