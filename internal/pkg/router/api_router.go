package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/skillmarket/SkillMarket/app/controllers"
	"github.com/skillmarket/SkillMarket/internal/pkg/middleware"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	// Payment provider webhooks bypass the rate limiter; retries from the
	// provider must not be throttled. Signature verification happens in the
	// controller.
	app.Post("/api/v1/webhook/stripe", controllers.HandleStripeWebhook)

	api := app.Group("/api", limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	v1 := api.Group("/v1")

	// Catalog
	v1.Get("/products/:type", controllers.HandleListProducts)
	v1.Get("/products/:type/:id", controllers.HandleGetProduct)

	// Checkout and library
	v1.Post("/checkout", middleware.RequireAPISessionAuth, controllers.HandleCreateCheckout)
	v1.Get("/user/me", middleware.RequireAPISessionAuth, controllers.HandleUserMe)
	v1.Get("/user/purchases", middleware.RequireAPISessionAuth, controllers.HandleUserPurchases)

	// Entitlement-gated content delivery
	v1.Get("/content/video/:id", middleware.RequireAPISessionAuth, controllers.HandleVideoContent)

	// Admin
	v1.Get("/admin/stats/revenue", middleware.RequireAPIAdmin, controllers.HandleAdminRevenueStats)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
