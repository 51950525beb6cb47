package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/skillmarket/SkillMarket/app/controllers"
	"github.com/skillmarket/SkillMarket/app/repository"
	"github.com/skillmarket/SkillMarket/internal/pkg/database"
	"github.com/skillmarket/SkillMarket/internal/pkg/middleware"
	"github.com/skillmarket/SkillMarket/internal/pkg/session"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// init session
	session.NewSessionStore()

	// Apply UserContext middleware globally as first middleware
	app.Use(middleware.UserContextMiddleware)

	// Shared repositories and controller wiring
	repository.InitializeGlobalFactory(database.GetDB())
	controllers.InitializeCheckoutController()
	controllers.InitializeContentController()
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}
