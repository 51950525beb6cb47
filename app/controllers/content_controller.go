package controllers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/skillmarket/SkillMarket/app/repository"
	"github.com/skillmarket/SkillMarket/internal/pkg/database"
	"github.com/skillmarket/SkillMarket/internal/pkg/entitlements"
	"github.com/skillmarket/SkillMarket/internal/pkg/storage"
	"github.com/skillmarket/SkillMarket/internal/pkg/usercontext"
)

var (
	contentStore      *storage.ContentStore
	entitlementsStore entitlements.Store
)

// InitializeContentController wires the entitlement store against the shared
// DB handle and the S3 presigner from the environment. A missing S3 config is
// tolerated so the rest of the API stays up.
func InitializeContentController() {
	entitlementsStore = entitlements.NewStore(database.GetDB())

	store, err := storage.NewContentStoreFromEnv()
	if err != nil {
		log.Printf("[Content] delivery disabled, storage not configured: %v", err)
		return
	}
	contentStore = store
}

// SetContentController replaces the wired stores. Used by tests.
func SetContentController(store *storage.ContentStore, ents entitlements.Store) {
	contentStore = store
	entitlementsStore = ents
}

// HandleVideoContent is GET /api/v1/content/video/:id. It returns a
// short-lived download URL when the caller owns the video directly or
// through a course.
func HandleVideoContent(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_product"})
	}

	access, err := entitlements.CanAccessVideo(entitlementsStore, userCtx.UserID, uint(id))
	if err != nil {
		log.Printf("[Content] entitlement check for user %d video %d failed: %v", userCtx.UserID, id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}
	if !access.Granted {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":   "not_entitled",
			"message": "You do not own this video",
		})
	}

	video, err := repository.GetGlobalFactory().GetCatalogRepository().GetVideoByID(uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	if contentStore == nil || video.ObjectKey == "" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "content_unavailable"})
	}

	url, err := contentStore.PresignDownload(c.Context(), video.ObjectKey)
	if err != nil {
		log.Printf("[Content] presign for video %d failed: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	resp := fiber.Map{"url": url, "via": access.Via}
	if access.Course != nil {
		resp["courseId"] = access.Course.ID
	}
	return c.JSON(resp)
}
