package controllers

import (
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/skillmarket/SkillMarket/app/models"
	"github.com/skillmarket/SkillMarket/app/repository"
	"github.com/skillmarket/SkillMarket/internal/pkg/cache"
	"github.com/skillmarket/SkillMarket/internal/pkg/metrics/counter"
)

const productCacheTTL = 5 * time.Minute

// HandleGetProduct is GET /api/v1/products/:type/:id. Published catalog rows
// are cached in Redis; views are counted in the background on every hit.
func HandleGetProduct(c *fiber.Ctx) error {
	t, err := models.ParseProductType(c.Params("type"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "invalid_product",
			"message": "Unknown product type",
		})
	}
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "invalid_product",
			"message": "Invalid product id",
		})
	}

	cacheKey := "catalog:product:" + string(t) + ":" + c.Params("id")
	if cached, cerr := cache.Get(cacheKey); cerr == nil && cached != "" {
		go recordProductView(t, uint(id))
		c.Set("X-Cache", "HIT")
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.SendString(cached)
	}

	repo := repository.GetGlobalFactory().GetCatalogRepository()
	product, err := repo.GetProduct(t, uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found"})
		}
		log.Printf("[Catalog] lookup %s/%d failed: %v", t, id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}
	if !product.IsPublished {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found"})
	}

	if payload, merr := json.Marshal(product); merr == nil {
		if cerr := cache.Set(cacheKey, string(payload), productCacheTTL); cerr != nil {
			log.Printf("[Catalog] cache write failed: %v", cerr)
		}
	}

	go recordProductView(t, uint(id))
	return c.JSON(product)
}

// HandleListProducts is GET /api/v1/products/:type. Supports page and
// page_size query parameters.
func HandleListProducts(c *fiber.Ctx) error {
	t, err := models.ParseProductType(c.Params("type"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "invalid_product",
			"message": "Unknown product type",
		})
	}

	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	pageSize := c.QueryInt("page_size", 20)
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	repo := repository.GetGlobalFactory().GetCatalogRepository()
	products, err := repo.ListPublished(t, (page-1)*pageSize, pageSize)
	if err != nil {
		log.Printf("[Catalog] list %s failed: %v", t, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}
	total, err := repo.CountPublished(t)
	if err != nil {
		log.Printf("[Catalog] count %s failed: %v", t, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	return c.JSON(fiber.Map{
		"items":     products,
		"page":      page,
		"page_size": pageSize,
		"total":     total,
	})
}

func recordProductView(t models.ProductType, productID uint) {
	if err := counter.AddProductView(t, productID); err != nil {
		log.Printf("[Catalog] view counter for %s/%d failed: %v", t, productID, err)
	}
}
