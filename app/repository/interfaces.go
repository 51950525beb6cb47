package repository

import (
	"github.com/skillmarket/SkillMarket/app/models"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	Update(user *models.User) error
	Count() (int64, error)
}

// CatalogRepository defines read-only lookups over the three product
// catalogs. The purchase flow never mutates catalog rows.
type CatalogRepository interface {
	GetVideoByID(id uint) (*models.Video, error)
	GetCourseByID(id uint) (*models.Course, error)
	GetCourseWithVideos(id uint) (*models.Course, error)
	GetPromptByID(id uint) (*models.Prompt, error)
	GetProduct(t models.ProductType, id uint) (*models.Product, error)
	ListPublished(t models.ProductType, offset, limit int) ([]models.Product, error)
	CountPublished(t models.ProductType) (int64, error)
}
