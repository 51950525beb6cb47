package repository

import (
	"gorm.io/gorm"

	"github.com/skillmarket/SkillMarket/app/models"
)

type catalogRepository struct {
	db *gorm.DB
}

// NewCatalogRepository creates a catalog repository backed by GORM
func NewCatalogRepository(db *gorm.DB) CatalogRepository {
	return &catalogRepository{db: db}
}

func (r *catalogRepository) GetVideoByID(id uint) (*models.Video, error) {
	var video models.Video
	if err := r.db.First(&video, id).Error; err != nil {
		return nil, err
	}
	return &video, nil
}

func (r *catalogRepository) GetCourseByID(id uint) (*models.Course, error) {
	var course models.Course
	if err := r.db.First(&course, id).Error; err != nil {
		return nil, err
	}
	return &course, nil
}

func (r *catalogRepository) GetCourseWithVideos(id uint) (*models.Course, error) {
	var course models.Course
	if err := r.db.Preload("Videos").First(&course, id).Error; err != nil {
		return nil, err
	}
	return &course, nil
}

func (r *catalogRepository) GetPromptByID(id uint) (*models.Prompt, error) {
	var prompt models.Prompt
	if err := r.db.First(&prompt, id).Error; err != nil {
		return nil, err
	}
	return &prompt, nil
}

func (r *catalogRepository) GetProduct(t models.ProductType, id uint) (*models.Product, error) {
	switch t {
	case models.ProductTypeCourse:
		course, err := r.GetCourseByID(id)
		if err != nil {
			return nil, err
		}
		p := course.AsProduct()
		return &p, nil
	case models.ProductTypePrompt:
		prompt, err := r.GetPromptByID(id)
		if err != nil {
			return nil, err
		}
		p := prompt.AsProduct()
		return &p, nil
	default:
		video, err := r.GetVideoByID(id)
		if err != nil {
			return nil, err
		}
		p := video.AsProduct()
		return &p, nil
	}
}

func (r *catalogRepository) ListPublished(t models.ProductType, offset, limit int) ([]models.Product, error) {
	var products []models.Product
	err := r.db.Table(t.CatalogTable()).
		Select("id", "title", "price", "currency", "is_published").
		Where("is_published = ? AND deleted_at IS NULL", true).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	for i := range products {
		products[i].Type = t
	}
	return products, nil
}

func (r *catalogRepository) CountPublished(t models.ProductType) (int64, error) {
	var count int64
	err := r.db.Table(t.CatalogTable()).
		Where("is_published = ? AND deleted_at IS NULL", true).
		Count(&count).Error
	return count, err
}
