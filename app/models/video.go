package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Video struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	UUID            string         `gorm:"type:char(36) CHARACTER SET utf8 COLLATE utf8_bin;uniqueIndex;not null" json:"uuid"`
	Title           string         `gorm:"type:varchar(255);not null" json:"title" validate:"required,min=3,max=255"`
	Slug            string         `gorm:"type:varchar(255);uniqueIndex" json:"slug"`
	Description     string         `gorm:"type:text" json:"description"`
	Price           int64          `gorm:"not null;default:0" json:"price" validate:"gte=0"`
	Currency        string         `gorm:"type:varchar(3);not null;default:'eur'" json:"currency"`
	IsPublished     bool           `gorm:"default:false;index" json:"is_published"`
	ObjectKey       string         `gorm:"type:varchar(512)" json:"-"` // S3 key of the source asset
	PreviewURL      string         `gorm:"type:varchar(512)" json:"preview_url"`
	DurationSeconds int            `gorm:"default:0" json:"duration_seconds"`
	ViewCount       int64          `gorm:"default:0" json:"view_count"`
	CreatedAt       time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

func (v *Video) BeforeCreate(tx *gorm.DB) error {
	if v.UUID == "" {
		v.UUID = uuid.New().String()
	}
	return nil
}

// AsProduct projects the catalog row into the kind-neutral product view.
func (v *Video) AsProduct() Product {
	return Product{
		ID:          v.ID,
		Type:        ProductTypeVideo,
		Title:       v.Title,
		Price:       v.Price,
		Currency:    v.Currency,
		IsPublished: v.IsPublished,
	}
}
