package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Course struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	UUID        string         `gorm:"type:char(36) CHARACTER SET utf8 COLLATE utf8_bin;uniqueIndex;not null" json:"uuid"`
	Title       string         `gorm:"type:varchar(255);not null" json:"title" validate:"required,min=3,max=255"`
	Slug        string         `gorm:"type:varchar(255);uniqueIndex" json:"slug"`
	Description string         `gorm:"type:text" json:"description"`
	Price       int64          `gorm:"not null;default:0" json:"price" validate:"gte=0"`
	Currency    string         `gorm:"type:varchar(3);not null;default:'eur'" json:"currency"`
	IsPublished bool           `gorm:"default:false;index" json:"is_published"`
	ViewCount   int64          `gorm:"default:0" json:"view_count"`
	Videos      []Video        `gorm:"many2many:course_videos;" json:"videos,omitempty"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (c *Course) BeforeCreate(tx *gorm.DB) error {
	if c.UUID == "" {
		c.UUID = uuid.New().String()
	}
	return nil
}

func (c *Course) AsProduct() Product {
	return Product{
		ID:          c.ID,
		Type:        ProductTypeCourse,
		Title:       c.Title,
		Price:       c.Price,
		Currency:    c.Currency,
		IsPublished: c.IsPublished,
	}
}

// CourseVideo is the course membership join row. A video listed here is
// transitively entitled through an active purchase of the owning course.
type CourseVideo struct {
	CourseID uint `gorm:"primaryKey" json:"course_id"`
	VideoID  uint `gorm:"primaryKey" json:"video_id"`
	Position int  `gorm:"default:0" json:"position"`
}
