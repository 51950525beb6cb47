package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Prompt struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	UUID        string         `gorm:"type:char(36) CHARACTER SET utf8 COLLATE utf8_bin;uniqueIndex;not null" json:"uuid"`
	Title       string         `gorm:"type:varchar(255);not null" json:"title" validate:"required,min=3,max=255"`
	Slug        string         `gorm:"type:varchar(255);uniqueIndex" json:"slug"`
	Description string         `gorm:"type:text" json:"description"`
	Body        string         `gorm:"type:longtext" json:"-"` // the prompt text itself, only shown to owners
	Price       int64          `gorm:"not null;default:0" json:"price" validate:"gte=0"`
	Currency    string         `gorm:"type:varchar(3);not null;default:'eur'" json:"currency"`
	IsPublished bool           `gorm:"default:false;index" json:"is_published"`
	ViewCount   int64          `gorm:"default:0" json:"view_count"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (p *Prompt) BeforeCreate(tx *gorm.DB) error {
	if p.UUID == "" {
		p.UUID = uuid.New().String()
	}
	return nil
}

func (p *Prompt) AsProduct() Product {
	return Product{
		ID:          p.ID,
		Type:        ProductTypePrompt,
		Title:       p.Title,
		Price:       p.Price,
		Currency:    p.Currency,
		IsPublished: p.IsPublished,
	}
}
