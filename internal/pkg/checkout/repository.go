package checkout

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/skillmarket/SkillMarket/app/models"
)

// Repository provides the DB operations used by the checkout service.
type Repository interface {
	GetProduct(t models.ProductType, productID uint) (*models.Product, error)
	GetUserEmail(userID uint) (string, error)
	// CreatePurchaseIfNotExists inserts an entitlement row guarded by the
	// unique (user_id, product_id, status) index. It reports false when the
	// row already existed; a conflict is not an error.
	CreatePurchaseIfNotExists(t models.ProductType, purchase *models.Purchase) (bool, error)
	ListActivePurchasesByUser(t models.ProductType, userID uint) ([]models.Purchase, error)
	CreateAttempt(attempt *models.CheckoutAttempt) error
	CreateWebhookEventIfNotExists(event *models.PaymentWebhookEvent) (bool, *models.PaymentWebhookEvent, error)
	MarkWebhookProcessed(id uint, processingError string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a checkout repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetProduct(t models.ProductType, productID uint) (*models.Product, error) {
	var p models.Product
	err := r.db.Table(t.CatalogTable()).
		Select("id", "title", "price", "currency", "is_published").
		Where("id = ? AND deleted_at IS NULL", productID).
		Take(&p).Error
	if err != nil {
		return nil, err
	}
	p.Type = t
	return &p, nil
}

func (r *gormRepository) GetUserEmail(userID uint) (string, error) {
	var user models.User
	if err := r.db.Select("email").First(&user, userID).Error; err != nil {
		return "", err
	}
	return user.Email, nil
}

func (r *gormRepository) CreatePurchaseIfNotExists(t models.ProductType, purchase *models.Purchase) (bool, error) {
	tx := r.db.Table(t.PurchasesTable()).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "user_id"},
			{Name: "product_id"},
			{Name: "status"},
		},
		DoNothing: true,
	}).Create(purchase)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *gormRepository) ListActivePurchasesByUser(t models.ProductType, userID uint) ([]models.Purchase, error) {
	var purchases []models.Purchase
	err := r.db.Table(t.PurchasesTable()).
		Where("user_id = ? AND status = ?", userID, models.PurchaseStatusActive).
		Order("created_at DESC").
		Find(&purchases).Error
	return purchases, err
}

func (r *gormRepository) CreateAttempt(attempt *models.CheckoutAttempt) error {
	return r.db.Create(attempt).Error
}

func (r *gormRepository) CreateWebhookEventIfNotExists(event *models.PaymentWebhookEvent) (bool, *models.PaymentWebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.PaymentWebhookEvent
	if err := r.db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.Model(&models.PaymentWebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}

// IsNotFound reports whether err is the storage layer's record-not-found.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
