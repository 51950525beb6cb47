package attemptlog

import (
	"log"

	"gorm.io/gorm"

	"github.com/skillmarket/SkillMarket/app/models"
)

// Recorder persists a single attempt row.
type Recorder interface {
	CreateAttempt(attempt *models.CheckoutAttempt) error
}

type gormRecorder struct {
	db *gorm.DB
}

func (r *gormRecorder) CreateAttempt(attempt *models.CheckoutAttempt) error {
	return r.db.Create(attempt).Error
}

// Logger appends checkout attempt rows as a best-effort audit trail. A failed
// write is reported to the operational log and otherwise discarded; audit
// completeness is not a correctness requirement of the purchase itself.
type Logger struct {
	rec Recorder
}

// NewLogger creates an attempt logger from an injected recorder.
func NewLogger(rec Recorder) *Logger {
	return &Logger{rec: rec}
}

// NewLoggerFromDB creates an attempt logger backed by GORM.
func NewLoggerFromDB(db *gorm.DB) *Logger {
	return NewLogger(&gormRecorder{db: db})
}

// Record appends one attempt row. It never returns an error.
func (l *Logger) Record(userID, productID uint, productType models.ProductType, status, errorMessage string) {
	if l == nil || l.rec == nil {
		return
	}
	attempt := &models.CheckoutAttempt{
		UserID:       userID,
		ProductID:    productID,
		ProductType:  productType,
		Status:       status,
		ErrorMessage: errorMessage,
	}
	if err := l.rec.CreateAttempt(attempt); err != nil {
		log.Printf("attemptlog: failed to record %s attempt for %s %d (user %d): %v",
			status, productType, productID, userID, err)
	}
}
