package entitlements

import (
	"errors"

	"gorm.io/gorm"

	"github.com/skillmarket/SkillMarket/app/models"
)

// Store is the read side of the entitlement tables. All operations are pure
// lookups, safe to call concurrently and repeatedly.
type Store interface {
	// HasActivePurchase reports whether an active entitlement exists for the
	// exact (user, product) pair.
	HasActivePurchase(t models.ProductType, userID, productID uint) (bool, error)
	// CourseGrantingVideo returns a course the user holds an active
	// entitlement for that lists the video among its members, or nil if the
	// video is not reachable through any owned course.
	CourseGrantingVideo(userID, videoID uint) (*models.Course, error)
}

type gormStore struct {
	db *gorm.DB
}

// NewStore creates an entitlement reader backed by GORM.
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) HasActivePurchase(t models.ProductType, userID, productID uint) (bool, error) {
	var count int64
	err := s.db.Table(t.PurchasesTable()).
		Where("user_id = ? AND product_id = ? AND status = ?", userID, productID, models.PurchaseStatusActive).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// grantingCourseQuery builds the lookup for a live course that both lists the
// video and is actively owned by the user. Soft-deleted courses never grant
// derived access.
func (s *gormStore) grantingCourseQuery(userID, videoID uint) *gorm.DB {
	return s.db.Table("courses").
		Joins("JOIN course_videos ON course_videos.course_id = courses.id").
		Joins("JOIN course_purchases ON course_purchases.product_id = courses.id").
		Where("courses.deleted_at IS NULL").
		Where("course_videos.video_id = ?", videoID).
		Where("course_purchases.user_id = ? AND course_purchases.status = ?", userID, models.PurchaseStatusActive)
}

func (s *gormStore) CourseGrantingVideo(userID, videoID uint) (*models.Course, error) {
	var course models.Course
	err := s.grantingCourseQuery(userID, videoID).First(&course).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &course, nil
}

// Access describes how a caller is entitled to a piece of content.
type Access struct {
	Granted bool
	// Via is "direct" or "course" when Granted.
	Via string
	// Course is set when access is derived from course membership.
	Course *models.Course
}

// CanAccessVideo resolves video access: a direct active entitlement wins,
// otherwise membership in an actively owned course grants derived access.
func CanAccessVideo(s Store, userID, videoID uint) (Access, error) {
	direct, err := s.HasActivePurchase(models.ProductTypeVideo, userID, videoID)
	if err != nil {
		return Access{}, err
	}
	if direct {
		return Access{Granted: true, Via: "direct"}, nil
	}

	course, err := s.CourseGrantingVideo(userID, videoID)
	if err != nil {
		return Access{}, err
	}
	if course != nil {
		return Access{Granted: true, Via: "course", Course: course}, nil
	}
	return Access{}, nil
}

// CanAccess resolves access for any product kind. Only videos have a derived
// path; courses and prompts require a direct entitlement.
func CanAccess(s Store, t models.ProductType, userID, productID uint) (Access, error) {
	if t == models.ProductTypeVideo {
		return CanAccessVideo(s, userID, productID)
	}
	owned, err := s.HasActivePurchase(t, userID, productID)
	if err != nil {
		return Access{}, err
	}
	if owned {
		return Access{Granted: true, Via: "direct"}, nil
	}
	return Access{}, nil
}
