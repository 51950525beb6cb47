package checkout

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"strings"

	"gorm.io/gorm"

	"github.com/skillmarket/SkillMarket/app/models"
	"github.com/skillmarket/SkillMarket/internal/pkg/attemptlog"
	"github.com/skillmarket/SkillMarket/internal/pkg/entitlements"
	"github.com/skillmarket/SkillMarket/internal/pkg/env"
	"github.com/skillmarket/SkillMarket/internal/pkg/mail"
	"github.com/skillmarket/SkillMarket/internal/pkg/payments"
)

// Service implements the purchase flow: checkout initiation on the request
// side and entitlement fulfillment on the webhook side.
type Service struct {
	repo     Repository
	store    entitlements.Store
	attempts *attemptlog.Logger
	gateway  payments.Gateway
	baseURL  string
}

// NewService creates a checkout service from injected collaborators.
func NewService(repo Repository, store entitlements.Store, attempts *attemptlog.Logger, gateway payments.Gateway, baseURL string) *Service {
	return &Service{
		repo:     repo,
		store:    store,
		attempts: attempts,
		gateway:  gateway,
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
}

// NewServiceFromDB creates a checkout service from a GORM DB handle, reading
// the public base URL from the environment.
func NewServiceFromDB(db *gorm.DB, gateway payments.Gateway) *Service {
	return NewService(
		NewRepository(db),
		entitlements.NewStore(db),
		attemptlog.NewLoggerFromDB(db),
		gateway,
		env.GetEnv("PUBLIC_DOMAIN", "http://localhost:4000"),
	)
}

// CreateCheckout decides whether a purchase is allowed and either grants a
// free entitlement directly or creates a hosted payment session.
//
// The direct entitlement check always precedes the course-membership derived
// check, and both precede session creation: no payment session is ever
// created for an already-entitled product.
func (s *Service) CreateCheckout(ctx context.Context, caller Caller, req Request) (*Result, error) {
	productType, err := models.ParseProductType(req.ProductType)
	if err != nil {
		return nil, err
	}

	product, err := s.repo.GetProduct(productType, uint(req.ProductID))
	if err != nil {
		if IsNotFound(err) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	if !product.IsPublished {
		return nil, ErrProductNotFound
	}

	owned, err := s.store.HasActivePurchase(productType, caller.UserID, product.ID)
	if err != nil {
		return nil, err
	}
	if owned {
		return nil, ErrAlreadyPurchased
	}

	if productType == models.ProductTypeVideo {
		course, err := s.store.CourseGrantingVideo(caller.UserID, product.ID)
		if err != nil {
			return nil, err
		}
		if course != nil {
			return nil, &AlreadyInCourseError{CourseID: course.ID, CourseTitle: course.Title}
		}
	}

	if product.IsFree() {
		return s.grantFree(caller, product)
	}
	return s.createPaidSession(ctx, caller, product, req.ProductName)
}

func (s *Service) grantFree(caller Caller, product *models.Product) (*Result, error) {
	created, err := s.repo.CreatePurchaseIfNotExists(product.Type, &models.Purchase{
		UserID:        caller.UserID,
		ProductID:     product.ID,
		PricePaid:     0,
		Currency:      product.Currency,
		Status:        models.PurchaseStatusActive,
		PaymentMethod: models.PaymentMethodFree,
	})
	if err != nil {
		s.attempts.Record(caller.UserID, product.ID, product.Type, models.CheckoutAttemptFailed, err.Error())
		return nil, err
	}
	if !created {
		// Lost the race against a concurrent grant; the caller owns it either way.
		return nil, ErrAlreadyPurchased
	}

	s.attempts.Record(caller.UserID, product.ID, product.Type, models.CheckoutAttemptSuccess, "")
	return &Result{
		Free:        true,
		RedirectURL: product.Type.ContentPath(product.ID),
	}, nil
}

func (s *Service) createPaidSession(ctx context.Context, caller Caller, product *models.Product, displayName string) (*Result, error) {
	s.attempts.Record(caller.UserID, product.ID, product.Type, models.CheckoutAttemptInitiated, "")

	name := strings.TrimSpace(displayName)
	if name == "" {
		name = product.Title
	}
	contentURL := s.baseURL + product.Type.ContentPath(product.ID)

	session, err := s.gateway.CreateCheckoutSession(ctx, payments.SessionRequest{
		UserID:      caller.UserID,
		UserEmail:   caller.Email,
		ProductID:   product.ID,
		ProductType: product.Type,
		ProductName: name,
		Price:       product.Price,
		Currency:    product.Currency,
		SuccessURL:  contentURL + "?checkout=success&session_id={CHECKOUT_SESSION_ID}",
		CancelURL:   contentURL + "?checkout=cancelled",
	})
	if err != nil {
		s.attempts.Record(caller.UserID, product.ID, product.Type, models.CheckoutAttemptFailed, err.Error())
		return nil, err
	}

	return &Result{SessionID: session.ID, URL: session.URL}, nil
}

// Fulfill converts a completed checkout session into an entitlement record.
// The insert is idempotent over the unique (user, product, status) index, so
// processor redelivery of the same session is harmless. A returned error is
// retriable: the webhook endpoint surfaces it as a 5xx and the processor
// re-delivers.
func (s *Service) Fulfill(ctx context.Context, completed *payments.CompletedCheckout) error {
	_ = ctx
	purchase := &models.Purchase{
		UserID:          completed.UserID,
		ProductID:       completed.ProductID,
		PricePaid:       completed.AmountTotal,
		Currency:        completed.Currency,
		Status:          models.PurchaseStatusActive,
		PaymentMethod:   models.PaymentMethodStripe,
		PaymentIntentID: completed.PaymentIntentID,
		TransactionID:   completed.SessionID,
	}

	created, err := s.repo.CreatePurchaseIfNotExists(completed.ProductType, purchase)
	if err != nil {
		s.attempts.Record(completed.UserID, completed.ProductID, completed.ProductType,
			models.CheckoutAttemptFailed, err.Error())
		return fmt.Errorf("checkout: fulfill session %s: %w", completed.SessionID, err)
	}
	if !created {
		log.Printf("checkout: session %s already fulfilled for user %d, %s %d",
			completed.SessionID, completed.UserID, completed.ProductType, completed.ProductID)
		return nil
	}

	s.attempts.Record(completed.UserID, completed.ProductID, completed.ProductType,
		models.CheckoutAttemptSuccess, "")
	s.sendReceipt(completed)
	return nil
}

// RecordCancelled logs a cancelled attempt for a payment session the buyer
// let expire. Advisory only; no entitlement state changes.
func (s *Service) RecordCancelled(expired *payments.CompletedCheckout) {
	s.attempts.Record(expired.UserID, expired.ProductID, expired.ProductType,
		models.CheckoutAttemptCancelled, "payment session expired")
}

// sendReceipt mails a purchase confirmation. Strictly best-effort.
func (s *Service) sendReceipt(completed *payments.CompletedCheckout) {
	email, err := s.repo.GetUserEmail(completed.UserID)
	if err != nil || email == "" {
		return
	}
	title := string(completed.ProductType)
	if product, err := s.repo.GetProduct(completed.ProductType, completed.ProductID); err == nil {
		title = product.Title
	}
	go mail.SendPurchaseReceipt(email, title, completed.AmountTotal, completed.Currency)
}

// RecordWebhookEvent persists webhook payloads idempotently, keyed by the
// processor's event id.
func (s *Service) RecordWebhookEvent(ctx context.Context, provider, providerEventID, eventType, payloadJSON string, signatureValid bool) (bool, *models.PaymentWebhookEvent, error) {
	_ = ctx
	p := strings.ToLower(strings.TrimSpace(provider))
	if p == "" {
		return false, nil, fmt.Errorf("checkout: provider is required")
	}
	eventID := strings.TrimSpace(providerEventID)
	if eventID == "" {
		sum := sha256.Sum256([]byte(payloadJSON))
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	event := &models.PaymentWebhookEvent{
		Provider:        p,
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(eventType),
		PayloadJSON:     payloadJSON,
		SignatureValid:  signatureValid,
	}
	return s.repo.CreateWebhookEventIfNotExists(event)
}

// MarkWebhookProcessed marks an event as processed and stores an optional error.
func (s *Service) MarkWebhookProcessed(ctx context.Context, webhookEventID uint, processingErr error) error {
	_ = ctx
	if webhookEventID == 0 {
		return fmt.Errorf("checkout: webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkWebhookProcessed(webhookEventID, errMsg)
}

// ListActivePurchases returns the caller's active entitlements per kind.
func (s *Service) ListActivePurchases(ctx context.Context, userID uint) (map[models.ProductType][]models.Purchase, error) {
	_ = ctx
	owned := make(map[models.ProductType][]models.Purchase, 3)
	for _, t := range []models.ProductType{models.ProductTypeVideo, models.ProductTypeCourse, models.ProductTypePrompt} {
		purchases, err := s.repo.ListActivePurchasesByUser(t, userID)
		if err != nil {
			return nil, err
		}
		owned[t] = purchases
	}
	return owned, nil
}
