package controllers

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripe "github.com/stripe/stripe-go/v82"
	"gorm.io/gorm"

	"github.com/skillmarket/SkillMarket/app/models"
	"github.com/skillmarket/SkillMarket/internal/pkg/attemptlog"
	"github.com/skillmarket/SkillMarket/internal/pkg/checkout"
	"github.com/skillmarket/SkillMarket/internal/pkg/payments"
	"github.com/skillmarket/SkillMarket/internal/pkg/usercontext"
)

const testWebhookSecret = "whsec_test"

type memoryRepo struct {
	products     map[string]*models.Product
	existing     map[string]bool
	created      []models.Purchase
	createdKinds []models.ProductType
	createErr    error
	events       map[string]*models.PaymentWebhookEvent
	nextID       uint
	processed    map[uint]string
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		products:  make(map[string]*models.Product),
		existing:  make(map[string]bool),
		events:    make(map[string]*models.PaymentWebhookEvent),
		processed: make(map[uint]string),
	}
}

func (r *memoryRepo) key(t models.ProductType, id uint) string {
	return fmt.Sprintf("%s:%d", t, id)
}

func (r *memoryRepo) GetProduct(t models.ProductType, productID uint) (*models.Product, error) {
	p, ok := r.products[r.key(t, productID)]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memoryRepo) GetUserEmail(userID uint) (string, error) {
	return "", gorm.ErrRecordNotFound
}

func (r *memoryRepo) CreatePurchaseIfNotExists(t models.ProductType, purchase *models.Purchase) (bool, error) {
	if r.createErr != nil {
		return false, r.createErr
	}
	key := fmt.Sprintf("%s:%d:%d", t, purchase.UserID, purchase.ProductID)
	if r.existing[key] {
		return false, nil
	}
	r.existing[key] = true
	r.created = append(r.created, *purchase)
	r.createdKinds = append(r.createdKinds, t)
	return true, nil
}

func (r *memoryRepo) ListActivePurchasesByUser(t models.ProductType, userID uint) ([]models.Purchase, error) {
	var out []models.Purchase
	for i, p := range r.created {
		if r.createdKinds[i] == t && p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memoryRepo) CreateAttempt(attempt *models.CheckoutAttempt) error { return nil }

func (r *memoryRepo) CreateWebhookEventIfNotExists(event *models.PaymentWebhookEvent) (bool, *models.PaymentWebhookEvent, error) {
	key := event.Provider + ":" + event.ProviderEventID
	if stored, ok := r.events[key]; ok {
		return false, stored, nil
	}
	r.nextID++
	stored := *event
	stored.ID = r.nextID
	r.events[key] = &stored
	return true, &stored, nil
}

func (r *memoryRepo) MarkWebhookProcessed(id uint, processingError string) error {
	r.processed[id] = processingError
	for _, e := range r.events {
		if e.ID == id {
			now := time.Now()
			e.ProcessedAt = &now
			e.ProcessingError = processingError
		}
	}
	return nil
}

type memoryStore struct {
	owned   map[string]bool
	courses map[uint]*models.Course
}

func newMemoryStore() *memoryStore {
	return &memoryStore{owned: make(map[string]bool), courses: make(map[uint]*models.Course)}
}

func (s *memoryStore) HasActivePurchase(t models.ProductType, userID, productID uint) (bool, error) {
	return s.owned[fmt.Sprintf("%s:%d:%d", t, userID, productID)], nil
}

func (s *memoryStore) CourseGrantingVideo(userID, videoID uint) (*models.Course, error) {
	return s.courses[videoID], nil
}

type noopRecorder struct{}

func (noopRecorder) CreateAttempt(*models.CheckoutAttempt) error { return nil }

// newCheckoutApp wires the handlers against in-memory collaborators and a
// gateway carrying the test webhook secret.
func newCheckoutApp(repo *memoryRepo, store *memoryStore, loggedInUser uint) *fiber.App {
	gw := payments.NewStripeGateway("sk_test", testWebhookSecret)
	svc := checkout.NewService(repo, store, attemptlog.NewLogger(noopRecorder{}), gw, "https://skillmarket.example")
	SetCheckoutController(svc, gw)

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if loggedInUser != 0 {
			c.Locals("USER_CONTEXT", usercontext.UserContext{
				UserID:     loggedInUser,
				Email:      "buyer@example.com",
				IsLoggedIn: true,
			})
		}
		return c.Next()
	})
	app.Post("/api/v1/checkout", HandleCreateCheckout)
	app.Post("/api/v1/webhook/stripe", HandleStripeWebhook)
	app.Get("/api/v1/user/purchases", HandleUserPurchases)
	return app
}

func signStripePayload(payload []byte, secret string) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func completedSessionPayload(t *testing.T, eventID string, metadata map[string]string, amountTotal int64) []byte {
	t.Helper()
	event := map[string]interface{}{
		"id":          eventID,
		"object":      "event",
		"api_version": stripe.APIVersion,
		"type":        "checkout.session.completed",
		"data": map[string]interface{}{
			"object": map[string]interface{}{
				"id":           "cs_test_123",
				"object":       "checkout.session",
				"amount_total": amountTotal,
				"currency":     "eur",
				"metadata":     metadata,
			},
		},
	}
	raw, err := json.Marshal(event)
	require.NoError(t, err)
	return raw
}

func postWebhook(t *testing.T, app *fiber.App, payload []byte, signature string) (*http.Response, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhook/stripe", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	parsed := make(map[string]interface{})
	if len(body) > 0 {
		require.NoError(t, json.Unmarshal(body, &parsed))
	}
	return resp, parsed
}

func TestHandleStripeWebhookRejectsInvalidSignature(t *testing.T) {
	repo := newMemoryRepo()
	app := newCheckoutApp(repo, newMemoryStore(), 0)

	payload := completedSessionPayload(t, "evt_1", map[string]string{
		"userId": "9", "productId": "42", "productType": "video",
	}, 500)

	resp, body := postWebhook(t, app, payload, "t=1,v1=deadbeef")
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_signature", body["error"])

	// nothing persisted before the signature check passes
	assert.Empty(t, repo.events)
	assert.Empty(t, repo.created)
}

func TestHandleStripeWebhookFulfillsCompletedSession(t *testing.T) {
	repo := newMemoryRepo()
	app := newCheckoutApp(repo, newMemoryStore(), 0)

	payload := completedSessionPayload(t, "evt_1", map[string]string{
		"userId": "9", "productId": "42", "productType": "video",
	}, 500)

	resp, body := postWebhook(t, app, payload, signStripePayload(payload, testWebhookSecret))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["received"])

	require.Len(t, repo.created, 1)
	purchase := repo.created[0]
	assert.Equal(t, uint(9), purchase.UserID)
	assert.Equal(t, uint(42), purchase.ProductID)
	assert.Equal(t, int64(500), purchase.PricePaid)
	assert.Equal(t, models.PaymentMethodStripe, purchase.PaymentMethod)
	assert.Equal(t, models.PurchaseStatusActive, purchase.Status)

	// event stored and marked processed without error
	require.Len(t, repo.events, 1)
	assert.Equal(t, "", repo.processed[1])
}

func TestHandleStripeWebhookDuplicateEventIsAcknowledged(t *testing.T) {
	repo := newMemoryRepo()
	app := newCheckoutApp(repo, newMemoryStore(), 0)

	payload := completedSessionPayload(t, "evt_1", map[string]string{
		"userId": "9", "productId": "42", "productType": "video",
	}, 500)

	resp, _ := postWebhook(t, app, payload, signStripePayload(payload, testWebhookSecret))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, body := postWebhook(t, app, payload, signStripePayload(payload, testWebhookSecret))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["duplicate"])

	assert.Len(t, repo.created, 1)
}

func TestHandleStripeWebhookIgnoresOtherEventTypes(t *testing.T) {
	repo := newMemoryRepo()
	app := newCheckoutApp(repo, newMemoryStore(), 0)

	event := map[string]interface{}{
		"id":          "evt_2",
		"object":      "event",
		"api_version": stripe.APIVersion,
		"type":        "payment_intent.succeeded",
		"data":        map[string]interface{}{"object": map[string]interface{}{}},
	}
	payload, err := json.Marshal(event)
	require.NoError(t, err)

	resp, body := postWebhook(t, app, payload, signStripePayload(payload, testWebhookSecret))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["ignored"])
	assert.Empty(t, repo.created)
	assert.Len(t, repo.events, 1)
}

func TestHandleStripeWebhookExpiredSessionIsCancelled(t *testing.T) {
	repo := newMemoryRepo()
	app := newCheckoutApp(repo, newMemoryStore(), 0)

	event := map[string]interface{}{
		"id":          "evt_5",
		"object":      "event",
		"api_version": stripe.APIVersion,
		"type":        "checkout.session.expired",
		"data": map[string]interface{}{
			"object": map[string]interface{}{
				"id":       "cs_test_123",
				"object":   "checkout.session",
				"metadata": map[string]string{"userId": "9", "productId": "42", "productType": "video"},
			},
		},
	}
	payload, err := json.Marshal(event)
	require.NoError(t, err)

	resp, body := postWebhook(t, app, payload, signStripePayload(payload, testWebhookSecret))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["cancelled"])
	assert.Empty(t, repo.created)
}

func TestHandleStripeWebhookRejectsMalformedMetadata(t *testing.T) {
	repo := newMemoryRepo()
	app := newCheckoutApp(repo, newMemoryStore(), 0)

	payload := completedSessionPayload(t, "evt_3", map[string]string{
		"productType": "video",
	}, 500)

	resp, body := postWebhook(t, app, payload, signStripePayload(payload, testWebhookSecret))
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_payload", body["error"])
	assert.Empty(t, repo.created)
	// the defect is recorded on the stored event
	assert.NotEmpty(t, repo.processed[1])
}

func TestHandleStripeWebhookStoreFailureIsRetriable(t *testing.T) {
	repo := newMemoryRepo()
	repo.createErr = gorm.ErrInvalidTransaction
	app := newCheckoutApp(repo, newMemoryStore(), 0)

	payload := completedSessionPayload(t, "evt_4", map[string]string{
		"userId": "9", "productId": "42", "productType": "video",
	}, 500)

	resp, body := postWebhook(t, app, payload, signStripePayload(payload, testWebhookSecret))
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "fulfillment_failed", body["error"])

	// the event row survived the failure so the redelivery can be matched
	require.Len(t, repo.events, 1)
	assert.Empty(t, repo.created)
}

func TestHandleStripeWebhookRedeliveryAfterFailureFulfills(t *testing.T) {
	repo := newMemoryRepo()
	repo.createErr = gorm.ErrInvalidTransaction
	app := newCheckoutApp(repo, newMemoryStore(), 0)

	payload := completedSessionPayload(t, "evt_4", map[string]string{
		"userId": "9", "productId": "42", "productType": "video",
	}, 500)

	resp, _ := postWebhook(t, app, payload, signStripePayload(payload, testWebhookSecret))
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.Empty(t, repo.created)

	// the store recovers and the processor redelivers the same event id:
	// the known-but-unprocessed event must be processed, not acknowledged
	// as a duplicate
	repo.createErr = nil
	resp, body := postWebhook(t, app, payload, signStripePayload(payload, testWebhookSecret))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["received"])
	assert.Nil(t, body["duplicate"])

	require.Len(t, repo.created, 1)
	assert.Equal(t, uint(9), repo.created[0].UserID)
	assert.Equal(t, uint(42), repo.created[0].ProductID)

	// a third delivery after success is a plain duplicate
	resp, body = postWebhook(t, app, payload, signStripePayload(payload, testWebhookSecret))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["duplicate"])
	assert.Len(t, repo.created, 1)
}

func TestHandleCreateCheckoutRequiresLogin(t *testing.T) {
	app := newCheckoutApp(newMemoryRepo(), newMemoryStore(), 0)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout",
		bytes.NewReader([]byte(`{"productId":1,"productType":"video"}`)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestHandleCreateCheckoutFreeGrant(t *testing.T) {
	repo := newMemoryRepo()
	repo.products["prompt:7"] = &models.Product{ID: 7, Type: models.ProductTypePrompt, Title: "SQL Prompts", Price: 0, Currency: "eur", IsPublished: true}
	app := newCheckoutApp(repo, newMemoryStore(), 3)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout",
		bytes.NewReader([]byte(`{"productId":7,"productType":"prompt"}`)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var result map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, true, result["free"])
	assert.Equal(t, "/prompt/7", result["redirectUrl"])
	require.Len(t, repo.created, 1)
}

func TestHandleCreateCheckoutAcceptsStringProductID(t *testing.T) {
	repo := newMemoryRepo()
	repo.products["prompt:7"] = &models.Product{ID: 7, Type: models.ProductTypePrompt, Title: "SQL Prompts", Price: 0, Currency: "eur", IsPublished: true}
	app := newCheckoutApp(repo, newMemoryStore(), 3)

	// storefront clients send the id as a JSON string
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout",
		bytes.NewReader([]byte(`{"productId":"7","productType":"prompt"}`)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var result map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, true, result["free"])
	assert.Equal(t, "/prompt/7", result["redirectUrl"])
	require.Len(t, repo.created, 1)
	assert.Equal(t, uint(7), repo.created[0].ProductID)
}

func TestHandleCreateCheckoutAlreadyPurchased(t *testing.T) {
	repo := newMemoryRepo()
	repo.products["course:5"] = &models.Product{ID: 5, Type: models.ProductTypeCourse, Title: "Bootcamp", Price: 4900, Currency: "eur", IsPublished: true}
	store := newMemoryStore()
	store.owned["course:3:5"] = true
	app := newCheckoutApp(repo, store, 3)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout",
		bytes.NewReader([]byte(`{"productId":5,"productType":"course"}`)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var result map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, "already_purchased", result["error"])
}

func TestHandleCreateCheckoutVideoInOwnedCourse(t *testing.T) {
	repo := newMemoryRepo()
	repo.products["video:11"] = &models.Product{ID: 11, Type: models.ProductTypeVideo, Title: "Lesson 3", Price: 900, Currency: "eur", IsPublished: true}
	store := newMemoryStore()
	store.courses[11] = &models.Course{ID: 4, Title: "Go Bootcamp"}
	app := newCheckoutApp(repo, store, 3)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout",
		bytes.NewReader([]byte(`{"productId":11,"productType":"video"}`)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var result map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, "already_purchased_in_course", result["error"])
	assert.Equal(t, float64(4), result["courseId"])
	assert.Equal(t, "Go Bootcamp", result["courseTitle"])
}

func TestHandleCreateCheckoutValidation(t *testing.T) {
	app := newCheckoutApp(newMemoryRepo(), newMemoryStore(), 3)

	tests := []struct {
		name string
		body string
	}{
		{name: "missing product id", body: `{"productType":"video"}`},
		{name: "non-numeric product id", body: `{"productId":"abc","productType":"video"}`},
		{name: "bad product type", body: `{"productId":1,"productType":"ebook"}`},
		{name: "negative price", body: `{"productId":1,"productType":"video","price":-5}`},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", bytes.NewReader([]byte(tc.body)))
			req.Header.Set("Content-Type", "application/json")
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestHandleUserPurchasesGroupsByKind(t *testing.T) {
	repo := newMemoryRepo()
	app := newCheckoutApp(repo, newMemoryStore(), 3)

	_, _ = repo.CreatePurchaseIfNotExists(models.ProductTypeVideo, &models.Purchase{UserID: 3, ProductID: 1, Status: models.PurchaseStatusActive})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/user/purchases", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var result map[string][]models.Purchase
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Len(t, result["videos"], 1)
	assert.Empty(t, result["courses"])
	assert.Empty(t, result["prompts"])
}
