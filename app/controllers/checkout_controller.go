package controllers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/skillmarket/SkillMarket/app/models"
	"github.com/skillmarket/SkillMarket/internal/pkg/checkout"
	"github.com/skillmarket/SkillMarket/internal/pkg/database"
	"github.com/skillmarket/SkillMarket/internal/pkg/payments"
	"github.com/skillmarket/SkillMarket/internal/pkg/usercontext"
)

var (
	checkoutService *checkout.Service
	checkoutGateway *payments.StripeGateway
	checkoutValid   = validator.New()
)

// InitializeCheckoutController wires the checkout service against the shared
// DB handle and the Stripe gateway configured from the environment.
func InitializeCheckoutController() {
	checkoutGateway = payments.NewStripeGatewayFromEnv()
	checkoutService = checkout.NewServiceFromDB(database.GetDB(), checkoutGateway)
}

// SetCheckoutController replaces the wired service and gateway. Used by tests.
func SetCheckoutController(svc *checkout.Service, gw *payments.StripeGateway) {
	checkoutService = svc
	checkoutGateway = gw
}

// HandleCreateCheckout is POST /api/v1/checkout. It either grants a free
// entitlement directly or returns a hosted payment session to redirect to.
func HandleCreateCheckout(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	var req checkout.Request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "invalid_request",
			"message": "Malformed request body",
		})
	}
	if err := checkoutValid.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "invalid_request",
			"message": err.Error(),
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	caller := checkout.Caller{UserID: userCtx.UserID, Email: userCtx.Email}
	result, err := checkoutService.CreateCheckout(ctx, caller, req)
	if err != nil {
		return respondCheckoutError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(result)
}

func respondCheckoutError(c *fiber.Ctx, err error) error {
	var inCourse *checkout.AlreadyInCourseError
	switch {
	case errors.As(err, &inCourse):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":       "already_purchased_in_course",
			"message":     fmt.Sprintf("This video is already included in your course %q", inCourse.CourseTitle),
			"courseId":    inCourse.CourseID,
			"courseTitle": inCourse.CourseTitle,
		})
	case errors.Is(err, checkout.ErrAlreadyPurchased):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "already_purchased",
			"message": "You already own this product",
		})
	case errors.Is(err, checkout.ErrProductNotFound), errors.Is(err, models.ErrUnknownProductType):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "invalid_product",
			"message": "Unknown or unavailable product",
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal_server_error",
		})
	}
}

// HandleStripeWebhook is POST /api/v1/webhook/stripe. Signature verification
// is the sole authentication for this endpoint; nothing is written before it
// passes. A 5xx response makes Stripe re-deliver, which is safe because both
// the event record and the entitlement insert are idempotent.
func HandleStripeWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := c.Get("Stripe-Signature")

	event, err := checkoutGateway.VerifyWebhook(rawBody, signature)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_signature"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	created, stored, err := checkoutService.RecordWebhookEvent(
		ctx, models.PaymentProviderStripe, event.ID, string(event.Type), string(rawBody), true)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_persist_failed"})
	}
	if !created {
		if stored.ProcessedAt != nil && stored.ProcessingError == "" {
			return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true, "duplicate": true})
		}
		// Redelivery of an event whose processing failed earlier. Fall through
		// and reprocess; the entitlement insert is idempotent.
	}

	if string(event.Type) == payments.EventTypeCheckoutExpired {
		if expired, perr := payments.ParseCheckoutSessionEvent(event); perr == nil {
			checkoutService.RecordCancelled(expired)
		}
		_ = checkoutService.MarkWebhookProcessed(ctx, stored.ID, nil)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true, "cancelled": true})
	}

	if string(event.Type) != payments.EventTypeCheckoutCompleted {
		_ = checkoutService.MarkWebhookProcessed(ctx, stored.ID, nil)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true, "ignored": true})
	}

	completed, err := payments.ParseCompletedCheckout(event)
	if err != nil {
		// Malformed metadata is non-retriable; acknowledge the defect with a 400.
		_ = checkoutService.MarkWebhookProcessed(ctx, stored.ID, err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	}

	if err := checkoutService.Fulfill(ctx, completed); err != nil {
		_ = checkoutService.MarkWebhookProcessed(ctx, stored.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "fulfillment_failed"})
	}

	_ = checkoutService.MarkWebhookProcessed(ctx, stored.ID, nil)
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true})
}
