package checkout

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ProductID is the catalog id as clients send it. Storefront clients
// serialize it either as a JSON number or a numeric string, so both decode.
type ProductID uint

func (p *ProductID) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		*p = 0
		return nil
	}
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return fmt.Errorf("checkout: productId must be numeric: %w", err)
	}
	*p = ProductID(v)
	return nil
}

// Request is the client-supplied checkout body. Price and name are echoes of
// what the buyer saw; the catalog row stays authoritative for both.
type Request struct {
	ProductID   ProductID `json:"productId" validate:"required,gt=0"`
	ProductType string    `json:"productType" validate:"required,oneof=video course prompt"`
	ProductName string    `json:"productName" validate:"omitempty,max=255"`
	Price       int64     `json:"price" validate:"gte=0"`
}

// Caller is the authenticated identity a checkout runs under. It is resolved
// once at the request boundary and passed explicitly into every operation.
type Caller struct {
	UserID uint
	Email  string
}

// Result is the success outcome of a checkout request: either a free grant
// with a redirect target, or a hosted payment session to send the buyer to.
type Result struct {
	Free        bool   `json:"free,omitempty"`
	RedirectURL string `json:"redirectUrl,omitempty"`
	SessionID   string `json:"sessionId,omitempty"`
	URL         string `json:"url,omitempty"`
}

var (
	// ErrProductNotFound covers unknown ids and unpublished products alike;
	// callers get no hint which of the two it was.
	ErrProductNotFound = errors.New("checkout: product not found")
	// ErrAlreadyPurchased means an active entitlement already exists for the
	// exact requested product.
	ErrAlreadyPurchased = errors.New("checkout: already purchased")
)

// AlreadyInCourseError is returned when the requested video is reachable
// through a course the caller already owns. It carries the owning course so
// the caller can redirect instead of charging twice.
type AlreadyInCourseError struct {
	CourseID    uint
	CourseTitle string
}

func (e *AlreadyInCourseError) Error() string {
	return fmt.Sprintf("checkout: video already accessible via course %d (%s)", e.CourseID, e.CourseTitle)
}
