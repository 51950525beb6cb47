package models

import (
	"errors"
	"fmt"
)

// ProductType identifies one of the three sellable catalog kinds. Each kind
// has its own catalog and purchase table; everything else about them is
// structurally identical, so flow logic is parameterized by this tag instead
// of branching per kind.
type ProductType string

const (
	ProductTypeVideo  ProductType = "video"
	ProductTypeCourse ProductType = "course"
	ProductTypePrompt ProductType = "prompt"
)

var ErrUnknownProductType = errors.New("unknown product type")

// ParseProductType validates and normalizes a client-supplied product type.
func ParseProductType(s string) (ProductType, error) {
	switch ProductType(s) {
	case ProductTypeVideo, ProductTypeCourse, ProductTypePrompt:
		return ProductType(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownProductType, s)
	}
}

// CatalogTable returns the catalog table holding products of this kind.
func (t ProductType) CatalogTable() string {
	switch t {
	case ProductTypeCourse:
		return "courses"
	case ProductTypePrompt:
		return "prompts"
	default:
		return "videos"
	}
}

// PurchasesTable returns the entitlement table for products of this kind.
func (t ProductType) PurchasesTable() string {
	switch t {
	case ProductTypeCourse:
		return "course_purchases"
	case ProductTypePrompt:
		return "prompt_purchases"
	default:
		return "video_purchases"
	}
}

// ContentPath is the app-relative path a buyer is redirected to after a
// successful (or redundant) purchase.
func (t ProductType) ContentPath(productID uint) string {
	return fmt.Sprintf("/%s/%d", string(t), productID)
}

// Product is the read-only catalog view the purchase flow operates on.
// The per-kind catalog rows are projected into this shape; the flow never
// mutates catalog data.
type Product struct {
	ID          uint        `json:"id"`
	Type        ProductType `json:"type"`
	Title       string      `json:"title"`
	Price       int64       `json:"price"` // smallest currency unit
	Currency    string      `json:"currency"`
	IsPublished bool        `json:"is_published"`
}

// IsFree reports whether checkout may grant the entitlement directly without
// involving the payment processor.
func (p *Product) IsFree() bool {
	return p.Price == 0
}
