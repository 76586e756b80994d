package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is one catalog row: a barcode with its current name and price.
type Product struct {
	Barcode   string          `json:"barcode"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	UpdatedAt string          `json:"updated_at"`
}

// CartLine is one cart entry. Name and Price are snapshots taken when the
// line is created and are never refreshed from the catalog, even if the
// catalog changes during the session.
type CartLine struct {
	Barcode  string          `json:"barcode"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int64           `json:"quantity"`
}

// Subtotal is Price * Quantity.
func (l CartLine) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(l.Quantity))
}

// PriceResolver supplies a one-off price for a barcode the catalog does not
// know. Returning ok=false means the operator declined.
type PriceResolver func(barcode string) (price decimal.Decimal, ok bool)

// Receipt is the read-only snapshot reported by checkout, after which the
// cart is emptied. Nothing about the sale is persisted.
type Receipt struct {
	Reference     uuid.UUID       `json:"reference"`
	TotalQuantity int64           `json:"total_quantity"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Lines         []CartLine      `json:"lines"`
	CreatedAt     time.Time       `json:"created_at"`
}

type UpsertProductRequest struct {
	Barcode string          `json:"barcode"`
	Name    string          `json:"name"`
	Price   decimal.Decimal `json:"price"`
}

// AddCartItemRequest carries a scan or a manual entry. Price is only set on
// the second round-trip, after the client prompted the operator for a one-off
// price for an unknown barcode.
type AddCartItemRequest struct {
	Barcode string           `json:"barcode"`
	Price   *decimal.Decimal `json:"price,omitempty"`
}

type SetQuantityRequest struct {
	Quantity int64 `json:"quantity"`
}

type SwitchStoreRequest struct {
	Path string `json:"path"`
}

// ProductSuggestion is a search hit plus the "barcode | name | price" string
// completion widgets show.
type ProductSuggestion struct {
	Product
	Display string `json:"display"`
}

type CartLineView struct {
	CartLine
	Subtotal decimal.Decimal `json:"subtotal"`
}

type CartView struct {
	Lines         []CartLineView  `json:"lines"`
	TotalQuantity int64           `json:"total_quantity"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
}
