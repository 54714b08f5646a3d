package model

import (
	"time"

	"finedu-reconciliation/internal/domain"
)

// Entitlement grants non-recurring access to a product, independent of any
// order record. Subscription and analysis products must never appear here:
// those are modeled by Subscription and Ticket respectively.
type Entitlement struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ProductID string    `json:"product_id"`
	CreatedAt time.Time `json:"created_at"`
}

func NewEntitlement(id, userID, productID string) (*Entitlement, error) {
	if id == "" || userID == "" || productID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if !GrantsEntitlement(Product{ID: productID}) {
		return nil, domain.ErrInvalidArgument
	}
	return &Entitlement{ID: id, UserID: userID, ProductID: productID, CreatedAt: time.Now()}, nil
}
