package model

import (
	"strings"
	"time"

	"finedu-reconciliation/internal/domain"
)

type OrderStatus string

const (
	OrderStatusPendingReview OrderStatus = "pending_review"
	OrderStatusPaid          OrderStatus = "paid"
	OrderStatusRejected      OrderStatus = "rejected"
)

// ParseOrderStatus validates an externally supplied status value.
func ParseOrderStatus(s string) (OrderStatus, error) {
	switch OrderStatus(s) {
	case OrderStatusPendingReview, OrderStatusPaid, OrderStatusRejected:
		return OrderStatus(s), nil
	}
	return "", domain.ErrInvalidStatus
}

// Order is a manually-tracked purchase, primarily on the carrier-billing rail
// where confirmation is asynchronous and human-reviewed. `paid` is the only
// status that may create downstream entitlements.
type Order struct {
	ID            string        `json:"id"`
	UserID        string        `json:"user_id"`
	ProductID     string        `json:"product_id"`
	ProductName   string        `json:"product_name"`
	Amount        int64         `json:"amount"`
	AmountLocal   *int64        `json:"amount_local,omitempty"` // optional local-currency amount
	Method        PaymentMethod `json:"method"`
	Status        OrderStatus   `json:"status"`
	Operator      string        `json:"operator,omitempty"` // carrier / mobile-money operator
	PayerPhone    string        `json:"payer_phone,omitempty"`
	ExternalRef   string        `json:"external_ref,omitempty"`
	ProofURL      string        `json:"proof_url,omitempty"` // proof-of-payment pointer
	TransactionID string        `json:"transaction_id,omitempty"`
	ValidatedAt   *time.Time    `json:"validated_at,omitempty"`
	ValidatedBy   string        `json:"validated_by,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

func NewOrder(id, userID, productID, productName string, amount int64, method PaymentMethod, status OrderStatus) (*Order, error) {
	if id == "" || userID == "" || productID == "" || amount < 0 {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Order{
		ID:          id,
		UserID:      userID,
		ProductID:   productID,
		ProductName: productName,
		Amount:      amount,
		Method:      method,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Product reconstructs the classification view of the ordered product.
// Orders do not persist catalog categories, so classification relies on the
// id and name (the same signals the storefront had at checkout).
func (o *Order) Product() Product {
	return Product{ID: o.ProductID, Name: o.ProductName}
}

// MatchesProduct reports whether the order covers the given product id,
// tolerating legacy rows whose ids differ only by case.
func (o *Order) MatchesProduct(productID string) bool {
	return o.ProductID == productID || strings.EqualFold(o.ProductID, productID)
}
