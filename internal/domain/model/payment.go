package model

import (
	"fmt"
	"time"

	"finedu-reconciliation/internal/domain"
)

// PaymentMethod is one of the two rails the engine reconciles.
type PaymentMethod string

const (
	MethodCard    PaymentMethod = "card"
	MethodCarrier PaymentMethod = "carrier-billing"
)

// Payment is an immutable record of one paid unit. Failed attempts are never
// persisted; a Payment only ever exists with status "success". The tuple
// (user id, product id, transaction id, seq) is unique: re-ingesting the same
// gateway event must collapse on the database index, not create duplicates.
type Payment struct {
	ID            string        `json:"id"`
	UserID        string        `json:"user_id"`
	ProductID     string        `json:"product_id"`
	Kind          ProductKind   `json:"kind"`
	Amount        int64         `json:"amount"` // smallest currency unit
	Currency      string        `json:"currency"`
	Method        PaymentMethod `json:"method"`
	TransactionID string        `json:"transaction_id"` // external correlation key
	Seq           int           `json:"seq"`            // sequence within the line item quantity
	CreatedAt     time.Time     `json:"created_at"`
}

// NewPayment validates and constructs a payment row.
func NewPayment(id, userID, productID, txID string, kind ProductKind, method PaymentMethod, amount int64, currency string, seq int) (*Payment, error) {
	if id == "" || userID == "" || productID == "" || txID == "" || seq < 0 {
		return nil, domain.ErrInvalidArgument
	}
	if currency == "" {
		currency = "EUR"
	}
	return &Payment{
		ID:            id,
		UserID:        userID,
		ProductID:     productID,
		Kind:          kind,
		Amount:        amount,
		Currency:      currency,
		Method:        method,
		TransactionID: txID,
		Seq:           seq,
		CreatedAt:     time.Now(),
	}, nil
}

// IdemKey is the derived idempotency key for one paid unit.
func (p *Payment) IdemKey() string {
	return fmt.Sprintf("%s:%s:%d", p.TransactionID, p.ProductID, p.Seq)
}
