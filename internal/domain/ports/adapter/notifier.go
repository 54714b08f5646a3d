package adapter

import "context"

// Notifier sends fire-and-forget notifications. Callers must treat every
// returned error as a warning: notification failure never fails a request.
type Notifier interface {
	// PaymentSettled announces a settled gateway transaction.
	PaymentSettled(ctx context.Context, userID, transactionID string, payments int, amount int64) error
	// OrderReviewed announces an admin decision on an order.
	OrderReviewed(ctx context.Context, userID, orderID, status string) error
}
