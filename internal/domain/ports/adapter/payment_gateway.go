package adapter

import "context"

// GatewayTransaction is the provider's view of a completed checkout.
type GatewayTransaction struct {
	Reference string
	Amount    int64
	Currency  string
	Completed bool
}

// PaymentGateway verifies checkout transactions with the hosted provider.
type PaymentGateway interface {
	Name() string
	// VerifyTransaction confirms a transaction reference with the provider.
	// A reference the provider does not recognize, or one that is not in a
	// completed state, is an error: settlement must never proceed on it.
	VerifyTransaction(ctx context.Context, reference string) (*GatewayTransaction, error)
}
