package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrOperationFailed    = errors.New("operation failed")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")

	// Reconciliation-specific errors
	ErrInvalidStatus        = errors.New("invalid order status")
	ErrVirtualOrderReadOnly = errors.New("virtual orders cannot be validated or rejected")
	ErrGatewayManaged       = errors.New("subscription is managed by the card gateway")
	ErrReactivationBlocked  = errors.New("subscription was manually terminated after this order")
	ErrNothingIngested      = errors.New("no payment rows could be inserted")
	ErrOrderLocked          = errors.New("order is being processed by another request")
)
