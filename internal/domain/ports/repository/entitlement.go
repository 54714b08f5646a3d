package repository

import (
	"context"

	"finedu-reconciliation/internal/domain/model"
)

type EntitlementRepository interface {
	// Ensure inserts the entitlement unless (user, product) already exists;
	// reports whether a row was actually added.
	Ensure(ctx context.Context, tx Tx, e *model.Entitlement) (bool, error)
	Exists(ctx context.Context, tx Tx, userID, productID string) (bool, error)
	FindByID(ctx context.Context, tx Tx, id string) (*model.Entitlement, error)
	Delete(ctx context.Context, tx Tx, id string) error
	// DeleteOne removes at most one entitlement for (user, product); used as
	// the compensating action when a paid order is rejected or deleted.
	DeleteOne(ctx context.Context, tx Tx, userID, productID string) error
	ListAll(ctx context.Context, tx Tx) ([]*model.Entitlement, error)
	ListByUser(ctx context.Context, tx Tx, userID string) ([]*model.Entitlement, error)
}
