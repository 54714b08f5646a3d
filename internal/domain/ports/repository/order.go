package repository

import (
	"context"

	"finedu-reconciliation/internal/domain/model"
)

// OrderFilter narrows List results. Zero values mean "no filter".
type OrderFilter struct {
	UserID string
	Status model.OrderStatus
	Method model.PaymentMethod
}

type OrderRepository interface {
	Insert(ctx context.Context, tx Tx, o *model.Order) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Order, error)
	Update(ctx context.Context, tx Tx, o *model.Order) error
	Delete(ctx context.Context, tx Tx, id string) error
	List(ctx context.Context, tx Tx, f OrderFilter) ([]*model.Order, error)
	// ExistsForProduct checks whether any order covers (user, product),
	// matching the product id case-insensitively (legacy rows vary).
	ExistsForProduct(ctx context.Context, tx Tx, userID, productID string) (bool, error)
}
