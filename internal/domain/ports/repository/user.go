package repository

import (
	"context"

	"finedu-reconciliation/internal/domain/model"
)

// UserRepository is the identity lookup collaborator: read-only here.
type UserRepository interface {
	FindByID(ctx context.Context, tx Tx, id string) (*model.User, error)
	// FindByIDs resolves a batch of ids; missing ids are simply absent from
	// the returned map, not errors.
	FindByIDs(ctx context.Context, tx Tx, ids []string) (map[string]*model.User, error)
	List(ctx context.Context, tx Tx, offset, limit int) ([]*model.User, error)
}
