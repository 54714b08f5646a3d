package repository

import (
	"context"

	"finedu-reconciliation/internal/domain/model"
)

type SubscriptionRepository interface {
	FindByUser(ctx context.Context, tx Tx, userID string) (*model.Subscription, error)
	// Upsert writes the single row a user may hold (primary key user_id).
	Upsert(ctx context.Context, tx Tx, s *model.Subscription) error
	Delete(ctx context.Context, tx Tx, userID string) error
	ListAll(ctx context.Context, tx Tx) ([]*model.Subscription, error)
	CountByStatus(ctx context.Context, tx Tx) (map[model.SubscriptionStatus]int, error)
}
