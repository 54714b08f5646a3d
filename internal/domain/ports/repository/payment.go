package repository

import (
	"context"

	"finedu-reconciliation/internal/domain/model"
)

type PaymentRepository interface {
	// Insert adds one payment row. It reports false without error when the
	// unique index (user, product, transaction, seq) already holds the row,
	// so replays collapse in the database rather than in application checks.
	Insert(ctx context.Context, tx Tx, p *model.Payment) (inserted bool, err error)
	// InsertBatch inserts all rows in one statement and returns how many were
	// actually added (conflicts are skipped, not errors).
	InsertBatch(ctx context.Context, tx Tx, ps []*model.Payment) (int, error)
	ExistsByTransaction(ctx context.Context, tx Tx, transactionID string) (bool, error)
	CountByTransaction(ctx context.Context, tx Tx, transactionID string) (int, error)
	FindForOrder(ctx context.Context, tx Tx, userID, productID, transactionID string) (*model.Payment, error)
	// DeleteForOrder removes the payment(s) matching an order's correlation
	// tuple; used only as a compensating action on reject/delete.
	DeleteForOrder(ctx context.Context, tx Tx, userID, productID, transactionID string) error
	SumByPeriod(ctx context.Context, tx Tx, period string) (int64, error)
}
