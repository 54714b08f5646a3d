package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"finedu-reconciliation/internal/domain"
	"finedu-reconciliation/internal/domain/model"
	"finedu-reconciliation/internal/domain/ports/repository"
)

var _ repository.EntitlementRepository = (*entitlementRepo)(nil)

// The table keeps its legacy name user_capsules.
type entitlementRepo struct{ pool *pgxpool.Pool }

func NewEntitlementRepo(pool *pgxpool.Pool) *entitlementRepo {
	return &entitlementRepo{pool: pool}
}

func (r *entitlementRepo) Ensure(ctx context.Context, tx repository.Tx, e *model.Entitlement) (bool, error) {
	const q = `
INSERT INTO user_capsules (id, user_id, product_id, created_at)
VALUES ($1,$2,$3,$4)
ON CONFLICT (user_id, product_id) DO NOTHING;`

	tag, err := execSQL(ctx, r.pool, tx, q, e.ID, e.UserID, e.ProductID, e.CreatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return tag.RowsAffected() == 1, nil
}

func (r *entitlementRepo) Exists(ctx context.Context, tx repository.Tx, userID, productID string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM user_capsules WHERE user_id=$1 AND product_id=$2);`
	row, err := pickRow(ctx, r.pool, tx, q, userID, productID)
	if err != nil {
		return false, err
	}
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, domain.ErrReadDatabaseRow
	}
	return exists, nil
}

func (r *entitlementRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Entitlement, error) {
	const q = `SELECT id, user_id, product_id, created_at FROM user_capsules WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanEntitlement(row)
}

func (r *entitlementRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	const q = `DELETE FROM user_capsules WHERE id=$1;`
	tag, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *entitlementRepo) DeleteOne(ctx context.Context, tx repository.Tx, userID, productID string) error {
	// Deletes the newest row for the pair; the LIMIT 1 subquery keeps the
	// compensation scoped to a single grant.
	const q = `
DELETE FROM user_capsules
WHERE id = (
  SELECT id FROM user_capsules WHERE user_id=$1 AND product_id=$2 ORDER BY created_at DESC LIMIT 1
);`
	_, err := execSQL(ctx, r.pool, tx, q, userID, productID)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *entitlementRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Entitlement, error) {
	const q = `SELECT id, user_id, product_id, created_at FROM user_capsules ORDER BY created_at DESC;`
	return r.listWith(ctx, tx, q)
}

func (r *entitlementRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Entitlement, error) {
	const q = `SELECT id, user_id, product_id, created_at FROM user_capsules WHERE user_id=$1 ORDER BY created_at DESC;`
	return r.listWith(ctx, tx, q, userID)
}

func (r *entitlementRepo) listWith(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.Entitlement, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.Entitlement
	for rows.Next() {
		e, err := scanEntitlement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func scanEntitlement(row pgx.Row) (*model.Entitlement, error) {
	e := &model.Entitlement{}
	if err := row.Scan(&e.ID, &e.UserID, &e.ProductID, &e.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return e, nil
}
