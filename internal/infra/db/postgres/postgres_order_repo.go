package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"finedu-reconciliation/internal/domain"
	"finedu-reconciliation/internal/domain/model"
	"finedu-reconciliation/internal/domain/ports/repository"
)

var _ repository.OrderRepository = (*orderRepo)(nil)

type orderRepo struct{ pool *pgxpool.Pool }

func NewOrderRepo(pool *pgxpool.Pool) *orderRepo {
	return &orderRepo{pool: pool}
}

const orderColumns = `id, user_id, product_id, product_name, amount, amount_local, method, status, operator, payer_phone, external_ref, proof_url, transaction_id, validated_at, validated_by, created_at, updated_at`

func (r *orderRepo) Insert(ctx context.Context, tx repository.Tx, o *model.Order) error {
	const q = `
INSERT INTO orders (` + orderColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17);`

	_, err := execSQL(ctx, r.pool, tx, q,
		o.ID, o.UserID, o.ProductID, o.ProductName, o.Amount, o.AmountLocal, o.Method, o.Status,
		o.Operator, o.PayerPhone, o.ExternalRef, o.ProofURL, o.TransactionID, o.ValidatedAt, o.ValidatedBy,
		o.CreatedAt, o.UpdatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *orderRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanOrder(row)
}

func (r *orderRepo) Update(ctx context.Context, tx repository.Tx, o *model.Order) error {
	const q = `
UPDATE orders SET
  product_name=$2, amount=$3, amount_local=$4, method=$5, status=$6, operator=$7, payer_phone=$8,
  external_ref=$9, proof_url=$10, transaction_id=$11, validated_at=$12, validated_by=$13, updated_at=$14
WHERE id=$1;`

	tag, err := execSQL(ctx, r.pool, tx, q,
		o.ID, o.ProductName, o.Amount, o.AmountLocal, o.Method, o.Status, o.Operator, o.PayerPhone,
		o.ExternalRef, o.ProofURL, o.TransactionID, o.ValidatedAt, o.ValidatedBy, o.UpdatedAt)
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

func (r *orderRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	const q = `DELETE FROM orders WHERE id=$1;`
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

func (r *orderRepo) List(ctx context.Context, tx repository.Tx, f repository.OrderFilter) ([]*model.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders`
	var (
		conds []string
		args  []interface{}
	)
	if f.UserID != "" {
		args = append(args, f.UserID)
		conds = append(conds, fmt.Sprintf("user_id=$%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		conds = append(conds, fmt.Sprintf("status=$%d", len(args)))
	}
	if f.Method != "" {
		args = append(args, f.Method)
		conds = append(conds, fmt.Sprintf("method=$%d", len(args)))
	}
	for i, c := range conds {
		if i == 0 {
			q += " WHERE " + c
		} else {
			q += " AND " + c
		}
	}
	q += " ORDER BY created_at DESC;"

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

	var out []*model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

func (r *orderRepo) ExistsForProduct(ctx context.Context, tx repository.Tx, userID, productID string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM orders WHERE user_id=$1 AND LOWER(product_id)=LOWER($2));`
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

func scanOrder(row pgx.Row) (*model.Order, error) {
	o := &model.Order{}
	err := row.Scan(&o.ID, &o.UserID, &o.ProductID, &o.ProductName, &o.Amount, &o.AmountLocal, &o.Method, &o.Status,
		&o.Operator, &o.PayerPhone, &o.ExternalRef, &o.ProofURL, &o.TransactionID, &o.ValidatedAt, &o.ValidatedBy,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return o, nil
}
