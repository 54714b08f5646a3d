package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"finedu-reconciliation/internal/domain"
	"finedu-reconciliation/internal/domain/model"
	"finedu-reconciliation/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `id, user_id, product_id, kind, amount, currency, method, transaction_id, seq, created_at`

func (r *paymentRepo) Insert(ctx context.Context, tx repository.Tx, p *model.Payment) (bool, error) {
	const q = `
INSERT INTO payments (` + paymentColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (user_id, product_id, transaction_id, seq) DO NOTHING;`

	tag, err := execSQL(ctx, r.pool, tx, q, p.ID, p.UserID, p.ProductID, p.Kind, p.Amount, p.Currency, p.Method, p.TransactionID, p.Seq, p.CreatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return tag.RowsAffected() == 1, nil
}

func (r *paymentRepo) InsertBatch(ctx context.Context, tx repository.Tx, ps []*model.Payment) (int, error) {
	if len(ps) == 0 {
		return 0, nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO payments (` + paymentColumns + `) VALUES `)
	args := make([]interface{}, 0, len(ps)*10)
	for i, p := range ps {
		if i > 0 {
			sb.WriteString(",")
		}
		base := i * 10
		sb.WriteString(fmt.Sprintf("($%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9, base+10))
		args = append(args, p.ID, p.UserID, p.ProductID, p.Kind, p.Amount, p.Currency, p.Method, p.TransactionID, p.Seq, p.CreatedAt)
	}
	sb.WriteString(" ON CONFLICT (user_id, product_id, transaction_id, seq) DO NOTHING;")

	tag, err := execSQL(ctx, r.pool, tx, sb.String(), args...)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return 0, err
		}
		return 0, domain.ErrOperationFailed
	}
	return int(tag.RowsAffected()), nil
}

func (r *paymentRepo) ExistsByTransaction(ctx context.Context, tx repository.Tx, transactionID string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM payments WHERE transaction_id=$1);`
	row, err := pickRow(ctx, r.pool, tx, q, transactionID)
	if err != nil {
		return false, err
	}
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, domain.ErrReadDatabaseRow
	}
	return exists, nil
}

func (r *paymentRepo) CountByTransaction(ctx context.Context, tx repository.Tx, transactionID string) (int, error) {
	const q = `SELECT COUNT(*) FROM payments WHERE transaction_id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, transactionID)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return n, nil
}

func (r *paymentRepo) FindForOrder(ctx context.Context, tx repository.Tx, userID, productID, transactionID string) (*model.Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE user_id=$1 AND product_id=$2 AND transaction_id=$3 ORDER BY seq LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, userID, productID, transactionID)
	if err != nil {
		return nil, err
	}
	p := &model.Payment{}
	if err := row.Scan(&p.ID, &p.UserID, &p.ProductID, &p.Kind, &p.Amount, &p.Currency, &p.Method, &p.TransactionID, &p.Seq, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}

func (r *paymentRepo) DeleteForOrder(ctx context.Context, tx repository.Tx, userID, productID, transactionID string) error {
	const q = `DELETE FROM payments WHERE user_id=$1 AND product_id=$2 AND transaction_id=$3;`
	_, err := execSQL(ctx, r.pool, tx, q, userID, productID, transactionID)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *paymentRepo) SumByPeriod(ctx context.Context, tx repository.Tx, period string) (int64, error) {
	const q = `SELECT COALESCE(SUM(amount),0) FROM payments WHERE created_at >= DATE_TRUNC($1, NOW());`
	row, err := pickRow(ctx, r.pool, tx, q, period)
	if err != nil {
		return 0, err
	}
	var sum int64
	if err := row.Scan(&sum); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return sum, nil
}
