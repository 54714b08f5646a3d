package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"finedu-reconciliation/internal/domain"
	"finedu-reconciliation/internal/domain/model"
	"finedu-reconciliation/internal/domain/ports/repository"
)

var _ repository.TicketRepository = (*ticketRepo)(nil)

// The table keeps its legacy name analyses.
type ticketRepo struct{ pool *pgxpool.Pool }

func NewTicketRepo(pool *pgxpool.Pool) *ticketRepo {
	return &ticketRepo{pool: pool}
}

const ticketColumns = `code, user_id, client_name, client_email, status, progress, channel, idem_key, created_at`

func (r *ticketRepo) Insert(ctx context.Context, tx repository.Tx, t *model.Ticket) error {
	const q = `
INSERT INTO analyses (` + ticketColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,NULLIF($8,''),$9);`

	_, err := execSQL(ctx, r.pool, tx, q, t.Code, t.UserID, t.ClientName, t.ClientEmail, t.Status, t.Progress, t.Channel, t.IdemKey, t.CreatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *ticketRepo) ExistsRecent(ctx context.Context, tx repository.Tx, userID, channel string, since time.Time) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM analyses WHERE user_id=$1 AND channel=$2 AND created_at >= $3);`
	row, err := pickRow(ctx, r.pool, tx, q, userID, channel, since)
	if err != nil {
		return false, err
	}
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, domain.ErrReadDatabaseRow
	}
	return exists, nil
}

func (r *ticketRepo) ExistsWithKey(ctx context.Context, tx repository.Tx, idemKey string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM analyses WHERE idem_key=$1);`
	row, err := pickRow(ctx, r.pool, tx, q, idemKey)
	if err != nil {
		return false, err
	}
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, domain.ErrReadDatabaseRow
	}
	return exists, nil
}

func (r *ticketRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Ticket, error) {
	const q = `SELECT ` + ticketColumns + ` FROM analyses WHERE user_id=$1 ORDER BY created_at DESC;`
	rows, err := queryRows(ctx, r.pool, tx, q, userID)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.Ticket
	for rows.Next() {
		t := &model.Ticket{}
		var idemKey *string
		if err := rows.Scan(&t.Code, &t.UserID, &t.ClientName, &t.ClientEmail, &t.Status, &t.Progress, &t.Channel, &idemKey, &t.CreatedAt); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, domain.ErrNotFound
			}
			return nil, domain.ErrReadDatabaseRow
		}
		if idemKey != nil {
			t.IdemKey = *idemKey
		}
		out = append(out, t)
	}
	return out, nil
}
