package repository

import (
	"context"
	"time"

	"finedu-reconciliation/internal/domain/model"
)

// TicketRepository intentionally has no Delete: tickets represent service
// work that may already have started and are never removed by compensation.
type TicketRepository interface {
	Insert(ctx context.Context, tx Tx, t *model.Ticket) error
	// ExistsRecent is the duplicate-validation guard: has a ticket for the
	// same user and channel been created since the given instant?
	ExistsRecent(ctx context.Context, tx Tx, userID, channel string, since time.Time) (bool, error)
	// ExistsWithKey checks a caller-supplied idempotency key, which takes
	// precedence over the time-window heuristic when present.
	ExistsWithKey(ctx context.Context, tx Tx, idemKey string) (bool, error)
	ListByUser(ctx context.Context, tx Tx, userID string) ([]*model.Ticket, error)
}
