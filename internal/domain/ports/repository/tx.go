package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an opaque execution context handed through repository calls. The
// concrete type is infra-defined (pgx.Tx for Postgres); repositories must
// gracefully accept NoTX and run against their default pool.
type Tx interface{}

// NoTX marks the non-transactional path.
var NoTX Tx

// TransactionManager executes fn inside one database transaction, passing
// the transaction handle through as Tx. Keeps usecase signatures free of
// storage types while still letting a repository run SELECT ... FOR UPDATE
// when it detects a live transaction.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
