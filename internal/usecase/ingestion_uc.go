package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"finedu-reconciliation/internal/domain"
	"finedu-reconciliation/internal/domain/model"
	"finedu-reconciliation/internal/domain/ports/adapter"
	"finedu-reconciliation/internal/domain/ports/repository"
	"finedu-reconciliation/internal/infra/logging"
	"finedu-reconciliation/internal/infra/metrics"
)

// Compile-time check
var _ IngestionUseCase = (*ingestionUC)(nil)

// LineItem is one purchased product from the checkout cart.
type LineItem struct {
	Product   model.Product `json:"product"`
	UnitPrice int64         `json:"unit_price"`
	Quantity  int           `json:"quantity"`
}

// SettleResult reports what a settlement accounts for: rows persisted by
// this call plus rows an earlier run already persisted. A retry therefore
// comes back with the original totals, not zeros, and Replayed set.
type SettleResult struct {
	TransactionID       string   `json:"transaction_id"`
	Replayed            bool     `json:"replayed"`
	PaymentsAttempted   int      `json:"payments_attempted"`
	PaymentsInserted    int      `json:"payments_inserted"`
	TicketsCreated      int      `json:"tickets_created"`
	EntitlementsCreated int      `json:"entitlements_created"`
	Warnings            []string `json:"warnings,omitempty"`
}

type IngestionUseCase interface {
	// Settle expands a completed gateway transaction into one payment row
	// per purchased unit and applies ticket/entitlement side effects.
	// Submitting the same transaction twice is safe and returns the original
	// counts.
	Settle(ctx context.Context, userID, transactionID string, method model.PaymentMethod, currency string, lines []LineItem) (*SettleResult, error)
}

type ingestionUC struct {
	payments     repository.PaymentRepository
	entitlements repository.EntitlementRepository
	tickets      repository.TicketRepository
	users        repository.UserRepository
	notifier     adapter.Notifier
	log          *zerolog.Logger
}

func NewIngestionUseCase(
	payments repository.PaymentRepository,
	entitlements repository.EntitlementRepository,
	tickets repository.TicketRepository,
	users repository.UserRepository,
	notifier adapter.Notifier,
	logger *zerolog.Logger,
) *ingestionUC {
	return &ingestionUC{
		payments:     payments,
		entitlements: entitlements,
		tickets:      tickets,
		users:        users,
		notifier:     notifier,
		log:          logger,
	}
}

func (uc *ingestionUC) Settle(ctx context.Context, userID, transactionID string, method model.PaymentMethod, currency string, lines []LineItem) (*SettleResult, error) {
	defer logging.TraceDuration(uc.log, "IngestionUC.Settle")()

	if userID == "" || transactionID == "" || len(lines) == 0 {
		return nil, domain.ErrInvalidArgument
	}
	for _, l := range lines {
		if l.Product.ID == "" || l.Quantity <= 0 || l.UnitPrice < 0 {
			return nil, domain.ErrInvalidArgument
		}
	}

	// If the idempotency pre-check itself fails, abort outright: proceeding
	// would risk a duplicate (the one read error that is fatal here).
	exists, err := uc.payments.ExistsByTransaction(ctx, repository.NoTX, transactionID)
	if err != nil {
		return nil, err
	}

	rows, err := uc.expand(userID, transactionID, method, currency, lines)
	if err != nil {
		return nil, err
	}
	if exists {
		return uc.replay(ctx, userID, transactionID, rows, lines)
	}

	res := &SettleResult{TransactionID: transactionID, PaymentsAttempted: len(rows)}
	inserted, warnings := uc.insertRows(ctx, rows)
	res.Warnings = warnings
	if len(inserted) == 0 {
		return nil, domain.ErrNothingIngested
	}
	res.PaymentsInserted = len(inserted)

	uc.applySideEffects(ctx, userID, inserted, lines, res)

	var total int64
	for _, p := range inserted {
		total += p.Amount
		metrics.IncPaymentIngested(string(p.Kind))
	}
	metrics.AddPaymentRevenue(currency, total)

	if err := uc.notifier.PaymentSettled(ctx, userID, transactionID, len(inserted), total); err != nil {
		uc.log.Warn().Err(err).Str("transaction_id", transactionID).Msg("settlement notification failed")
	}

	uc.log.Info().
		Str("transaction_id", transactionID).
		Int("attempted", res.PaymentsAttempted).
		Int("inserted", res.PaymentsInserted).
		Int("tickets", res.TicketsCreated).
		Int("entitlements", res.EntitlementsCreated).
		Msg("settlement complete")
	return res, nil
}

// replay repairs a retried settlement instead of short-circuiting on the
// payment pre-check: every write below is idempotent, so the pass re-creates
// whatever the first run failed to persist and reports the reconciled totals.
func (uc *ingestionUC) replay(ctx context.Context, userID, transactionID string, rows []*model.Payment, lines []LineItem) (*SettleResult, error) {
	res := &SettleResult{TransactionID: transactionID, Replayed: true, PaymentsAttempted: len(rows)}

	var persisted []*model.Payment
	for _, p := range rows {
		if _, err := uc.payments.Insert(ctx, repository.NoTX, p); err != nil {
			uc.log.Error().Err(err).Str("idem_key", p.IdemKey()).Msg("payment row repair failed")
			res.Warnings = append(res.Warnings, fmt.Sprintf("payment %s not inserted: %v", p.IdemKey(), err))
			continue
		}
		persisted = append(persisted, p)
	}

	count, err := uc.payments.CountByTransaction(ctx, repository.NoTX, transactionID)
	if err != nil {
		return nil, err
	}
	res.PaymentsInserted = count

	uc.applySideEffects(ctx, userID, persisted, lines, res)

	uc.log.Info().
		Str("transaction_id", transactionID).
		Int("payments", count).
		Int("tickets", res.TicketsCreated).
		Int("entitlements", res.EntitlementsCreated).
		Msg("replayed settlement reconciled")
	return res, nil
}

// expand turns line items into one payment row per purchased unit, each
// addressable by the derived idempotency key (transaction, product, seq).
func (uc *ingestionUC) expand(userID, transactionID string, method model.PaymentMethod, currency string, lines []LineItem) ([]*model.Payment, error) {
	var rows []*model.Payment
	for _, l := range lines {
		kind := model.Classify(l.Product)
		for seq := 0; seq < l.Quantity; seq++ {
			p, err := model.NewPayment(uuid.NewString(), userID, l.Product.ID, transactionID, kind, method, l.UnitPrice, currency, seq)
			if err != nil {
				return nil, err
			}
			rows = append(rows, p)
		}
	}
	return rows, nil
}

// insertRows tries one batched insert first; when the batch cannot account
// for every row it falls back to per-row inserts so a single malformed line
// does not block the rest.
func (uc *ingestionUC) insertRows(ctx context.Context, rows []*model.Payment) ([]*model.Payment, []string) {
	n, err := uc.payments.InsertBatch(ctx, repository.NoTX, rows)
	if err == nil && n == len(rows) {
		return rows, nil
	}
	if err != nil {
		uc.log.Warn().Err(err).Int("rows", len(rows)).Msg("batch insert failed, retrying per row")
	}

	var inserted []*model.Payment
	var warnings []string
	for _, p := range rows {
		ok, rowErr := uc.payments.Insert(ctx, repository.NoTX, p)
		if rowErr != nil {
			uc.log.Error().Err(rowErr).Str("idem_key", p.IdemKey()).Msg("payment row insert failed")
			warnings = append(warnings, fmt.Sprintf("payment %s not inserted: %v", p.IdemKey(), rowErr))
			continue
		}
		if ok {
			inserted = append(inserted, p)
		}
	}
	return inserted, warnings
}

// applySideEffects accounts for one ticket per persisted analysis unit and
// one entitlement per eligible line item, creating whichever are missing.
// Each ticket is keyed by its payment unit's idempotency key, so a repair
// pass finds the survivors instead of doubling them. A pack grants only the
// pack itself, never the underlying capsules.
func (uc *ingestionUC) applySideEffects(ctx context.Context, userID string, persisted []*model.Payment, lines []LineItem, res *SettleResult) {
	var clientName, clientEmail string
	if u, err := uc.users.FindByID(ctx, repository.NoTX, userID); err == nil {
		clientName, clientEmail = u.DisplayName, u.Email
	}

	for _, p := range persisted {
		if p.Kind != model.KindAnalysis {
			continue
		}
		exists, err := uc.tickets.ExistsWithKey(ctx, repository.NoTX, p.IdemKey())
		if err != nil {
			uc.log.Error().Err(err).Str("idem_key", p.IdemKey()).Msg("ticket lookup failed")
			res.Warnings = append(res.Warnings, fmt.Sprintf("ticket for %s not created: %v", p.IdemKey(), err))
			continue
		}
		if exists {
			res.TicketsCreated++
			continue
		}
		t, err := model.NewTicket(userID, clientName, clientEmail, channelLabel(p.Method))
		if err == nil {
			t.IdemKey = p.IdemKey()
			err = uc.tickets.Insert(ctx, repository.NoTX, t)
		}
		if err != nil {
			uc.log.Error().Err(err).Str("idem_key", p.IdemKey()).Msg("ticket creation failed")
			res.Warnings = append(res.Warnings, fmt.Sprintf("ticket for %s not created: %v", p.IdemKey(), err))
			continue
		}
		res.TicketsCreated++
	}

	for _, l := range lines {
		if !model.GrantsEntitlement(l.Product) {
			continue
		}
		e, err := model.NewEntitlement(uuid.NewString(), userID, l.Product.ID)
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("entitlement for %s not created: %v", l.Product.ID, err))
			continue
		}
		if _, err := uc.entitlements.Ensure(ctx, repository.NoTX, e); err != nil {
			uc.log.Error().Err(err).Str("product_id", l.Product.ID).Msg("entitlement creation failed")
			res.Warnings = append(res.Warnings, fmt.Sprintf("entitlement for %s not created: %v", l.Product.ID, err))
			continue
		}
		res.EntitlementsCreated++
	}
}
