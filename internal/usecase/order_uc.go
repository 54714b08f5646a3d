package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"finedu-reconciliation/internal/domain"
	"finedu-reconciliation/internal/domain/model"
	"finedu-reconciliation/internal/domain/ports/adapter"
	"finedu-reconciliation/internal/domain/ports/repository"
	"finedu-reconciliation/internal/infra/logging"
	"finedu-reconciliation/internal/infra/metrics"
)

// Compile-time check
var _ OrderUseCase = (*orderUC)(nil)

// Two validations of the same order in quick succession must not double a
// ticket. A caller-supplied idempotency key takes precedence over the window.
const ticketDedupWindow = 2 * time.Minute

const orderLockTTL = 30 * time.Second

type CreateOrderInput struct {
	UserID      string
	ProductID   string
	ProductName string
	Amount      int64
	AmountLocal *int64
	Method      model.PaymentMethod
	ValidatorID string
}

type CreatePendingInput struct {
	UserID        string
	ProductID     string
	ProductName   string
	Amount        int64
	AmountLocal   *int64
	Operator      string
	PayerPhone    string
	ExternalRef   string
	ProofURL      string
	TransactionID string
}

type OrderUseCase interface {
	// Create records an admin-entered order: pre-validated, immediately paid,
	// with the full transition-to-paid side effects.
	Create(ctx context.Context, in CreateOrderInput) (*model.Order, []string, error)
	// CreatePending records a storefront carrier-billing order awaiting
	// human review.
	CreatePending(ctx context.Context, in CreatePendingInput) (*model.Order, error)
	// UpdateStatus drives the order state machine. Returned warnings are
	// compensation steps that failed without blocking the primary write.
	UpdateStatus(ctx context.Context, orderID string, target model.OrderStatus, validatorID, idemKey string) ([]string, error)
	// Delete removes a real or virtual entry, applying the same compensation
	// rules as rejection based on the order's status at deletion time.
	Delete(ctx context.Context, entryID string) ([]string, error)
}

type orderUC struct {
	orders       repository.OrderRepository
	payments     repository.PaymentRepository
	entitlements repository.EntitlementRepository
	tickets      repository.TicketRepository
	users        repository.UserRepository
	subUC        SubscriptionUseCase
	txm          repository.TransactionManager // nil runs without row locking
	locker       adapter.Locker                // nil disables cross-request serialization
	notifier     adapter.Notifier
	log          *zerolog.Logger
}

func NewOrderUseCase(
	orders repository.OrderRepository,
	payments repository.PaymentRepository,
	entitlements repository.EntitlementRepository,
	tickets repository.TicketRepository,
	users repository.UserRepository,
	subUC SubscriptionUseCase,
	txm repository.TransactionManager,
	locker adapter.Locker,
	notifier adapter.Notifier,
	logger *zerolog.Logger,
) *orderUC {
	return &orderUC{
		orders:       orders,
		payments:     payments,
		entitlements: entitlements,
		tickets:      tickets,
		users:        users,
		subUC:        subUC,
		txm:          txm,
		locker:       locker,
		notifier:     notifier,
		log:          logger,
	}
}

// inTx runs fn inside one database transaction when a manager is wired, so
// the order read takes a row lock that holds until the status write commits.
func (uc *orderUC) inTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	if uc.txm == nil {
		return fn(ctx, repository.NoTX)
	}
	return uc.txm.WithTx(ctx, pgx.TxOptions{}, fn)
}

func (uc *orderUC) Create(ctx context.Context, in CreateOrderInput) (*model.Order, []string, error) {
	o, err := model.NewOrder(uuid.NewString(), in.UserID, in.ProductID, in.ProductName, in.Amount, in.Method, model.OrderStatusPendingReview)
	if err != nil {
		return nil, nil, err
	}
	o.AmountLocal = in.AmountLocal

	// Flag a likely double entry, but let the admin proceed: a second real
	// purchase of the same product is rare yet legitimate.
	var warnings []string
	if exists, err := uc.orders.ExistsForProduct(ctx, repository.NoTX, in.UserID, in.ProductID); err == nil && exists {
		warnings = append(warnings, fmt.Sprintf("an order for %s already exists for this user", in.ProductID))
	}

	if err := uc.orders.Insert(ctx, repository.NoTX, o); err != nil {
		return nil, nil, err
	}
	paidWarnings, err := uc.markPaid(ctx, repository.NoTX, o, in.ValidatorID, "")
	warnings = append(warnings, paidWarnings...)
	if err != nil {
		return nil, warnings, err
	}
	return o, warnings, nil
}

func (uc *orderUC) CreatePending(ctx context.Context, in CreatePendingInput) (*model.Order, error) {
	o, err := model.NewOrder(uuid.NewString(), in.UserID, in.ProductID, in.ProductName, in.Amount, model.MethodCarrier, model.OrderStatusPendingReview)
	if err != nil {
		return nil, err
	}
	o.AmountLocal = in.AmountLocal
	o.Operator = in.Operator
	o.PayerPhone = in.PayerPhone
	o.ExternalRef = in.ExternalRef
	o.ProofURL = in.ProofURL
	o.TransactionID = in.TransactionID
	if err := uc.orders.Insert(ctx, repository.NoTX, o); err != nil {
		return nil, err
	}
	uc.log.Info().Str("order_id", o.ID).Str("user_id", o.UserID).Msg("carrier-billing order awaiting review")
	return o, nil
}

func (uc *orderUC) UpdateStatus(ctx context.Context, orderID string, target model.OrderStatus, validatorID, idemKey string) ([]string, error) {
	defer logging.TraceDuration(uc.log, "OrderUC.UpdateStatus")()

	unlock, err := uc.lockOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var warnings []string
	err = uc.inTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		o, err := uc.orders.FindByID(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if o.Status == target {
			return nil
		}

		switch target {
		case model.OrderStatusPaid:
			warnings, err = uc.markPaid(ctx, tx, o, validatorID, idemKey)
			return err
		case model.OrderStatusRejected:
			warnings, err = uc.markRejected(ctx, tx, o)
			return err
		case model.OrderStatusPendingReview:
			// Re-opening a rejected order is not supported.
			if o.Status == model.OrderStatusRejected {
				return domain.ErrInvalidStatus
			}
			o.Status = model.OrderStatusPendingReview
			o.UpdatedAt = time.Now()
			return uc.orders.Update(ctx, tx, o)
		default:
			return domain.ErrInvalidStatus
		}
	})
	if err != nil {
		return nil, err
	}
	return warnings, nil
}

// markPaid stamps validation, persists the status, then applies the paid
// side effects. Side-effect failures surface as warnings, never as errors:
// the primary write stands and an operator reconciles manually.
func (uc *orderUC) markPaid(ctx context.Context, tx repository.Tx, o *model.Order, validatorID, idemKey string) ([]string, error) {
	now := time.Now()
	o.Status = model.OrderStatusPaid
	o.ValidatedAt = &now
	o.ValidatedBy = validatorID
	o.UpdatedAt = now
	if err := uc.orders.Update(ctx, tx, o); err != nil {
		return nil, err
	}
	metrics.IncOrderTransition(string(model.OrderStatusPaid))

	var warnings []string
	product := o.Product()
	switch {
	case model.IsAnalysis(product):
		warnings = append(warnings, uc.settleAnalysis(ctx, o, idemKey)...)
	case model.IsSubscription(product):
		if _, err := uc.subUC.Activate(ctx, o); err != nil {
			warnings = uc.warn(warnings, o, "subscription activation", err)
		}
	default:
		warnings = append(warnings, uc.ensureEntitlement(ctx, o)...)
	}

	if err := uc.notifier.OrderReviewed(ctx, o.UserID, o.ID, string(o.Status)); err != nil {
		uc.log.Warn().Err(err).Str("order_id", o.ID).Msg("order notification failed")
	}
	return warnings, nil
}

func (uc *orderUC) markRejected(ctx context.Context, tx repository.Tx, o *model.Order) ([]string, error) {
	prev := o.Status
	o.Status = model.OrderStatusRejected
	o.UpdatedAt = time.Now()
	if err := uc.orders.Update(ctx, tx, o); err != nil {
		return nil, err
	}
	metrics.IncOrderTransition(string(model.OrderStatusRejected))

	warnings := uc.compensate(ctx, o, prev)
	if err := uc.notifier.OrderReviewed(ctx, o.UserID, o.ID, string(o.Status)); err != nil {
		uc.log.Warn().Err(err).Str("order_id", o.ID).Msg("order notification failed")
	}
	return warnings, nil
}

// compensate undoes the downstream effects a previously-paid order created.
// Every step is best-effort and independently logged.
func (uc *orderUC) compensate(ctx context.Context, o *model.Order, prev model.OrderStatus) []string {
	var warnings []string
	wasPaid := prev == model.OrderStatusPaid
	product := o.Product()

	switch {
	case model.IsAnalysis(product):
		if !wasPaid {
			return warnings
		}
		// The payment goes; the ticket deliberately stays (work may have
		// already started on the analysis).
		if err := uc.payments.DeleteForOrder(ctx, repository.NoTX, o.UserID, o.ProductID, uc.orderTransactionID(o)); err != nil {
			warnings = uc.warn(warnings, o, "payment removal", err)
		}
	case model.IsSubscription(product):
		remaining, err := uc.remainingPaidSubscriptionOrders(ctx, o)
		if err != nil {
			warnings = uc.warn(warnings, o, "subscription orphan check", err)
			return warnings
		}
		if remaining > 0 {
			// Another paid order still justifies the subscription.
			return warnings
		}
		if err := uc.subUC.Cancel(ctx, o); err != nil {
			warnings = uc.warn(warnings, o, "subscription cancellation", err)
		}
	default:
		if !wasPaid {
			return warnings
		}
		if err := uc.entitlements.DeleteOne(ctx, repository.NoTX, o.UserID, o.ProductID); err != nil {
			warnings = uc.warn(warnings, o, "entitlement removal", err)
		}
	}
	return warnings
}

func (uc *orderUC) Delete(ctx context.Context, entryID string) ([]string, error) {
	source, rawID, err := model.ParseEntryID(entryID)
	if err != nil {
		return nil, err
	}

	switch source {
	case model.SourceEntitlement:
		return nil, uc.entitlements.Delete(ctx, repository.NoTX, rawID)
	case model.SourceSubscription:
		// Removing the synthesized subscription entry is the admin's manual
		// termination: cancel and stamp the anti-reactivation marker.
		return nil, uc.subUC.Terminate(ctx, rawID)
	}

	unlock, err := uc.lockOrder(ctx, rawID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var warnings []string
	err = uc.inTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		o, err := uc.orders.FindByID(ctx, tx, rawID)
		if err != nil {
			return err
		}
		warnings = uc.compensate(ctx, o, o.Status)
		return uc.orders.Delete(ctx, tx, rawID)
	})
	if err != nil {
		return warnings, err
	}
	metrics.IncOrderTransition("deleted")
	return warnings, nil
}

// settleAnalysis makes sure a paid analysis order has its payment row and
// opens exactly one new ticket, unless the duplicate-validation guard trips.
func (uc *orderUC) settleAnalysis(ctx context.Context, o *model.Order, idemKey string) []string {
	var warnings []string
	txID := uc.orderTransactionID(o)

	if _, err := uc.payments.FindForOrder(ctx, repository.NoTX, o.UserID, o.ProductID, txID); err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			warnings = uc.warn(warnings, o, "payment lookup", err)
		} else {
			p, perr := model.NewPayment(uuid.NewString(), o.UserID, o.ProductID, txID, model.KindAnalysis, o.Method, o.Amount, "", 0)
			if perr == nil {
				_, perr = uc.payments.Insert(ctx, repository.NoTX, p)
			}
			if perr != nil {
				warnings = uc.warn(warnings, o, "payment creation", perr)
			}
		}
	}

	channel := channelLabel(o.Method)
	dup, err := uc.ticketAlreadyOpened(ctx, o.UserID, channel, idemKey)
	if err != nil {
		warnings = uc.warn(warnings, o, "ticket dedup check", err)
		return warnings
	}
	if dup {
		uc.log.Info().Str("order_id", o.ID).Msg("skipping ticket creation, duplicate validation detected")
		return warnings
	}

	t, err := uc.newTicketFor(ctx, o.UserID, channel)
	if err != nil {
		warnings = uc.warn(warnings, o, "ticket creation", err)
		return warnings
	}
	t.IdemKey = idemKey
	if err := uc.tickets.Insert(ctx, repository.NoTX, t); err != nil {
		warnings = uc.warn(warnings, o, "ticket creation", err)
	}
	return warnings
}

func (uc *orderUC) ensureEntitlement(ctx context.Context, o *model.Order) []string {
	var warnings []string
	exists, err := uc.entitlements.Exists(ctx, repository.NoTX, o.UserID, o.ProductID)
	if err != nil {
		return uc.warn(warnings, o, "entitlement lookup", err)
	}
	if exists {
		return warnings
	}
	e, err := model.NewEntitlement(uuid.NewString(), o.UserID, o.ProductID)
	if err != nil {
		return uc.warn(warnings, o, "entitlement creation", err)
	}
	if _, err := uc.entitlements.Ensure(ctx, repository.NoTX, e); err != nil {
		warnings = uc.warn(warnings, o, "entitlement creation", err)
	}
	return warnings
}

// remainingPaidSubscriptionOrders re-queries how many other paid subscription
// orders still justify the user's subscription.
func (uc *orderUC) remainingPaidSubscriptionOrders(ctx context.Context, o *model.Order) (int, error) {
	paid, err := uc.orders.List(ctx, repository.NoTX, repository.OrderFilter{
		UserID: o.UserID,
		Status: model.OrderStatusPaid,
	})
	if err != nil {
		return 0, err
	}
	n := 0
	for _, other := range paid {
		if other.ID == o.ID {
			continue
		}
		if model.IsSubscription(other.Product()) {
			n++
		}
	}
	return n, nil
}

func (uc *orderUC) ticketAlreadyOpened(ctx context.Context, userID, channel, idemKey string) (bool, error) {
	if idemKey != "" {
		return uc.tickets.ExistsWithKey(ctx, repository.NoTX, idemKey)
	}
	return uc.tickets.ExistsRecent(ctx, repository.NoTX, userID, channel, time.Now().Add(-ticketDedupWindow))
}

func (uc *orderUC) newTicketFor(ctx context.Context, userID, channel string) (*model.Ticket, error) {
	var name, email string
	if u, err := uc.users.FindByID(ctx, repository.NoTX, userID); err == nil {
		name, email = u.DisplayName, u.Email
	} else {
		uc.log.Warn().Err(err).Str("user_id", userID).Msg("identity lookup failed, ticket keeps empty client snapshot")
	}
	return model.NewTicket(userID, name, email, channel)
}

// orderTransactionID falls back to an order-scoped key when the storefront
// recorded no gateway reference (manual carrier-billing entries).
func (uc *orderUC) orderTransactionID(o *model.Order) string {
	if o.TransactionID != "" {
		return o.TransactionID
	}
	return "order-" + o.ID
}

func (uc *orderUC) lockOrder(ctx context.Context, orderID string) (func(), error) {
	if uc.locker == nil {
		return func() {}, nil
	}
	key := "order:lock:" + orderID
	token, err := uc.locker.TryLock(ctx, key, orderLockTTL)
	if err != nil {
		return nil, domain.ErrOrderLocked
	}
	return func() { _ = uc.locker.Unlock(ctx, key, token) }, nil
}

func (uc *orderUC) warn(warnings []string, o *model.Order, step string, err error) []string {
	uc.log.Error().Err(err).Str("order_id", o.ID).Str("step", step).Msg("compensation step failed")
	metrics.IncCompensationWarning(step)
	return append(warnings, fmt.Sprintf("%s failed: %v", step, err))
}

func channelLabel(m model.PaymentMethod) string {
	if m == model.MethodCarrier {
		return "Mobile Money"
	}
	return "Carte bancaire"
}
