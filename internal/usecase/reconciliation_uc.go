package usecase

import (
	"context"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"finedu-reconciliation/internal/domain"
	"finedu-reconciliation/internal/domain/model"
	"finedu-reconciliation/internal/domain/ports/repository"
	"finedu-reconciliation/internal/infra/logging"
)

// Compile-time check
var _ ReconciliationUseCase = (*reconciliationUC)(nil)

// Stats are the aggregate counters the admin dashboard shows next to the
// merged order list.
type Stats struct {
	Total    int                         `json:"total"`
	Pending  int                         `json:"pending"`
	Paid     int                         `json:"paid"`
	Rejected int                         `json:"rejected"`
	ByMethod map[model.PaymentMethod]int `json:"by_method"`
	Revenue  int64                       `json:"revenue"` // sum of paid order amounts
}

type ReconciliationUseCase interface {
	// Entries returns the unified admin list: real orders merged with
	// virtual ones synthesized from entitlements and subscriptions that have
	// no backing order, enriched with user identity.
	Entries(ctx context.Context, f repository.OrderFilter) ([]model.Entry, Stats, error)
	// Resolve maps an admin-surface id onto its tagged entry, so callers can
	// match on the source instead of inspecting id strings.
	Resolve(ctx context.Context, id string) (model.Entry, error)
	// Tickets lists the analysis tickets opened for a user.
	Tickets(ctx context.Context, userID string) ([]*model.Ticket, error)
	// Users pages through the account base for the admin directory.
	Users(ctx context.Context, offset, limit int) ([]*model.User, error)
	// SettledRevenue sums settled payment rows for the current period
	// ("day", "month", "year"). Unlike Stats.Revenue it counts ledger rows,
	// not the order view, so the two diverge when settlements and orders do.
	SettledRevenue(ctx context.Context, period string) (int64, error)
}

type reconciliationUC struct {
	orders       repository.OrderRepository
	entitlements repository.EntitlementRepository
	subs         repository.SubscriptionRepository
	users        repository.UserRepository
	tickets      repository.TicketRepository
	payments     repository.PaymentRepository
	log          *zerolog.Logger
}

func NewReconciliationUseCase(
	orders repository.OrderRepository,
	entitlements repository.EntitlementRepository,
	subs repository.SubscriptionRepository,
	users repository.UserRepository,
	tickets repository.TicketRepository,
	payments repository.PaymentRepository,
	logger *zerolog.Logger,
) *reconciliationUC {
	return &reconciliationUC{
		orders:       orders,
		entitlements: entitlements,
		subs:         subs,
		users:        users,
		tickets:      tickets,
		payments:     payments,
		log:          logger,
	}
}

func (uc *reconciliationUC) Entries(ctx context.Context, f repository.OrderFilter) ([]model.Entry, Stats, error) {
	defer logging.TraceDuration(uc.log, "ReconciliationUC.Entries")()

	// Orders are fetched with the user filter only: virtual-order exclusion
	// must see every order for a user, regardless of status or method.
	orders, err := uc.orders.List(ctx, repository.NoTX, repository.OrderFilter{UserID: f.UserID})
	if err != nil {
		return nil, Stats{}, err
	}

	entries := make([]model.Entry, 0, len(orders))
	for _, o := range orders {
		entries = append(entries, model.Entry{Source: model.SourceOrder, Order: o})
	}

	virtual, err := uc.synthesize(ctx, f.UserID, orders)
	if err != nil {
		return nil, Stats{}, err
	}
	entries = append(entries, virtual...)

	entries = filterEntries(entries, f)
	uc.enrich(ctx, entries)

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].AsOrder().CreatedAt.After(entries[j].AsOrder().CreatedAt)
	})
	return entries, computeStats(entries), nil
}

// synthesize produces the virtual entries: entitlements and subscriptions
// with no backing order row. It never emits two virtual entries for the same
// (user, product) pair.
func (uc *reconciliationUC) synthesize(ctx context.Context, userID string, orders []*model.Order) ([]model.Entry, error) {
	ents, err := uc.listEntitlements(ctx, userID)
	if err != nil {
		return nil, err
	}

	covered := func(uid, productID string) bool {
		for _, o := range orders {
			if o.UserID == uid && o.MatchesProduct(productID) {
				return true
			}
		}
		return false
	}

	var out []model.Entry
	seen := make(map[string]struct{})
	for _, e := range ents {
		if covered(e.UserID, e.ProductID) {
			continue
		}
		key := e.UserID + "\x00" + strings.ToLower(e.ProductID)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, model.Entry{Source: model.SourceEntitlement, Entitlement: e})
	}

	subs, err := uc.listSubscriptions(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, s := range subs {
		if subscriptionCovered(s.UserID, orders) {
			continue
		}
		out = append(out, model.Entry{Source: model.SourceSubscription, Subscription: s})
	}
	return out, nil
}

// subscriptionCovered matches by product heuristics rather than ids: legacy
// subscription orders carry inconsistent product identifiers.
func subscriptionCovered(userID string, orders []*model.Order) bool {
	for _, o := range orders {
		if o.UserID == userID && model.IsSubscription(o.Product()) {
			return true
		}
	}
	return false
}

func (uc *reconciliationUC) listEntitlements(ctx context.Context, userID string) ([]*model.Entitlement, error) {
	if userID != "" {
		return uc.entitlements.ListByUser(ctx, repository.NoTX, userID)
	}
	return uc.entitlements.ListAll(ctx, repository.NoTX)
}

func (uc *reconciliationUC) listSubscriptions(ctx context.Context, userID string) ([]*model.Subscription, error) {
	if userID != "" {
		s, err := uc.subs.FindByUser(ctx, repository.NoTX, userID)
		if err != nil {
			if err == domain.ErrNotFound {
				return nil, nil
			}
			return nil, err
		}
		return []*model.Subscription{s}, nil
	}
	return uc.subs.ListAll(ctx, repository.NoTX)
}

// enrich fills user email and display name. Identity failures degrade the
// view, they do not fail the read.
func (uc *reconciliationUC) enrich(ctx context.Context, entries []model.Entry) {
	idSet := make(map[string]struct{}, len(entries))
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		uid := e.UserID()
		if _, ok := idSet[uid]; !ok {
			idSet[uid] = struct{}{}
			ids = append(ids, uid)
		}
	}
	users, err := uc.users.FindByIDs(ctx, repository.NoTX, ids)
	if err != nil {
		uc.log.Warn().Err(err).Msg("identity enrichment failed, returning unenriched entries")
		return
	}
	for i := range entries {
		if u, ok := users[entries[i].UserID()]; ok {
			entries[i].UserEmail = u.Email
			entries[i].UserName = u.DisplayName
		}
	}
}

func (uc *reconciliationUC) Resolve(ctx context.Context, id string) (model.Entry, error) {
	source, rawID, err := model.ParseEntryID(id)
	if err != nil {
		return model.Entry{}, err
	}
	switch source {
	case model.SourceEntitlement:
		e, err := uc.entitlements.FindByID(ctx, repository.NoTX, rawID)
		if err != nil {
			return model.Entry{}, err
		}
		return model.Entry{Source: model.SourceEntitlement, Entitlement: e}, nil
	case model.SourceSubscription:
		s, err := uc.subs.FindByUser(ctx, repository.NoTX, rawID)
		if err != nil {
			return model.Entry{}, err
		}
		return model.Entry{Source: model.SourceSubscription, Subscription: s}, nil
	default:
		o, err := uc.orders.FindByID(ctx, repository.NoTX, rawID)
		if err != nil {
			return model.Entry{}, err
		}
		return model.Entry{Source: model.SourceOrder, Order: o}, nil
	}
}

func (uc *reconciliationUC) Tickets(ctx context.Context, userID string) ([]*model.Ticket, error) {
	if userID == "" {
		return nil, domain.ErrInvalidArgument
	}
	return uc.tickets.ListByUser(ctx, repository.NoTX, userID)
}

func (uc *reconciliationUC) Users(ctx context.Context, offset, limit int) ([]*model.User, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return uc.users.List(ctx, repository.NoTX, offset, limit)
}

func (uc *reconciliationUC) SettledRevenue(ctx context.Context, period string) (int64, error) {
	switch period {
	case "day", "month", "year":
	default:
		return 0, domain.ErrInvalidArgument
	}
	return uc.payments.SumByPeriod(ctx, repository.NoTX, period)
}

func filterEntries(entries []model.Entry, f repository.OrderFilter) []model.Entry {
	if f.Status == "" && f.Method == "" {
		return entries
	}
	out := entries[:0]
	for _, e := range entries {
		view := e.AsOrder()
		if f.Status != "" && view.Status != f.Status {
			continue
		}
		if f.Method != "" && view.Method != f.Method {
			continue
		}
		out = append(out, e)
	}
	return out
}

func computeStats(entries []model.Entry) Stats {
	st := Stats{ByMethod: make(map[model.PaymentMethod]int)}
	for _, e := range entries {
		view := e.AsOrder()
		st.Total++
		st.ByMethod[view.Method]++
		switch view.Status {
		case model.OrderStatusPendingReview:
			st.Pending++
		case model.OrderStatusPaid:
			st.Paid++
			st.Revenue += view.Amount
		case model.OrderStatusRejected:
			st.Rejected++
		}
	}
	return st
}
