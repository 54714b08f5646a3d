//go:build !integration

package usecase

import (
	"context"
	"strings"
	"sync"
	"time"

	"finedu-reconciliation/internal/domain"
	"finedu-reconciliation/internal/domain/model"
	"finedu-reconciliation/internal/domain/ports/repository"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
)

func newLogger() *zerolog.Logger { l := zerolog.Nop(); return &l }

// --- Mock Repositories (Ports) ---

type memOrderRepo struct {
	mu        sync.Mutex
	orders    map[string]*model.Order
	InsertErr error
	UpdateErr error
	ListErr   error
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{orders: make(map[string]*model.Order)}
}

func (m *memOrderRepo) Insert(ctx context.Context, tx repository.Tx, o *model.Order) error {
	if m.InsertErr != nil {
		return m.InsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *o
	m.orders[o.ID] = &cp
	return nil
}

func (m *memOrderRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memOrderRepo) Update(ctx context.Context, tx repository.Tx, o *model.Order) error {
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[o.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *o
	m.orders[o.ID] = &cp
	return nil
}

func (m *memOrderRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.orders, id)
	return nil
}

func (m *memOrderRepo) List(ctx context.Context, tx repository.Tx, f repository.OrderFilter) ([]*model.Order, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Order
	for _, o := range m.orders {
		if f.UserID != "" && o.UserID != f.UserID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if f.Method != "" && o.Method != f.Method {
			continue
		}
		cp := *o
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memOrderRepo) ExistsForProduct(ctx context.Context, tx repository.Tx, userID, productID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.UserID == userID && strings.EqualFold(o.ProductID, productID) {
			return true, nil
		}
	}
	return false, nil
}

type memPaymentRepo struct {
	mu        sync.Mutex
	rows      []*model.Payment
	BatchErr  error
	InsertErr map[string]error // keyed by product id
	DeleteErr error
}

func newMemPaymentRepo() *memPaymentRepo { return &memPaymentRepo{} }

func (m *memPaymentRepo) has(p *model.Payment) bool {
	for _, r := range m.rows {
		if r.UserID == p.UserID && r.ProductID == p.ProductID &&
			r.TransactionID == p.TransactionID && r.Seq == p.Seq {
			return true
		}
	}
	return false
}

func (m *memPaymentRepo) Insert(ctx context.Context, tx repository.Tx, p *model.Payment) (bool, error) {
	if err := m.InsertErr[p.ProductID]; err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.has(p) {
		return false, nil
	}
	cp := *p
	m.rows = append(m.rows, &cp)
	return true, nil
}

func (m *memPaymentRepo) InsertBatch(ctx context.Context, tx repository.Tx, ps []*model.Payment) (int, error) {
	if m.BatchErr != nil {
		return 0, m.BatchErr
	}
	if len(m.InsertErr) > 0 {
		// A poisoned row fails the whole statement, like a real batch insert.
		return 0, domain.ErrOperationFailed
	}
	n := 0
	for _, p := range ps {
		ok, err := m.Insert(ctx, tx, p)
		if err != nil {
			return n, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}

func (m *memPaymentRepo) ExistsByTransaction(ctx context.Context, tx repository.Tx, transactionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.TransactionID == transactionID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memPaymentRepo) CountByTransaction(ctx context.Context, tx repository.Tx, transactionID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.rows {
		if r.TransactionID == transactionID {
			n++
		}
	}
	return n, nil
}

func (m *memPaymentRepo) FindForOrder(ctx context.Context, tx repository.Tx, userID, productID, transactionID string) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.UserID == userID && r.ProductID == productID && r.TransactionID == transactionID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memPaymentRepo) DeleteForOrder(ctx context.Context, tx repository.Tx, userID, productID, transactionID string) error {
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.rows[:0]
	for _, r := range m.rows {
		if r.UserID == userID && r.ProductID == productID && r.TransactionID == transactionID {
			continue
		}
		kept = append(kept, r)
	}
	m.rows = kept
	return nil
}

func (m *memPaymentRepo) SumByPeriod(ctx context.Context, tx repository.Tx, period string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum int64
	for _, r := range m.rows {
		sum += r.Amount
	}
	return sum, nil
}

type memEntitlementRepo struct {
	mu        sync.Mutex
	ents      []*model.Entitlement
	EnsureErr error
}

func newMemEntitlementRepo() *memEntitlementRepo { return &memEntitlementRepo{} }

func (m *memEntitlementRepo) Ensure(ctx context.Context, tx repository.Tx, e *model.Entitlement) (bool, error) {
	if m.EnsureErr != nil {
		return false, m.EnsureErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.ents {
		if x.UserID == e.UserID && x.ProductID == e.ProductID {
			return false, nil
		}
	}
	cp := *e
	m.ents = append(m.ents, &cp)
	return true, nil
}

func (m *memEntitlementRepo) Exists(ctx context.Context, tx repository.Tx, userID, productID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.ents {
		if x.UserID == userID && x.ProductID == productID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memEntitlementRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Entitlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.ents {
		if x.ID == id {
			cp := *x
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memEntitlementRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, x := range m.ents {
		if x.ID == id {
			m.ents = append(m.ents[:i], m.ents[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *memEntitlementRepo) DeleteOne(ctx context.Context, tx repository.Tx, userID, productID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, x := range m.ents {
		if x.UserID == userID && x.ProductID == productID {
			m.ents = append(m.ents[:i], m.ents[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *memEntitlementRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Entitlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Entitlement, 0, len(m.ents))
	for _, x := range m.ents {
		cp := *x
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memEntitlementRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Entitlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Entitlement
	for _, x := range m.ents {
		if x.UserID == userID {
			cp := *x
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memTicketRepo struct {
	mu        sync.Mutex
	tickets   []*model.Ticket
	InsertErr error
}

func newMemTicketRepo() *memTicketRepo { return &memTicketRepo{} }

func (m *memTicketRepo) Insert(ctx context.Context, tx repository.Tx, t *model.Ticket) error {
	if m.InsertErr != nil {
		return m.InsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.tickets = append(m.tickets, &cp)
	return nil
}

func (m *memTicketRepo) ExistsRecent(ctx context.Context, tx repository.Tx, userID, channel string, since time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tickets {
		if t.UserID == userID && t.Channel == channel && !t.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memTicketRepo) ExistsWithKey(ctx context.Context, tx repository.Tx, idemKey string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tickets {
		if t.IdemKey != "" && t.IdemKey == idemKey {
			return true, nil
		}
	}
	return false, nil
}

func (m *memTicketRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Ticket
	for _, t := range m.tickets {
		if t.UserID == userID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memSubscriptionRepo struct {
	mu        sync.Mutex
	subs      map[string]*model.Subscription
	UpsertErr error
}

func newMemSubscriptionRepo() *memSubscriptionRepo {
	return &memSubscriptionRepo{subs: make(map[string]*model.Subscription)}
}

func (m *memSubscriptionRepo) FindByUser(ctx context.Context, tx repository.Tx, userID string) (*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSubscriptionRepo) Upsert(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	if m.UpsertErr != nil {
		return m.UpsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.subs[s.UserID] = &cp
	return nil
}

func (m *memSubscriptionRepo) Delete(ctx context.Context, tx repository.Tx, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[userID]; !ok {
		return domain.ErrNotFound
	}
	delete(m.subs, userID)
	return nil
}

func (m *memSubscriptionRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Subscription
	for _, s := range m.subs {
		cp := *s
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memSubscriptionRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.SubscriptionStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[model.SubscriptionStatus]int)
	for _, s := range m.subs {
		out[s.Status]++
	}
	return out, nil
}

type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User
}

func newMemUserRepo(users ...*model.User) *memUserRepo {
	m := &memUserRepo{users: make(map[string]*model.User)}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *memUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUserRepo) FindByIDs(ctx context.Context, tx repository.Tx, ids []string) (map[string]*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]*model.User)
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			cp := *u
			out[id] = &cp
		}
	}
	return out, nil
}

func (m *memUserRepo) List(ctx context.Context, tx repository.Tx, offset, limit int) ([]*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.User
	for _, u := range m.users {
		cp := *u
		out = append(out, &cp)
	}
	return out, nil
}

// memTx is the opaque handle the fake manager passes through; repositories
// here ignore it, the test only cares that the callback ran inside WithTx.
type memTx struct{}

type memTxManager struct {
	mu    sync.Mutex
	Calls int
	Err   error
}

func (m *memTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	return fn(ctx, memTx{})
}

// --- Mock adapters ---

type mockNotifier struct {
	mu       sync.Mutex
	settled  int
	reviewed int
	Err      error
}

func (m *mockNotifier) PaymentSettled(ctx context.Context, userID, transactionID string, payments int, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settled++
	return m.Err
}

func (m *mockNotifier) OrderReviewed(ctx context.Context, userID, orderID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reviewed++
	return m.Err
}

// Compile-time wiring checks for the fakes.
var (
	_ repository.OrderRepository        = (*memOrderRepo)(nil)
	_ repository.PaymentRepository      = (*memPaymentRepo)(nil)
	_ repository.EntitlementRepository  = (*memEntitlementRepo)(nil)
	_ repository.TicketRepository       = (*memTicketRepo)(nil)
	_ repository.SubscriptionRepository = (*memSubscriptionRepo)(nil)
	_ repository.UserRepository         = (*memUserRepo)(nil)
	_ repository.TransactionManager     = (*memTxManager)(nil)
)
