package web

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"finedu-reconciliation/internal/domain"
	"finedu-reconciliation/internal/domain/model"
	"finedu-reconciliation/internal/domain/ports/repository"
	red "finedu-reconciliation/internal/infra/redis"
	"finedu-reconciliation/internal/usecase"

	"github.com/go-chi/chi/v5"
)

// entryView is the unified row the dashboard renders: the order projection
// of an entry plus its provenance.
type entryView struct {
	model.Order
	Source    model.EntrySource `json:"source"`
	Mutable   bool              `json:"mutable"`
	UserEmail string            `json:"user_email,omitempty"`
	UserName  string            `json:"user_name,omitempty"`
}

func toEntryView(e model.Entry) entryView {
	o := e.AsOrder()
	o.ID = e.ID()
	return entryView{
		Order:     o,
		Source:    e.Source,
		Mutable:   e.Mutable(),
		UserEmail: e.UserEmail,
		UserName:  e.UserName,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps domain sentinels onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "Not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrInvalidStatus):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrVirtualOrderReadOnly), errors.Is(err, domain.ErrGatewayManaged):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, domain.ErrOrderLocked):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}

const (
	loginAttemptLimit  = 10
	loginAttemptWindow = 15 * time.Minute
)

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.allowLoginAttempt(r) {
		http.Error(w, "Too many login attempts", http.StatusTooManyRequests)
		return
	}

	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if s.adminPW == "" ||
		subtle.ConstantTimeCompare([]byte(req.Password), []byte(s.adminPW)) != 1 {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	token, err := s.auth.Mint(w)
	if err != nil {
		s.log.Error().Err(err).Msg("mint session token")
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// allowLoginAttempt rate-limits password guesses per client address. A
// limiter failure fails open: losing redis must not lock admins out.
func (s *Server) allowLoginAttempt(r *http.Request) bool {
	if s.limiter == nil {
		return true
	}
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	ok, err := s.limiter.Allow(r.Context(), red.LoginKey(ip), loginAttemptLimit, loginAttemptWindow)
	if err != nil {
		s.log.Warn().Err(err).Msg("login rate limiter unavailable")
		return true
	}
	return ok
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.auth.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

// handleOrdersList serves the merged list: real orders plus virtual entries
// synthesized from orphan entitlements and subscriptions.
func (s *Server) handleOrdersList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := repository.OrderFilter{UserID: q.Get("user_id")}
	if v := q.Get("status"); v != "" {
		st, err := model.ParseOrderStatus(v)
		if err != nil {
			writeError(w, err)
			return
		}
		f.Status = st
	}
	f.Method = model.PaymentMethod(q.Get("method"))

	entries, stats, err := s.reconUC.Entries(r.Context(), f)
	if err != nil {
		s.log.Error().Err(err).Msg("list entries")
		writeError(w, err)
		return
	}

	views := make([]entryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, toEntryView(e))
	}
	writeJSON(w, http.StatusOK, struct {
		Data  []entryView   `json:"data"`
		Stats usecase.Stats `json:"stats"`
	}{Data: views, Stats: stats})
}

type orderCreateRequest struct {
	UserID      string `json:"user_id"`
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Amount      int64  `json:"amount"`
	AmountLocal *int64 `json:"amount_local"`
	Method      string `json:"method"`
	ValidatorID string `json:"validator_id"`
}

// handleOrderCreate records an admin-entered order, immediately paid.
func (s *Server) handleOrderCreate(w http.ResponseWriter, r *http.Request) {
	var req orderCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	method := model.PaymentMethod(req.Method)
	if method == "" {
		method = model.MethodCarrier
	}
	order, warnings, err := s.orderUC.Create(r.Context(), usecase.CreateOrderInput{
		UserID:      req.UserID,
		ProductID:   req.ProductID,
		ProductName: req.ProductName,
		Amount:      req.Amount,
		AmountLocal: req.AmountLocal,
		Method:      method,
		ValidatorID: req.ValidatorID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		Order    *model.Order `json:"order"`
		Warnings []string     `json:"warnings,omitempty"`
	}{Order: order, Warnings: warnings})
}

func (s *Server) handleOrderGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	entry, err := s.reconUC.Resolve(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryView(entry))
}

type statusUpdateRequest struct {
	Status         string `json:"status"`
	ValidatorID    string `json:"validator_id"`
	IdempotencyKey string `json:"idempotency_key"`
}

// handleOrderStatus drives the order state machine. Warnings surface
// compensation steps that failed without blocking the write.
func (s *Server) handleOrderStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req statusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	target, err := model.ParseOrderStatus(req.Status)
	if err != nil {
		writeError(w, err)
		return
	}

	source, rawID, err := model.ParseEntryID(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if source != model.SourceOrder {
		writeError(w, domain.ErrVirtualOrderReadOnly)
		return
	}

	warnings, err := s.orderUC.UpdateStatus(r.Context(), rawID, target, req.ValidatorID, req.IdempotencyKey)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Status   model.OrderStatus `json:"status"`
		Warnings []string          `json:"warnings,omitempty"`
	}{Status: target, Warnings: warnings})
}

func (s *Server) handleOrderDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	warnings, err := s.orderUC.Delete(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if len(warnings) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Warnings []string `json:"warnings"`
	}{Warnings: warnings})
}

// handleStats serves the aggregate dashboard counters.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	_, stats, err := s.reconUC.Entries(r.Context(), repository.OrderFilter{})
	if err != nil {
		s.log.Error().Err(err).Msg("compute stats")
		writeError(w, err)
		return
	}
	subsByStatus, err := s.subUC.CountByStatus(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("count subscriptions")
		writeError(w, err)
		return
	}
	settled, err := s.reconUC.SettledRevenue(r.Context(), "month")
	if err != nil {
		s.log.Error().Err(err).Msg("sum settled revenue")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Orders         usecase.Stats                    `json:"orders"`
		Subscriptions  map[model.SubscriptionStatus]int `json:"subscriptions"`
		SettledRevenue int64                            `json:"settled_revenue_month"`
	}{Orders: stats, Subscriptions: subsByStatus, SettledRevenue: settled})
}

// handleUsersList pages through the account directory.
func (s *Server) handleUsersList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	offset, _ := strconv.Atoi(q.Get("offset"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	users, err := s.reconUC.Users(r.Context(), offset, limit)
	if err != nil {
		s.log.Error().Err(err).Msg("list users")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Data []*model.User `json:"data"`
	}{Data: users})
}

// handleUserTickets lists the analysis tickets opened for one user.
func (s *Server) handleUserTickets(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	tickets, err := s.reconUC.Tickets(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Data []*model.Ticket `json:"data"`
	}{Data: tickets})
}

func (s *Server) handleSubscriptionGet(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	sub, err := s.subUC.FindByUser(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}
