package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"finedu-reconciliation/internal/domain"
	"finedu-reconciliation/internal/domain/model"
	"finedu-reconciliation/internal/domain/ports/adapter"
	"finedu-reconciliation/internal/usecase"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Server is the storefront-facing checkout API: gateway settlement and
// carrier-billing order submission.
type Server struct {
	ingestUC usecase.IngestionUseCase
	orderUC  usecase.OrderUseCase
	gateway  adapter.PaymentGateway
	log      *zerolog.Logger
}

func NewServer(
	ingestUC usecase.IngestionUseCase,
	orderUC usecase.OrderUseCase,
	gateway adapter.PaymentGateway,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		ingestUC: ingestUC,
		orderUC:  orderUC,
		gateway:  gateway,
		log:      logger,
	}
}

func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Post("/api/checkout/settle", s.handleSettle)
	r.Post("/api/checkout/orders", s.handleOrderSubmit)
	return r
}

type settleRequest struct {
	UserID        string             `json:"user_id"`
	TransactionID string             `json:"transaction_id"`
	Currency      string             `json:"currency"`
	Lines         []usecase.LineItem `json:"lines"`
}

func (req *settleRequest) total() int64 {
	var sum int64
	for _, l := range req.Lines {
		sum += l.UnitPrice * int64(l.Quantity)
	}
	return sum
}

// handleSettle verifies the transaction with the gateway, then expands it
// into payment rows. Replays return 200 with the original counts.
func (s *Server) handleSettle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req settleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" || req.TransactionID == "" || len(req.Lines) == 0 {
		http.Error(w, "user_id, transaction_id and lines are required", http.StatusBadRequest)
		return
	}

	gtx, err := s.gateway.VerifyTransaction(ctx, req.TransactionID)
	if err != nil {
		s.log.Warn().Err(err).
			Str("transaction_id", req.TransactionID).
			Str("gateway", s.gateway.Name()).
			Msg("gateway verification failed")
		http.Error(w, "Transaction could not be verified", http.StatusUnprocessableEntity)
		return
	}
	if gtx.Amount > 0 && gtx.Amount != req.total() {
		s.log.Warn().
			Str("transaction_id", req.TransactionID).
			Int64("gateway_amount", gtx.Amount).
			Int64("cart_amount", req.total()).
			Msg("settlement amount mismatch")
		http.Error(w, "Cart total does not match the gateway amount", http.StatusUnprocessableEntity)
		return
	}

	res, err := s.ingestUC.Settle(ctx, req.UserID, req.TransactionID, model.MethodCard, req.Currency, req.Lines)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidArgument):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, domain.ErrNothingIngested):
			http.Error(w, err.Error(), http.StatusInternalServerError)
		default:
			s.log.Error().Err(err).Str("transaction_id", req.TransactionID).Msg("settlement failed")
			http.Error(w, "Internal error", http.StatusInternalServerError)
		}
		return
	}

	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, res)
}

type orderSubmitRequest struct {
	UserID        string `json:"user_id"`
	ProductID     string `json:"product_id"`
	ProductName   string `json:"product_name"`
	Amount        int64  `json:"amount"`
	AmountLocal   *int64 `json:"amount_local"`
	Operator      string `json:"operator"`
	PayerPhone    string `json:"payer_phone"`
	ExternalRef   string `json:"external_ref"`
	ProofURL      string `json:"proof_url"`
	TransactionID string `json:"transaction_id"`
}

// handleOrderSubmit records a carrier-billing order awaiting human review.
func (s *Server) handleOrderSubmit(w http.ResponseWriter, r *http.Request) {
	var req orderSubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	order, err := s.orderUC.CreatePending(r.Context(), usecase.CreatePendingInput{
		UserID:        req.UserID,
		ProductID:     req.ProductID,
		ProductName:   req.ProductName,
		Amount:        req.Amount,
		AmountLocal:   req.AmountLocal,
		Operator:      req.Operator,
		PayerPhone:    req.PayerPhone,
		ExternalRef:   req.ExternalRef,
		ProofURL:      req.ProofURL,
		TransactionID: req.TransactionID,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.log.Error().Err(err).Str("user_id", req.UserID).Msg("order submission failed")
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
