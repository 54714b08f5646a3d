package web

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"finedu-reconciliation/internal/usecase"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// LoginLimiter throttles password attempts; a nil limiter disables the check.
type LoginLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// Server is the admin reconciliation API: the merged order list, status
// transitions, deletions and the aggregate dashboard stats.
type Server struct {
	orderUC usecase.OrderUseCase
	reconUC usecase.ReconciliationUseCase
	subUC   usecase.SubscriptionUseCase
	auth    *AuthManager
	limiter LoginLimiter
	apiKey  string
	adminPW string
	log     *zerolog.Logger
}

func NewServer(
	orderUC usecase.OrderUseCase,
	reconUC usecase.ReconciliationUseCase,
	subUC usecase.SubscriptionUseCase,
	auth *AuthManager,
	limiter LoginLimiter,
	apiKey string,
	adminPW string,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		orderUC: orderUC,
		reconUC: reconUC,
		subUC:   subUC,
		auth:    auth,
		limiter: limiter,
		apiKey:  apiKey,
		adminPW: adminPW,
		log:     logger,
	}
}

// Router builds the chi mux for the admin surface.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/api/v1/login", s.handleLogin)
	r.Post("/api/v1/logout", s.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/api/v1/orders", s.handleOrdersList)
		r.Post("/api/v1/orders", s.handleOrderCreate)
		r.Get("/api/v1/orders/{id}", s.handleOrderGet)
		r.Patch("/api/v1/orders/{id}/status", s.handleOrderStatus)
		r.Delete("/api/v1/orders/{id}", s.handleOrderDelete)
		r.Get("/api/v1/stats", s.handleStats)
		r.Get("/api/v1/users", s.handleUsersList)
		r.Get("/api/v1/users/{userID}/tickets", s.handleUserTickets)
		r.Get("/api/v1/subscriptions/{userID}", s.handleSubscriptionGet)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// authMiddleware accepts either the static API key as a bearer token or a
// JWT session minted by the login endpoint.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hdr := r.Header.Get("Authorization"); hdr != "" && s.apiKey != "" {
			parts := strings.SplitN(hdr, " ", 2)
			if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") &&
				subtle.ConstantTimeCompare([]byte(parts[1]), []byte(s.apiKey)) == 1 {
				next.ServeHTTP(w, r)
				return
			}
		}

		if s.auth != nil {
			if _, err := s.auth.ParseFromRequest(r); err == nil {
				next.ServeHTTP(w, r)
				return
			}
		}

		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	})
}
