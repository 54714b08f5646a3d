// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"finedu-reconciliation/internal/config"
	"finedu-reconciliation/internal/domain/ports/adapter"
	"finedu-reconciliation/internal/domain/ports/repository"
	"finedu-reconciliation/internal/infra/api"
	pg "finedu-reconciliation/internal/infra/db/postgres"
	"finedu-reconciliation/internal/infra/logging"
	"finedu-reconciliation/internal/infra/notify"
	"finedu-reconciliation/internal/infra/payment"
	red "finedu-reconciliation/internal/infra/redis"
	"finedu-reconciliation/internal/infra/web"
	"finedu-reconciliation/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, relaxed cookies)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("developer mode enabled")
	}

	// ---- Postgres ----
	maxConns := cfg.Database.MaxConn
	if maxConns <= 0 {
		maxConns = 10
	}
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, maxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	go pg.ReportPoolStats(ctx, pool, 15*time.Second)

	// ---- Redis ----
	// Optional: without it the user cache, order locks and the login
	// throttle are disabled.
	var locker adapter.Locker
	var loginLimiter web.LoginLimiter
	var users repository.UserRepository = pg.NewUserRepo(pool)
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()
		locker = red.NewLocker(redisClient)
		loginLimiter = red.NewRateLimiter(redisClient)
		users = pg.NewUserRepoCacheDecorator(users, redisClient)
	} else {
		logger.Warn().Msg("redis.url not set; running without user cache, order locks and login throttle")
	}

	// ---- Repositories ----
	txm := pg.NewTxManager(pool)
	orderRepo := pg.NewOrderRepo(pool)
	paymentRepo := pg.NewPaymentRepo(pool)
	entitlementRepo := pg.NewEntitlementRepo(pool)
	subRepo := pg.NewSubscriptionRepo(pool)
	ticketRepo := pg.NewTicketRepo(pool)

	// ---- Notifier ----
	var notifier adapter.Notifier = notify.NoopNotifier{}
	if cfg.Notify.Enabled {
		notifier = notify.NewEmailNotifier(&cfg.Notify, logger)
	}

	// ---- Use cases ----
	subUC := usecase.NewSubscriptionUseCase(subRepo, logger)
	orderUC := usecase.NewOrderUseCase(orderRepo, paymentRepo, entitlementRepo, ticketRepo, users, subUC, txm, locker, notifier, logger)
	ingestUC := usecase.NewIngestionUseCase(paymentRepo, entitlementRepo, ticketRepo, users, notifier, logger)
	reconUC := usecase.NewReconciliationUseCase(orderRepo, entitlementRepo, subRepo, users, ticketRepo, paymentRepo, logger)

	// ---- Gateway ----
	gateway := payment.NewPayTechGateway(&cfg.Gateway)

	// ---- Admin server ----
	auth := web.NewAuthManager(cfg.Admin.JWTSecret, cfg.Admin.SecureCookie && !cfg.Runtime.Dev, cfg.Admin.CookieTTL)
	adminSrv := web.NewServer(orderUC, reconUC, subUC, auth, loginLimiter, cfg.Admin.APIKey, cfg.Admin.Password, logger)
	admin := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Admin.Port),
		Handler: adminSrv.Router(),
	}
	go func() {
		logger.Info().Str("addr", admin.Addr).Msg("admin api listening")
		if err := admin.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("admin server")
		}
	}()

	// ---- Checkout server ----
	checkoutSrv := api.NewServer(ingestUC, orderUC, gateway, logger)
	checkout := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Checkout.Port),
		Handler: checkoutSrv.Router(),
	}
	go func() {
		logger.Info().Str("addr", checkout.Addr).Msg("checkout api listening")
		if err := checkout.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("checkout server")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := admin.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("admin shutdown")
	}
	if err := checkout.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("checkout shutdown")
	}
}
