// cmd/bookedin/main.go
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	_ "github.com/lib/pq"

	"bookedin/internal/catalog"
	"bookedin/internal/circulation"
	"bookedin/internal/config"
	"bookedin/internal/dashboard"
	"bookedin/internal/eventbus"
	"bookedin/internal/membership"
	"bookedin/internal/storage"
	"bookedin/internal/storage/postgres"
	"bookedin/internal/storage/stubs"
	"bookedin/internal/telemetry"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTLPEndpoint)
	if err != nil {
		logger.Fatal("failed to set up tracing", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	var store storage.Store
	if cfg.UseMockDB {
		logger.Info("using in-memory storage")
		store = stubs.NewMemory()
	} else {
		db, err := sqlx.Connect("postgres", cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		store = postgres.New(db)
	}
	defer store.Close()

	bus := eventbus.New()

	circulationSvc := circulation.NewService(store, bus, logger)
	catalogSvc := catalog.NewService(store, bus, logger)
	membershipSvc := membership.NewService(store, bus, logger)

	circulationHandler := circulation.NewHandler(circulationSvc)
	catalogHandler := catalog.NewHandler(catalogSvc)
	membershipHandler := membership.NewHandler(membershipSvc)

	refresher := dashboard.New(bus, cfg.RefreshInterval, func(ctx context.Context) error {
		summary, err := circulationSvc.Summary(ctx)
		if err != nil {
			return err
		}
		logger.Info("circulation summary",
			zap.Int("total_copies", summary.TotalCopies),
			zap.Int("available_copies", summary.AvailableCopies),
			zap.Int("open_loans", summary.OpenLoans),
			zap.Int("pending_waitlist", summary.PendingWaitlist),
		)
		return nil
	}, logger)
	refresher.Start(ctx)
	defer refresher.Stop()

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)

	router.Route("/circulation", func(r chi.Router) {
		r.Post("/checkout", circulationHandler.HandleCheckout)
		r.Post("/return", circulationHandler.HandleReturn)
		r.Post("/renew", circulationHandler.HandleRenew)
		r.Post("/waitlist", circulationHandler.HandleJoinWaitlist)
		r.Get("/summary", circulationHandler.HandleSummary)
	})
	router.Post("/catalog/books", catalogHandler.HandleAddBook)
	router.Post("/members", membershipHandler.HandleRegister)
	router.Get("/members/{username}", membershipHandler.HandleGetMember)
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
		os.Exit(1)
	}
}
