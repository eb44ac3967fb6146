package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/alfares/partnersplit/internal/service"
	"github.com/alfares/partnersplit/internal/settlement"
	"github.com/alfares/partnersplit/internal/storage/sqlite"
	"github.com/alfares/partnersplit/pkg/logging"
)

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func main() {
	logging.Setup()

	dbPath := getEnv("DB_PATH", "./data/settlements.db")
	port := getEnv("PORT", "8080")
	company := getEnv("COMPANY_BENEFICIARY", settlement.DefaultCompanyBeneficiary)

	store, err := sqlite.New(dbPath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("Storage initialized", "database", dbPath)

	engine := settlement.New(store, settlement.Options{CompanyBeneficiary: company})
	svc := service.New(engine, store)

	root := chi.NewRouter()
	root.Handle("/metrics", promhttp.Handler())
	root.Mount("/", svc.Router())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           root,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Settlement server starting", "address", server.Addr, "company", company)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		slog.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
