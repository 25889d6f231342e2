// Package main initializes and starts the EasyVault server, setting up
// configuration, logging, storage, the sealed cache, services, handlers and
// optional TLS.
package main

import (
	"cmp"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	nethttp "net/http"

	"github.com/atinyakov/easyvault/internal/config"
	"github.com/atinyakov/easyvault/internal/db"
	"github.com/atinyakov/easyvault/internal/logger"
	"github.com/atinyakov/easyvault/internal/metrics"
	"github.com/atinyakov/easyvault/internal/middleware"
	"github.com/atinyakov/easyvault/internal/repository"
	"github.com/atinyakov/easyvault/internal/sealed"
	"github.com/atinyakov/easyvault/internal/server/handler/http"
	"github.com/atinyakov/easyvault/internal/service"
	"go.uber.org/zap"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	// Parse command-line, config file and environment configuration.
	options := config.Parse()

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	if err := log.Init(options.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Log.Sync() }()
	zapLogger := log.Log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Choose storage: PostgreSQL when a DSN is configured, memory otherwise.
	var (
		vaultRepo service.VaultRepository
		eventRepo service.AccessEventRepository
		pinger    http.Pinger
	)
	if options.DatabaseDSN != "" {
		postgresDB, err := db.InitPostgres(options.DatabaseDSN)
		if err != nil {
			zapLogger.Fatal("cannot init database", zap.Error(err))
		}
		defer postgresDB.Close()

		db.StartAccessEventCleaner(ctx, postgresDB,
			time.Duration(options.CleanerInterval),
			time.Duration(options.EventRetention),
			zapLogger,
		)

		vaultRepo = repository.NewPostgresVaultRepository(postgresDB)
		eventRepo = repository.NewPostgresAccessEventRepository(postgresDB)
		pinger = postgresDB
	} else {
		zapLogger.Warn("no database configured, vaults are kept in memory only")
		vaultRepo = repository.NewMemoryVaultRepository()
		eventRepo = repository.NewMemoryAccessEventRepository(0)
	}

	// The sealed cache reports its state edges to the log and to metrics.
	metrics.Init()
	store := sealed.New(
		sealed.WithListener(func(t sealed.Transition) {
			zapLogger.Info("vault state changed",
				zap.Stringer("from", t.From),
				zap.Stringer("to", t.To),
				zap.Int("entries", t.Entries),
			)
		}),
		sealed.WithListener(metrics.ObserveTransition),
	)

	// Initialize business-logic services.
	vaultService := service.NewVaultService(vaultRepo, store)
	auditService := service.NewAuditService(eventRepo)

	// Create HTTP handlers.
	vaultHandler := &http.VaultHandler{
		VaultService: vaultService,
		AuditService: auditService,
		Logger:       zapLogger,
	}
	healthHandler := &http.HealthHandler{Vault: vaultService, DB: pinger}

	// Build the router with middleware and routes.
	router := http.NewRouter(vaultHandler, healthHandler, zapLogger, http.RouterOptions{
		TrustProxyHeaders: options.TrustProxyHeaders,
		Limiter:           middleware.NewLimiter(options.RateLimit, options.RateBurst, 10*time.Minute),
	})

	server := &nethttp.Server{
		Addr:              options.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			zapLogger.Error("graceful shutdown failed", zap.Error(err))
		}
	}()

	var err error
	if options.TLSEnabled() {
		// Load server TLS certificate and key.
		cert, loadErr := tls.LoadX509KeyPair(options.TLSCert, options.TLSKey)
		if loadErr != nil {
			zapLogger.Fatal("failed to load server TLS cert/key", zap.Error(loadErr))
		}
		server.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
		zapLogger.Info("starting HTTPS server", zap.String("addr", options.Address))
		err = server.ListenAndServeTLS("", "")
	} else {
		zapLogger.Info("starting HTTP server", zap.String("addr", options.Address))
		err = server.ListenAndServe()
	}
	if err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		zapLogger.Fatal("server failed", zap.Error(err))
	}
	zapLogger.Info("server stopped")
}
