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

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/consite/procurement-sms/internal/platform/config"
	"github.com/consite/procurement-sms/internal/platform/database"
	"github.com/consite/procurement-sms/internal/platform/logger"
	"github.com/consite/procurement-sms/internal/platform/messagebroker"

	adapterhttp "github.com/consite/procurement-sms/internal/order_response_service/adapters/http"
	"github.com/consite/procurement-sms/internal/order_response_service/adapters/smsprovider"
	"github.com/consite/procurement-sms/internal/order_response_service/app"
	"github.com/consite/procurement-sms/internal/order_response_service/repository/postgres"
)

const (
	serviceName     = "order_response_service"
	shutdownTimeout = 10 * time.Second
)

func main() {
	mainCtx, mainCancel := context.WithCancel(context.Background())
	defer mainCancel()

	cfg, err := config.Load(serviceName)
	if err != nil {
		slog.Error("Failed to load configuration", "service", serviceName, "error", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.LogLevel)
	appLogger = appLogger.With("service", serviceName)
	appLogger.Info("Starting service...")

	appLogger.Info("Configuration loaded",
		"log_level", cfg.LogLevel,
		"nats_url", cfg.NATSUrl,
		"postgres_dsn_present", cfg.PostgresDSN != "",
		"webhook_port", cfg.WebhookServicePort,
		"metrics_port", cfg.MetricsPort,
		"sms_provider_mock", cfg.SMSProviderUseMock,
	)

	dbPool, err := database.NewDBPool(mainCtx, cfg.PostgresDSN)
	if err != nil {
		appLogger.Error("Failed to initialize database connection pool", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()
	appLogger.Info("Database connection pool initialized")

	nc, err := messagebroker.NewNATSClient(cfg.NATSUrl, appLogger, serviceName)
	if err != nil {
		appLogger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer nc.Close()
	appLogger.Info("NATS connection initialized")

	orderRepo := postgres.NewPgOrderRepository(dbPool, appLogger)
	auditRepo := postgres.NewPgAuditRepository(dbPool, appLogger)
	commsRepo := postgres.NewPgCommunicationRepository(dbPool, appLogger)

	var smsAdapter smsprovider.Adapter
	if cfg.SMSProviderUseMock {
		smsAdapter = smsprovider.NewMockProvider(appLogger, "mock", 0)
		appLogger.Warn("Using mock SMS provider; outbound replies are not delivered")
	} else {
		smsAdapter = smsprovider.NewHTTPProvider(appLogger, cfg.SMSProviderAPIURL, cfg.SMSProviderAPIKey, nil)
	}

	resolver := app.NewResolver(orderRepo, appLogger)
	applier := app.NewApplier(orderRepo, auditRepo, appLogger)
	processor := app.NewProcessor(
		orderRepo,
		resolver,
		applier,
		commsRepo,
		smsAdapter,
		nc,
		appLogger,
		cfg.SMSProviderSenderID,
		cfg.DefaultReplyLanguage,
	)

	webhookHandler := adapterhttp.NewWebhookHandler(processor, appLogger, validator.New())
	router := adapterhttp.NewRouter(webhookHandler)

	webhookServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.WebhookServicePort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler: metricsMux,
	}

	g, groupCtx := errgroup.WithContext(mainCtx)

	g.Go(func() error {
		appLogger.Info("Webhook HTTP server listening", "addr", webhookServer.Addr)
		if err := webhookServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("webhook server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		appLogger.Info("Metrics server listening", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := webhookServer.Shutdown(shutdownCtx); err != nil {
			appLogger.Error("Webhook server shutdown error", "error", err)
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			appLogger.Error("Metrics server shutdown error", "error", err)
		}
		return nil
	})

	appLogger.Info("Service components initialized. Service is ready.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var groupErr error
	select {
	case sig := <-sigCh:
		appLogger.Info("Received termination signal", "signal", sig.String())
	case groupErr = <-watchGroup(g):
		appLogger.Error("A critical component failed, initiating shutdown", "error", groupErr)
	}

	appLogger.Info("Attempting graceful shutdown...")
	mainCancel()

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		appLogger.Error("Error during graceful shutdown of components", "error", err)
	}

	appLogger.Info("Service shutdown complete.")
}

// watchGroup monitors an errgroup for early exit.
func watchGroup(g *errgroup.Group) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- g.Wait()
	}()
	return errCh
}
