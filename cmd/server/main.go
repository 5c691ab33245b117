package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pos-checkout/config"
	"pos-checkout/internal/api"
	"pos-checkout/internal/broker"
	"pos-checkout/internal/catalog"
	"pos-checkout/internal/payment"
	"pos-checkout/internal/redisclient"
	"pos-checkout/internal/service"
	"pos-checkout/internal/store"
	"pos-checkout/internal/util"
	"pos-checkout/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// pendingBackend is a pending settlement store that the readiness check can ping
type pendingBackend interface {
	service.PendingStore
	api.Pinger
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting pos checkout", zap.String("business_id", cfg.Business.BusinessID))

	tp, err := util.InitTracer("pos-checkout", cfg.Observ.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Error("Error shutting down tracer", zap.Error(err))
		}
	}()

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	pending, closePending, err := openPendingStore(workerCtx, cfg)
	if err != nil {
		logger.Fatal("Failed to open pending settlement store",
			zap.String("backend", cfg.Business.PendingBackend), zap.Error(err))
	}
	defer closePending()
	logger.Info("Pending settlement store ready", zap.String("backend", cfg.Business.PendingBackend))

	catalogClient := catalog.NewClient(cfg.Catalog.BaseURL, cfg.Catalog.LedgerURL, cfg.Catalog.Timeout)
	gateway := payment.NewRedirectGateway(cfg.Payment.ProviderURL, cfg.Payment.APIKey, cfg.Catalog.Timeout)

	var publisher service.EventPublisher
	var alertWorker *worker.StockAlertWorker
	if cfg.Kafka.Enabled() {
		transactions := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicTransactions)
		defer transactions.Close()
		alerts := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicAlerts)
		defer alerts.Close()
		logger.Info("Kafka producers initialized", zap.Strings("brokers", cfg.Kafka.Brokers))

		publisher = broker.NewEventPublisher(transactions, alerts)

		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicTransactions, cfg.Kafka.ConsumerGroup)
		alertWorker = worker.NewStockAlertWorker(consumer, service.NewStockAlertService(catalogClient, publisher))
		go func() {
			if err := alertWorker.Start(workerCtx); err != nil {
				logger.Error("Stock alert worker error", zap.Error(err))
			}
		}()
	} else {
		logger.Info("Kafka disabled, events will not be published")
	}

	sessions := service.NewSessionRegistry(catalogClient, cfg.Business.BusinessID)
	checkoutService := service.NewCheckoutService(sessions, catalogClient, gateway, pending, publisher, cfg.Server.PublicURL)
	importService := service.NewImportService(catalogClient, publisher)
	valuationService := service.NewValuationService(catalogClient, cfg.Business.ValuationLimit)

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(checkoutService, importService, valuationService, cfg.Business.ImportErrorPreview)
	handler.AddDependency("pending_store", pending)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if alertWorker != nil {
		if err := alertWorker.Stop(); err != nil {
			logger.Error("Failed to stop stock alert worker", zap.Error(err))
		}
	}

	logger.Info("Server exited")
}

// openPendingStore connects the configured backend. The returned func
// releases its connections.
func openPendingStore(ctx context.Context, cfg *config.Config) (pendingBackend, func(), error) {
	ttl := cfg.Business.PendingTTL

	switch cfg.Business.PendingBackend {
	case config.PendingBackendRedis:
		client, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, ttl)
		if err != nil {
			return nil, nil, err
		}
		return client, func() { _ = client.Close() }, nil

	case config.PendingBackendPostgres:
		db, err := store.NewStore(cfg.Database.URL, ttl)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		go purgeExpired(ctx, db, ttl)
		return db, func() { _ = db.Close() }, nil

	case config.PendingBackendMemory:
		return store.NewMemory(ttl), func() {}, nil
	}

	return nil, nil, fmt.Errorf("unknown pending backend %q", cfg.Business.PendingBackend)
}

// purgeExpired removes abandoned redirect records from Postgres
func purgeExpired(ctx context.Context, db *store.Store, every time.Duration) {
	logger := util.GetLogger()
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := db.PurgeExpired(ctx)
			if err != nil {
				logger.Error("Failed to purge expired pending settlements", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Info("Purged expired pending settlements", zap.Int64("count", n))
			}
		}
	}
}
