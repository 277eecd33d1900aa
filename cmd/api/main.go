package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/matheusmosca/commerce-settlement/internal/config"
	"github.com/matheusmosca/commerce-settlement/internal/events"
	"github.com/matheusmosca/commerce-settlement/internal/gateway"
	"github.com/matheusmosca/commerce-settlement/internal/httpapi"
	"github.com/matheusmosca/commerce-settlement/internal/repository/postgres"
	"github.com/matheusmosca/commerce-settlement/internal/telemetry"
	"github.com/matheusmosca/commerce-settlement/internal/usecase"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	// Initialize OpenTelemetry
	if cfg.Telemetry.Enabled {
		tp, err := telemetry.InitTracer(ctx, cfg.ServiceName, cfg.Telemetry)
		if err != nil {
			log.Fatalf("Failed to initialize tracer: %v", err)
		}
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				log.Printf("Error shutting down tracer: %v", err)
			}
		}()

		mp, err := telemetry.InitMetrics(ctx, cfg.ServiceName, cfg.Telemetry)
		if err != nil {
			log.Fatalf("Failed to initialize metrics: %v", err)
		}
		defer func() {
			if err := mp.Shutdown(context.Background()); err != nil {
				log.Printf("Error shutting down meter: %v", err)
			}
		}()
	}

	metrics, err := telemetry.NewMetrics()
	if err != nil {
		log.Fatalf("Failed to register metrics: %v", err)
	}

	// Initialize database
	pool, err := postgres.Connect(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer pool.Close()

	db := postgres.NewDB(pool)
	catalog := postgres.NewCatalogRepository(db)
	repos := usecase.Repositories{
		Tx:        db,
		Products:  catalog,
		Coupons:   catalog,
		Shipping:  catalog,
		Addresses: catalog,
		Carts:     postgres.NewCartRepository(db),
		Orders:    postgres.NewOrderRepository(db),
		Receipts:  postgres.NewReceiptRepository(db),
		Ledger:    postgres.NewLedgerRepository(db),
	}

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		log.Printf("✅ Publishing order events to topic %s", cfg.Kafka.Topic)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Printf("Error closing event publisher: %v", err)
		}
	}()

	// Initialize dependencies
	obs := usecase.Observability{Metrics: metrics, Publisher: publisher}
	gatewayClient := gateway.NewClient(cfg.Gateway)
	settler := usecase.NewSettler(repos, cfg.AllowNegativeStock(), obs)

	gin.SetMode(getGinMode())
	srv := httpapi.NewServer(httpapi.Services{
		Carts:     usecase.NewCartUseCase(repos),
		Orders:    usecase.NewOrderUseCase(repos, cfg.PublicBaseURL, obs),
		Payments:  usecase.NewPaymentUseCase(repos, gatewayClient, settler, cfg.PublicBaseURL, obs),
		Receipts:  usecase.NewReceiptUseCase(repos, settler, obs),
		Inventory: usecase.NewInventoryUseCase(repos, obs),
	}, httpapi.Options{
		ServiceName:      cfg.ServiceName,
		PaymentResultURL: cfg.PaymentResult,
		RequestTimeout:   cfg.RequestTimeout,
	})

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Engine(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	go func() {
		log.Printf("🚀 %s listening on port %s | StockPolicy=%s", cfg.ServiceName, cfg.Port, cfg.StockPolicy)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	log.Printf("👋 %s stopped", cfg.ServiceName)
}

func getGinMode() string {
	if mode := os.Getenv("GIN_MODE"); mode != "" {
		return mode
	}
	return gin.ReleaseMode
}
