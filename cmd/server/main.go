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

	"order-intake/config"
	"order-intake/internal/api"
	"order-intake/internal/broker"
	"order-intake/internal/outbox"
	"order-intake/internal/redisclient"
	"order-intake/internal/service"
	"order-intake/internal/store"
	"order-intake/internal/util"
	"order-intake/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting order intake service")

	tp, err := util.InitTracer("order-intake", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.CartTTL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	orderProducer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrders)
	defer orderProducer.Close()
	paymentProducer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicPayments)
	defer paymentProducer.Close()
	log.Println("Kafka producers initialized")

	eventPublisher := broker.NewEventPublisher(paymentProducer)

	idempotencyService := service.NewIdempotencyService(db)
	cartService := service.NewCartService(db, redisClient)
	checkoutService := service.NewCheckoutService(db, cartService, idempotencyService)
	orderService := service.NewOrderService(db)

	paymentProcessor := service.NewMockPaymentProcessor(
		cfg.Business.PaymentSuccessRate,
		time.Duration(cfg.Business.PaymentLatencyMillis)*time.Millisecond)
	ingestionService := service.NewIngestionService(db, paymentProcessor, eventPublisher, cfg.Business.PaymentTimeout)
	reconciliationService := service.NewReconciliationService(db)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	outboxPublisher := outbox.NewPublisher(db, orderProducer,
		cfg.Outbox.PollInterval, cfg.Outbox.BatchSize, cfg.Outbox.MaxRetries)
	go outboxPublisher.Run(workerCtx)

	ingestionConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrders, cfg.Kafka.IngestionConsumerGroup)
	ingestionWorker := worker.NewIngestionWorker(ingestionConsumer, ingestionService)
	go func() {
		if err := ingestionWorker.Start(workerCtx); err != nil {
			log.Printf("Ingestion worker stopped: %v", err)
		}
	}()

	reconciliationConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicPayments, cfg.Kafka.ReconciliationConsumerGroup)
	reconciliationWorker := worker.NewReconciliationWorker(reconciliationConsumer, reconciliationService)
	go func() {
		if err := reconciliationWorker.Start(workerCtx); err != nil {
			log.Printf("Reconciliation worker stopped: %v", err)
		}
	}()

	go func() {
		ticker := time.NewTicker(cfg.Business.IdempotencySweepEvery)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				if err := idempotencyService.Sweep(workerCtx); err != nil {
					log.Printf("Idempotency sweep failed: %v", err)
				}
			}
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(checkoutService, cartService, orderService, db)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	workerCancel()
	ingestionWorker.Close()
	reconciliationWorker.Close()

	log.Println("Server exited")
}
