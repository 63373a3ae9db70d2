package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fjod/go_backoffice/orders-service/internal/cache"
	"github.com/fjod/go_backoffice/orders-service/internal/config"
	ordersgrpc "github.com/fjod/go_backoffice/orders-service/internal/grpc"
	ordershttp "github.com/fjod/go_backoffice/orders-service/internal/http"
	"github.com/fjod/go_backoffice/orders-service/internal/publisher"
	"github.com/fjod/go_backoffice/orders-service/internal/repository"
	"github.com/fjod/go_backoffice/orders-service/internal/service"
	"github.com/fjod/go_backoffice/pkg/circuitbreaker"
	"github.com/fjod/go_backoffice/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zl, err := logger.New(cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()
	zap.ReplaceGlobals(zl)

	if err := run(cfg, zl); err != nil {
		zl.Fatal("orders-service failed", zap.Error(err))
	}
}

func run(cfg *config.Config, zl *zap.Logger) error {
	zl.Info("orders-service starting...")
	var wg sync.WaitGroup

	// Database setup
	creds := &repository.Credentials{
		Host:              cfg.Database.Host,
		Port:              cfg.Database.Port,
		User:              cfg.Database.User,
		Password:          cfg.Database.Password,
		DBName:            cfg.Database.Name,
		SSLMode:           cfg.Database.SSLMode,
		MigrationsDirPath: cfg.Database.MigrationsPath,
	}
	repo, err := repository.NewRepository(creds)
	if err != nil {
		return err
	}
	defer repo.Close()

	if err := repo.RunMigrations(creds); err != nil {
		return err
	}
	zl.Info("database migrations completed")

	// Order cache
	var orderCache cache.OrderCache = cache.NoopCache{}
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			zl.Warn("redis unreachable at startup, reads fall back to postgres", zap.Error(err))
		}
		cancel()
		orderCache = cache.NewRedisCache(rdb, cfg.Redis.CacheTTL)
	}

	orders, err := service.NewOrderService(service.OrderServiceDeps{
		Store:  repo,
		Cache:  orderCache,
		Logger: zl.Named("orders"),
	})
	if err != nil {
		return err
	}
	stock, err := service.NewStockAdminService(repo, zl.Named("stock"))
	if err != nil {
		return err
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	// Outbox publisher
	var poller *publisher.OutboxPoller
	if len(cfg.Kafka.Brokers) > 0 {
		breaker := circuitbreaker.New(circuitbreaker.Settings{
			Name:             "kafka-orders-outbox",
			MaxRequests:      1,
			Interval:         time.Minute,
			Timeout:          cfg.Breaker.OpenTimeout,
			FailureThreshold: cfg.Breaker.FailureThreshold,
		}, zl)
		writer := publisher.NewKafkaWriter(cfg.Kafka.Topic, cfg.Kafka.Brokers...)
		poller = publisher.NewOutboxPoller(repo, writer, breaker, cfg.Kafka.PollInterval, zl.Named("outbox"))

		wg.Add(1)
		go func() {
			defer wg.Done()
			poller.Run(bgCtx)
		}()
	} else {
		zl.Warn("no kafka brokers configured, order events stay in the outbox")
	}

	// gRPC health server
	reporter := ordersgrpc.NewHealthReporter(repo, 5*time.Second, zl.Named("health"))
	wg.Add(1)
	go func() {
		defer wg.Done()
		reporter.Run(bgCtx)
	}()

	lis, err := net.Listen("tcp", ":"+cfg.Server.GRPCPort)
	if err != nil {
		return err
	}
	grpcServer := ordersgrpc.NewServer(reporter)
	go func() {
		zl.Info("gRPC health server listening", zap.String("port", cfg.Server.GRPCPort))
		if err := grpcServer.Serve(lis); err != nil {
			zl.Error("gRPC server stopped", zap.Error(err))
		}
	}()

	// HTTP API
	srv := &http.Server{
		Addr: ":" + cfg.Server.HTTPPort,
		Handler: ordershttp.NewRouter(ordershttp.RouterConfig{
			Orders:             orders,
			Stock:              stock,
			Logger:             zl.Named("http"),
			RequestTimeout:     cfg.Server.RequestTimeout,
			MaxRequestBodySize: cfg.Server.MaxRequestBodySize,
			Ready:              repo.Ping,
		}),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.Server.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		zl.Info("HTTP server listening", zap.String("port", cfg.Server.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		zl.Error("HTTP server error", zap.Error(err))
	}

	zl.Info("shutting down orders service...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("HTTP server forced to shutdown", zap.Error(err))
	}
	grpcServer.GracefulStop()
	bgCancel()

	doneChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(doneChan)
	}()

	select {
	case <-doneChan:
		zl.Info("background workers stopped cleanly")
	case <-shutdownCtx.Done():
		zl.Warn("background workers didn't stop in time")
	}

	if poller != nil {
		if err := poller.Close(); err != nil {
			zl.Warn("failed to close kafka writer", zap.Error(err))
		}
	}
	zl.Info("orders service stopped")
	return nil
}
