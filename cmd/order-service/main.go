package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/marketplace/order-service/internal/auth"
	"github.com/vasiliy-maslov/marketplace/order-service/internal/config"
	"github.com/vasiliy-maslov/marketplace/order-service/internal/db"
	"github.com/vasiliy-maslov/marketplace/order-service/internal/events"
	"github.com/vasiliy-maslov/marketplace/order-service/internal/handler"
	"github.com/vasiliy-maslov/marketplace/order-service/internal/order"
	"github.com/vasiliy-maslov/marketplace/order-service/internal/otp"
	"github.com/vasiliy-maslov/marketplace/order-service/internal/shop"
	"github.com/vasiliy-maslov/marketplace/order-service/internal/transport"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.App.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.With().Str("service", cfg.App.Name).Logger()

	log.Info().Msg("Order service starting...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := db.ApplyMigrations(cfg.Postgres); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply migrations")
	}

	pg, err := db.New(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pg.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("Failed to connect to Redis")
	}

	var publisher order.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafka, err := events.NewKafkaPublisher(cfg.Kafka)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create Kafka publisher")
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			kafka.Close(flushCtx)
		}()
		publisher = kafka
	} else {
		log.Warn().Msg("No Kafka brokers configured, order events will not be published")
	}

	shops := shop.NewCachedChecker(shop.NewChecker(pg.Pool), redisClient, cfg.Redis.OwnershipTTL, cfg.App.Name)
	orderRepo := order.NewRepository(pg.Pool)
	orderService := order.NewService(orderRepo, shops, publisher, cfg.Orders.MaxBulkOrders)

	otpService := otp.NewService(redisClient, otp.LogSender{}, otp.Config{
		CodeLength:  cfg.OTP.CodeLength,
		TTL:         cfg.OTP.TTL,
		MaxAttempts: cfg.OTP.MaxAttempts,
		SendLimit:   cfg.OTP.SendLimit,
		SendWindow:  cfg.OTP.SendWindow,
	})

	router := transport.NewRouter(transport.RouterDeps{
		Sessions: auth.NewSessionStore(pg.Pool),
		Orders:   handler.NewOrderHandler(orderService),
		OTP:      handler.NewOTPHandler(otpService),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown failed")
		return
	}
	log.Info().Msg("Server stopped")
}
