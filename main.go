package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-canteen/internal/config"
	"ms-canteen/internal/database/migrations"
	"ms-canteen/internal/forecast"
	"ms-canteen/internal/forecast/forecast_api"
	"ms-canteen/internal/kafka"
	"ms-canteen/internal/logger"
	"ms-canteen/internal/meals"
	"ms-canteen/internal/meals/meals_api"
	"ms-canteen/internal/reservation"
	resdb "ms-canteen/internal/reservation/db"
	"ms-canteen/internal/reservation/qr"
	rediswrap "ms-canteen/internal/reservation/redis"
	"ms-canteen/internal/reservation/reservation_api"
)

func verifyConnections(ctx context.Context, cfg *config.Config, logger *logger.Logger) (*bun.DB, *redis.Client) {
	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		logger.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			logger.Error("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
			time.Sleep(2 * time.Second)
			continue
		}

		err = sqldb.Ping()
		if err == nil {
			break
		}

		logger.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}

	if err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	logger.Info("DATABASE", "PostgreSQL connection successful")

	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	bunDB := bun.NewDB(sqldb, pgdialect.New())

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}
	logger.Info("DATABASE", fmt.Sprintf("Redis connection successful to %s", cfg.Redis.Addr))

	return bunDB, redisClient
}

func main() {
	logger := logger.NewLogger()
	defer logger.Close()

	logger.Info("APP", "Starting Canteen Service initialization")

	if err := godotenv.Load(); err != nil {
		logger.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		logger.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()
	ctx := context.Background()

	logger.Info("APP", "Verifying database connections")
	bunDB, redisClient := verifyConnections(ctx, cfg, logger)
	defer bunDB.Close()
	defer redisClient.Close()

	migrationRunner := migrations.NewRunner(bunDB, migrations.MigrateOptions{
		MigrationsDir: getEnv("MIGRATIONS_DIR", "./migrations"),
		AutoMigrate:   true,
		SeedData:      os.Getenv("SEED_DATA") == "true",
	})
	if err := migrationRunner.RunMigrations(); err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Migration failed: %v", err))
	}
	defer migrationRunner.Close()

	var events reservation.EventPublisher
	if cfg.Kafka.Enabled {
		logger.Info("KAFKA", fmt.Sprintf("Using Kafka brokers: %v", cfg.Kafka.Brokers))
		producer := kafka.NewProducer(cfg.Kafka.Brokers, kafka.TopicSet{
			Created:   cfg.Kafka.Topics.ReservationCreated,
			Cancelled: cfg.Kafka.Topics.ReservationCancelled,
			Completed: cfg.Kafka.Topics.ReservationCompleted,
		})
		defer producer.Close()

		requiredTopics := []string{
			cfg.Kafka.Topics.ReservationCreated,
			cfg.Kafka.Topics.ReservationCancelled,
			cfg.Kafka.Topics.ReservationCompleted,
		}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, requiredTopics); err != nil {
			logger.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		} else {
			logger.Info("KAFKA", "Required topics ensured successfully")
		}
		events = producer
	} else {
		logger.Warn("KAFKA", "Kafka disabled, reservation events will not be published")
	}

	reservationService := reservation.NewService(
		&resdb.DB{Bun: bunDB},
		rediswrap.NewRedis(redisClient),
		events,
		logger,
		cfg.Canteen.MaxReservationsPerUser,
	)

	mealService := meals.NewService(meals.NewDB(bunDB), logger)

	forecastStore := forecast.NewDB(bunDB)
	extractor := forecast.NewExtractor(
		forecastStore,
		time.Duration(cfg.Model.LookbackDays)*24*time.Hour,
		cfg.Model.MinTrainingSamples,
	)
	demandModel := forecast.NewDemandModel(forecastStore, extractor, cfg.Model, logger)
	rushEstimator := forecast.NewRushEstimator(
		forecastStore,
		logger,
		cfg.Model.RushLowThreshold,
		cfg.Model.RushHighThreshold,
		cfg.Model.AuditRushHours,
	)

	qrGenerator := qr.NewQRGenerator(getEnv("QR_SECRET", "canteen-pickup-secret"))

	reservationHandler := reservation_api.NewHandler(reservationService, qrGenerator, logger, cfg.Canteen.MinBookingLead)
	mealHandler := meals_api.NewHandler(mealService, logger)
	forecastHandler := forecast_api.NewHandler(demandModel, rushEstimator, logger)

	logger.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()

	reservationHandler.RegisterRoutes(r)
	logger.Info("ROUTER", "Reservation routes registered under /api/reservation")

	mealHandler.RegisterRoutes(r)
	logger.Info("ROUTER", "Meal routes registered under /api/meals and /api/admin")

	forecastHandler.RegisterRoutes(r)
	logger.Info("ROUTER", "Forecast routes registered under /api/forecast")

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("HTTP", fmt.Sprintf("Canteen Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	logger.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	logger.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		logger.Info("HTTP", "Server shut down gracefully")
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
