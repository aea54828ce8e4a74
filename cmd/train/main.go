package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-canteen/internal/config"
	"ms-canteen/internal/forecast"
	"ms-canteen/internal/logger"
)

// Batch training job. Runs one training pass against the reservation history
// and writes the model artifact the serving process loads on startup.
func main() {
	logger := logger.NewLogger()
	defer logger.Close()

	if err := godotenv.Load(); err != nil {
		logger.Warn("CONFIG", ".env file not found, using environment variables")
	}

	cfg := config.Load()

	sqldb, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
	}
	if err := sqldb.Ping(); err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
	}
	bunDB := bun.NewDB(sqldb, pgdialect.New())
	defer bunDB.Close()

	store := forecast.NewDB(bunDB)
	extractor := forecast.NewExtractor(
		store,
		time.Duration(cfg.Model.LookbackDays)*24*time.Hour,
		cfg.Model.MinTrainingSamples,
	)
	model := forecast.NewDemandModel(store, extractor, cfg.Model, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	trained, err := model.Train(ctx)
	if err != nil {
		logger.Fatal("MODEL", fmt.Sprintf("Training failed: %v", err))
	}
	if !trained {
		logger.Warn("MODEL", "Not enough data to train, artifact unchanged")
		os.Exit(2)
	}

	logger.Info("MODEL", fmt.Sprintf("Model trained and saved to %s", cfg.Model.ArtifactPath))
}
