package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"ms-canteen/internal/config"
	"ms-canteen/internal/database/migrations"
	"ms-canteen/internal/logger"
)

// Standalone migration runner for deployments that do not auto-migrate on
// startup. Supports: up (default), down, seed.
func main() {
	direction := flag.String("direction", "up", "migration direction: up, down or seed")
	dir := flag.String("dir", "./migrations", "directory containing migration files")
	flag.Parse()

	logger := logger.NewLogger()
	defer logger.Close()

	if err := godotenv.Load(); err != nil {
		logger.Warn("CONFIG", ".env file not found, using environment variables")
	}

	cfg := config.Load()

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Database.DSN)))
	if err := sqldb.Ping(); err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
	}
	bunDB := bun.NewDB(sqldb, pgdialect.New())
	defer bunDB.Close()

	runner := migrations.NewRunner(bunDB, migrations.MigrateOptions{
		MigrationsDir: *dir,
		SeedData:      *direction == "seed",
	})
	defer runner.Close()

	var err error
	switch *direction {
	case "up":
		err = runner.RunMigrations()
	case "seed":
		err = runner.MigrateUp()
	case "down":
		err = runner.MigrateDown()
	default:
		logger.Error("DATABASE", fmt.Sprintf("Unknown direction %q", *direction))
		os.Exit(1)
	}

	if err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Migration failed: %v", err))
	}
	logger.Info("DATABASE", fmt.Sprintf("Migration %s completed", *direction))
}
