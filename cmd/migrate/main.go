package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Rrens/hospital-scheduler/internal/config"
	"github.com/Rrens/hospital-scheduler/internal/logging"
	"github.com/Rrens/hospital-scheduler/internal/repository/postgres"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	steps := flag.Int("steps", 1, "number of migrations to roll back with down")
	flag.Parse()

	direction := flag.Arg(0)
	if direction == "" {
		direction = "up"
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logCloser, err := logging.Setup(cfg.Logging, cfg.IsProduction())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	log.Info().
		Str("host", cfg.Database.Host).
		Int("port", cfg.Database.Port).
		Str("source", cfg.Database.MigrationsSource).
		Str("direction", direction).
		Msg("Migrating database")

	switch direction {
	case "up":
		err = postgres.RunMigrations(cfg.Database.DSN(), cfg.Database.MigrationsSource)
	case "down":
		err = postgres.RollbackMigrations(cfg.Database.DSN(), cfg.Database.MigrationsSource, *steps)
	default:
		fmt.Fprintf(os.Stderr, "usage: migrate [-steps n] up|down\n")
		os.Exit(2)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}
}
