package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/luxestay/hotel-booking-backend/internal/config"
	"github.com/luxestay/hotel-booking-backend/internal/database"
	"github.com/luxestay/hotel-booking-backend/internal/services"
	"github.com/sirupsen/logrus"
)

// One-off tier reconciliation, for use after a bulk ledger import or a
// change to the membership_tiers table.
func main() {
	var (
		dbURLFlag   string
		concurrency int
		timeout     time.Duration
	)
	flag.StringVar(&dbURLFlag, "database-url", "", "PostgreSQL connection string (overrides DATABASE_URL)")
	flag.IntVar(&concurrency, "concurrency", services.DefaultReconcileConcurrency, "users re-evaluated in parallel")
	flag.DurationVar(&timeout, "timeout", 30*time.Minute, "overall deadline for the run")
	flag.Parse()

	_ = godotenv.Load()

	dbURL := dbURLFlag
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set and -database-url was not provided")
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	db, err := database.NewConnection(config.DatabaseConfig{
		URL:                dbURL,
		MaxConnections:     concurrency + 1,
		MaxIdleConnections: concurrency,
	})
	if err != nil {
		logger.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	repo := database.NewMembershipRepository(db)
	catalog, err := services.LoadTierCatalog(ctx, repo)
	if err != nil {
		logger.Fatalf("failed to load tier catalog: %v", err)
	}

	svc := services.NewMembershipService(repo, catalog, logger, services.MembershipOptions{
		ReconcileConcurrency: concurrency,
	})

	start := time.Now()
	updated, err := svc.ReconcileTiers(ctx)
	entry := logger.WithFields(logrus.Fields{
		"updated":     updated,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	if err != nil {
		entry.WithError(err).Error("Tier reconciliation finished with failures")
		os.Exit(1)
	}
	entry.Info("Tier reconciliation finished")
}
