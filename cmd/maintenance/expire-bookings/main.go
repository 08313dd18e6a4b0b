package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/greenvalley/society-portal-backend/internal/config"
	"github.com/greenvalley/society-portal-backend/internal/database"
	"github.com/greenvalley/society-portal-backend/internal/services"
	"github.com/greenvalley/society-portal-backend/internal/websocket"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// expire-bookings runs one expiry sweep and exits. Useful from an external
// scheduler when BOOKING_SWEEP_SCHEDULE is not set on the server.
func main() {
	var (
		dbURLFlag string
		ttlFlag   time.Duration
		timeout   time.Duration
	)
	flag.StringVar(&dbURLFlag, "database-url", "", "PostgreSQL connection string (overrides DATABASE_URL)")
	flag.DurationVar(&ttlFlag, "ttl", 24*time.Hour, "expire Pending bookings older than this")
	flag.DurationVar(&timeout, "timeout", time.Minute, "sweep deadline")
	flag.Parse()

	// Try loading .env from current working directory (optional)
	_ = godotenv.Load()

	dbURL := dbURLFlag
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set and -database-url was not provided")
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	// Build minimal database config without loading full app config
	dbCfg := config.DatabaseConfig{
		URL:                dbURL,
		Driver:             "pgx",
		MaxConnections:     2,
		MaxIdleConnections: 1,
	}

	db, err := database.NewConnection(dbCfg, logger)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	// The hub has no clients here; notifications are dropped
	notifier := services.NewHubNotifier(websocket.NewHub(logger), nil, logger)
	bookings := services.NewAmenityBookingService(
		database.NewAmenityBookingRepository(db.DB),
		database.NewAmenityDowntimeRepository(db.DB),
		database.NewAmenityRepository(db.DB),
		notifier,
		services.NewAuditService(db, true),
		ttlFlag,
		logger,
	)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	expired, err := bookings.SweepExpired(ctx, services.SweepTriggerManual)
	if err != nil {
		log.Fatalf("sweep failed: %v", err)
	}

	logger.WithField("expired", expired).Info("Expiry sweep complete")
}
