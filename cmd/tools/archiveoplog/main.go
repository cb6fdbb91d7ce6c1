package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"log/slog"

	"github.com/joho/godotenv"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/NOIR-Solution/noir-payments/internal/archive"
)

// Sweeps operation log rows older than the retention window into the
// configured archive store (local dir or S3). Meant to run from cron.
func main() {
	retentionDays := flag.Int("retention-days", 90, "Archive rows completed more than this many days ago")
	flag.Parse()

	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatal("DB_DSN environment variable is required")
	}
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	ctx := context.Background()
	blob, err := archive.FromEnv(ctx)
	if err != nil {
		log.Fatalf("archive store: %v", err)
	}

	cutoff := time.Now().AddDate(0, 0, -*retentionDays)
	res, err := archive.NewService(db, blob.Blob, logger).SweepBefore(ctx, cutoff)
	if err != nil {
		log.Fatalf("sweep failed: %v", err)
	}
	if res.Entries == 0 {
		logger.Info("nothing to archive", "cutoff", cutoff)
		return
	}
	logger.Info("archive written", "key", res.Key, "entries", res.Entries)
}
