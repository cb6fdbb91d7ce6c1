package main

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	"log/slog"

	"github.com/joho/godotenv"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/NOIR-Solution/noir-payments/internal/modules/gateways"
	"github.com/NOIR-Solution/noir-payments/internal/modules/payments"
	"github.com/NOIR-Solution/noir-payments/internal/notifier"
	"github.com/NOIR-Solution/noir-payments/internal/shared/tenant"
	"github.com/NOIR-Solution/noir-payments/internal/shared/vault"
)

// Expires transactions whose payment window has closed. Meant to run from
// cron; every transition still goes through the guarded state machine, so a
// concurrent webhook win is just a skipped row.
func main() {
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

	v, err := vault.FromEnv()
	if err != nil {
		log.Fatalf("credential vault: %v", err)
	}

	gatewaySvc := gateways.NewService(gateways.NewRepo(db), v, logger)
	store := payments.NewGormStore(db)
	svc := payments.NewService(store, gatewaySvc, payments.NewRegistry(), &notifier.Slog{L: logger}, logger)

	ctx := context.Background()
	now := time.Now()

	var candidates []payments.Transaction
	err = db.WithContext(ctx).
		Select("id", "tenant_id").
		Where("status IN ? AND expires_at < ?",
			[]payments.Status{payments.StatusPending, payments.StatusRequiresAction}, now).
		Find(&candidates).Error
	if err != nil {
		log.Fatalf("load candidates: %v", err)
	}

	expired, skipped := 0, 0
	for i := range candidates {
		c := tenant.WithID(ctx, candidates[i].TenantID)
		if _, err := svc.ExpireTransaction(c, candidates[i].ID); err != nil {
			var ite *payments.InvalidTransitionError
			if errors.As(err, &ite) ||
				errors.Is(err, payments.ErrNotYetExpired) ||
				errors.Is(err, payments.ErrConcurrencyConflict) {
				skipped++
				continue
			}
			logger.Error("expire failed", "transaction_id", candidates[i].ID, "err", err)
			continue
		}
		expired++
	}

	logger.Info("expire sweep done", "expired", expired, "skipped", skipped, "candidates", len(candidates))
}
