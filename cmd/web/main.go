package main

import (
	"log"
	"os"
	"strings"

	"log/slog"

	"github.com/joho/godotenv"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	apphttp "github.com/NOIR-Solution/noir-payments/internal/http"
	"github.com/NOIR-Solution/noir-payments/internal/modules/gateways"
	"github.com/NOIR-Solution/noir-payments/internal/modules/payments"
	"github.com/NOIR-Solution/noir-payments/internal/notifier"
	"github.com/NOIR-Solution/noir-payments/internal/shared/vault"
)

func main() {
	// Load .env file (ignore error if not found - prod uses real env vars)
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

	registry := payments.NewRegistry()
	if base := os.Getenv("DEMO_GATEWAY_URL"); base != "" {
		registry.Register(payments.NewDemoProvider(base))
	}

	var notes notifier.Notifier = &notifier.Slog{L: logger}
	if host := os.Getenv("SMTP_HOST"); host != "" {
		email := notifier.NewEmail(notifier.SMTPConfig{
			Host:     host,
			Port:     envOr("SMTP_PORT", "587"),
			User:     os.Getenv("SMTP_USER"),
			Pass:     os.Getenv("SMTP_PASS"),
			From:     os.Getenv("SMTP_FROM"),
			FromName: os.Getenv("SMTP_FROM_NAME"),
			To:       strings.Split(os.Getenv("SMTP_TO"), ","),
		})
		notes = &notifier.Multi{Sinks: []notifier.Notifier{notes, email}}
	}

	store := payments.NewGormStore(db)
	paymentSvc := payments.NewService(store, gatewaySvc, registry, notes, logger)
	refundSvc := payments.NewRefundService(store, gatewaySvc, registry, notes, logger)

	r := apphttp.NewRouter(apphttp.RouterDeps{
		Logger:   logger,
		Payments: paymentSvc,
		Refunds:  refundSvc,
		Gateways: gatewaySvc,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	logger.Info("listening", "port", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
