package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func main() {
	_ = godotenv.Load()

	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatal("DB_DSN environment variable is required")
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get DB: %v", err)
	}

	sql := `
	CREATE TABLE IF NOT EXISTS gateway_configs (
	  id CHAR(36) NOT NULL,
	  tenant_id CHAR(36) NOT NULL,
	  provider VARCHAR(64) NOT NULL,
	  display_name VARCHAR(128) NOT NULL,
	  active TINYINT(1) NOT NULL DEFAULT 1,
	  environment VARCHAR(16) NOT NULL,
	  credentials_enc TEXT NOT NULL,
	  webhook_url VARCHAR(255) NULL,
	  min_amount DECIMAL(18,2) NOT NULL,
	  max_amount DECIMAL(18,2) NOT NULL,
	  currencies VARCHAR(128) NOT NULL,
	  link_expiry_minutes INT NOT NULL DEFAULT 30,
	  last_health_at DATETIME(3) NULL,
	  healthy TINYINT(1) NULL,
	  version INT NOT NULL DEFAULT 0,
	  created_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
	  updated_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
	  PRIMARY KEY (id),
	  UNIQUE KEY ux_gateway_tenant_provider (tenant_id, provider)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

	CREATE TABLE IF NOT EXISTS payment_transactions (
	  id CHAR(36) NOT NULL,
	  tenant_id CHAR(36) NOT NULL,
	  number VARCHAR(32) NOT NULL,
	  idempotency_key VARCHAR(64) NOT NULL,
	  gateway_config_id CHAR(36) NOT NULL,
	  provider VARCHAR(64) NOT NULL,
	  gateway_ref VARCHAR(128) NULL,
	  amount DECIMAL(18,2) NOT NULL,
	  currency CHAR(3) NOT NULL,
	  exchange_rate DECIMAL(18,6) NULL,
	  gateway_fee DECIMAL(18,2) NULL,
	  net_amount DECIMAL(18,2) NULL,
	  refunded_amount DECIMAL(18,2) NOT NULL DEFAULT 0,
	  status VARCHAR(32) NOT NULL,
	  failure_reason VARCHAR(255) NULL,
	  failure_code VARCHAR(64) NULL,
	  method VARCHAR(32) NOT NULL,
	  method_detail VARCHAR(128) NULL,
	  order_id CHAR(36) NULL,
	  customer_id CHAR(36) NULL,
	  metadata JSON NULL,
	  paid_at DATETIME(3) NULL,
	  expires_at DATETIME(3) NULL,
	  cod_collected_by VARCHAR(128) NULL,
	  cod_collected_at DATETIME(3) NULL,
	  version INT NOT NULL DEFAULT 0,
	  created_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
	  updated_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
	  PRIMARY KEY (id),
	  UNIQUE KEY ux_tx_tenant_number (tenant_id, number),
	  UNIQUE KEY ux_tx_tenant_idem (tenant_id, idempotency_key),
	  KEY ix_tx_gateway_config (gateway_config_id),
	  KEY ix_tx_provider_ref (gateway_ref),
	  KEY ix_tx_status (status),
	  KEY ix_tx_order_id (order_id),
	  CONSTRAINT fk_tx_gateway_config FOREIGN KEY (gateway_config_id) REFERENCES gateway_configs(id) ON DELETE RESTRICT
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

	CREATE TABLE IF NOT EXISTS payment_refunds (
	  id CHAR(36) NOT NULL,
	  tenant_id CHAR(36) NOT NULL,
	  number VARCHAR(32) NOT NULL,
	  transaction_id CHAR(36) NOT NULL,
	  amount DECIMAL(18,2) NOT NULL,
	  currency CHAR(3) NOT NULL,
	  status VARCHAR(32) NOT NULL,
	  reason_category VARCHAR(32) NOT NULL,
	  reason_detail VARCHAR(255) NULL,
	  requested_by VARCHAR(128) NOT NULL,
	  approved_by VARCHAR(128) NULL,
	  gateway_refund_ref VARCHAR(128) NULL,
	  failure_reason VARCHAR(255) NULL,
	  version INT NOT NULL DEFAULT 0,
	  created_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
	  updated_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
	  PRIMARY KEY (id),
	  UNIQUE KEY ux_refund_tenant_number (tenant_id, number),
	  KEY ix_refund_transaction (transaction_id),
	  CONSTRAINT fk_refund_transaction FOREIGN KEY (transaction_id) REFERENCES payment_transactions(id) ON DELETE RESTRICT
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

	CREATE TABLE IF NOT EXISTS gateway_operation_logs (
	  id CHAR(36) NOT NULL,
	  tenant_id CHAR(36) NOT NULL,
	  operation VARCHAR(32) NOT NULL,
	  provider VARCHAR(64) NOT NULL,
	  transaction_id CHAR(36) NULL,
	  transaction_number VARCHAR(32) NULL,
	  request JSON NOT NULL,
	  response JSON NULL,
	  success TINYINT(1) NOT NULL,
	  error_code VARCHAR(64) NULL,
	  error_message VARCHAR(255) NULL,
	  started_at DATETIME(3) NOT NULL,
	  completed_at DATETIME(3) NOT NULL,
	  PRIMARY KEY (id),
	  KEY ix_oplog_tenant (tenant_id),
	  KEY ix_oplog_provider (provider),
	  KEY ix_oplog_transaction (transaction_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
	`

	if _, err := sqlDB.Exec(sql); err != nil {
		log.Fatalf("Failed to create tables: %v", err)
	}

	log.Println("Tables created")
}
