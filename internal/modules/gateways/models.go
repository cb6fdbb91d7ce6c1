package gateways

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/NOIR-Solution/noir-payments/internal/shared/apperr"
)

var (
	ErrNotFound            = errors.New("gateway not found")
	ErrInactive            = errors.New("gateway is not active")
	ErrCredentialsCorrupt  = errors.New("gateway credentials corrupt")
	ErrConcurrencyConflict = errors.New("version mismatch, concurrent update conflict")
)

type Environment string

const (
	EnvSandbox Environment = "sandbox"
	EnvLive    Environment = "live"
)

// Config is one tenant's configuration for a payment provider. Credentials
// are stored encrypted (vault ciphertext, "keyid:base64(iv||ct)") and only
// decrypted for the duration of a single provider call.
type Config struct {
	ID          string      `gorm:"type:char(36);primaryKey"`
	TenantID    string      `gorm:"type:char(36);not null;uniqueIndex:ux_gateway_tenant_provider,priority:1"`
	Provider    string      `gorm:"type:varchar(64);not null;uniqueIndex:ux_gateway_tenant_provider,priority:2"`
	DisplayName string      `gorm:"type:varchar(128);not null"`
	Active      bool        `gorm:"not null;default:1"`
	Environment Environment `gorm:"type:varchar(16);not null"`

	CredentialsEnc string  `gorm:"type:text;not null"`
	WebhookURL     *string `gorm:"type:varchar(255)"`

	MinAmount decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	MaxAmount decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	// Comma-separated ISO currency codes, e.g. "VND,USD".
	Currencies string `gorm:"type:varchar(128);not null"`

	LinkExpiryMinutes int `gorm:"not null;default:30"`

	LastHealthAt *time.Time `gorm:"type:datetime(3)"`
	Healthy      *bool

	Version   int       `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"type:datetime(3);not null"`
	UpdatedAt time.Time `gorm:"type:datetime(3);not null"`
}

func (Config) TableName() string { return "gateway_configs" }

func (c *Config) SupportsCurrency(code string) bool {
	for _, cur := range strings.Split(c.Currencies, ",") {
		if strings.EqualFold(strings.TrimSpace(cur), code) {
			return true
		}
	}
	return false
}

// ValidateCharge checks the requested amount and currency against this
// gateway's configured bounds, naming the offending field.
func (c *Config) ValidateCharge(amount decimal.Decimal, currency string) error {
	fields := map[string]string{}
	if amount.LessThan(c.MinAmount) {
		fields["amount"] = "amount is below the gateway minimum of " + c.MinAmount.String()
	}
	if amount.GreaterThan(c.MaxAmount) {
		fields["amount"] = "amount is above the gateway maximum of " + c.MaxAmount.String()
	}
	if !c.SupportsCurrency(currency) {
		fields["currency"] = "currency " + currency + " is not supported by this gateway"
	}
	if len(fields) > 0 {
		return apperr.InvalidErr("Amount or currency not accepted by the gateway.", fields)
	}
	return nil
}

func (c *Config) ExpiryWindow() time.Duration {
	minutes := c.LinkExpiryMinutes
	if minutes <= 0 {
		minutes = 30
	}
	return time.Duration(minutes) * time.Minute
}
