package gateways

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/NOIR-Solution/noir-payments/internal/shared/vault"
)

type Service struct {
	repo   *Repo
	vault  *vault.Vault
	logger *slog.Logger
}

func NewService(repo *Repo, v *vault.Vault, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, vault: v, logger: logger}
}

// ResolveByProvider loads the gateway configuration for a provider name.
// Activation and bounds are the caller's concern; this only answers "does it
// exist".
func (s *Service) ResolveByProvider(ctx context.Context, tenantID, provider string) (*Config, error) {
	return s.repo.GetByProvider(ctx, tenantID, provider)
}

func (s *Service) GetByID(ctx context.Context, tenantID, id string) (*Config, error) {
	return s.repo.GetByID(ctx, tenantID, id)
}

func (s *Service) List(ctx context.Context, tenantID string) ([]Config, error) {
	return s.repo.List(ctx, tenantID)
}

// Credentials decrypts the stored blob into a key/value map. Any decryption
// problem is surfaced as ErrCredentialsCorrupt, never as "no credentials".
func (s *Service) Credentials(cfg *Config) (map[string]string, error) {
	plain, err := s.vault.Decrypt(cfg.CredentialsEnc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCredentialsCorrupt, err)
	}
	var creds map[string]string
	if err := json.Unmarshal([]byte(plain), &creds); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCredentialsCorrupt, err)
	}
	return creds, nil
}

type UpsertInput struct {
	Provider          string
	DisplayName       string
	Active            bool
	Environment       Environment
	Credentials       map[string]string
	WebhookURL        string
	MinAmount         decimal.Decimal
	MaxAmount         decimal.Decimal
	Currencies        string
	LinkExpiryMinutes int
}

func (s *Service) Create(ctx context.Context, tenantID string, in UpsertInput) (*Config, error) {
	enc, err := s.encryptCredentials(in.Credentials)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	cfg := &Config{
		ID:                uuid.NewString(),
		TenantID:          tenantID,
		Provider:          in.Provider,
		DisplayName:       in.DisplayName,
		Active:            in.Active,
		Environment:       in.Environment,
		CredentialsEnc:    enc,
		MinAmount:         in.MinAmount,
		MaxAmount:         in.MaxAmount,
		Currencies:        in.Currencies,
		LinkExpiryMinutes: in.LinkExpiryMinutes,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if in.WebhookURL != "" {
		u := in.WebhookURL
		cfg.WebhookURL = &u
	}
	if err := s.repo.Create(ctx, cfg); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "gateway config created",
		"tenant_id", tenantID, "provider", cfg.Provider, "environment", cfg.Environment)
	return cfg, nil
}

// Update rewrites the configuration under a version check. When new
// credentials are supplied they are re-encrypted under the currently active
// vault key; otherwise the old ciphertext (and its key id) is kept untouched.
func (s *Service) Update(ctx context.Context, tenantID, id string, in UpsertInput) (*Config, error) {
	cfg, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	if len(in.Credentials) > 0 {
		enc, err := s.encryptCredentials(in.Credentials)
		if err != nil {
			return nil, err
		}
		cfg.CredentialsEnc = enc
	}
	cfg.DisplayName = in.DisplayName
	cfg.Active = in.Active
	cfg.Environment = in.Environment
	cfg.MinAmount = in.MinAmount
	cfg.MaxAmount = in.MaxAmount
	cfg.Currencies = in.Currencies
	cfg.LinkExpiryMinutes = in.LinkExpiryMinutes
	if in.WebhookURL != "" {
		u := in.WebhookURL
		cfg.WebhookURL = &u
	}

	if err := s.repo.Update(ctx, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// RecordHealth stores the outcome of a health probe.
func (s *Service) RecordHealth(ctx context.Context, cfg *Config, healthy bool, at time.Time) error {
	cfg.Healthy = &healthy
	t := at
	cfg.LastHealthAt = &t
	return s.repo.Update(ctx, cfg)
}

func (s *Service) encryptCredentials(creds map[string]string) (string, error) {
	raw, err := json.Marshal(creds)
	if err != nil {
		return "", err
	}
	return s.vault.Encrypt(string(raw))
}
