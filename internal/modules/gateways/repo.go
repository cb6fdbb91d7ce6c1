package gateways

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type Repo struct{ db *gorm.DB }

func NewRepo(db *gorm.DB) *Repo { return &Repo{db: db} }

func (r *Repo) GetByID(ctx context.Context, tenantID, id string) (*Config, error) {
	var cfg Config
	err := r.db.WithContext(ctx).First(&cfg, "tenant_id = ? AND id = ?", tenantID, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *Repo) GetByProvider(ctx context.Context, tenantID, provider string) (*Config, error) {
	var cfg Config
	err := r.db.WithContext(ctx).First(&cfg, "tenant_id = ? AND provider = ?", tenantID, provider).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *Repo) List(ctx context.Context, tenantID string) ([]Config, error) {
	var out []Config
	err := r.db.WithContext(ctx).
		Order("provider ASC").
		Find(&out, "tenant_id = ?", tenantID).Error
	return out, err
}

func (r *Repo) Create(ctx context.Context, cfg *Config) error {
	return r.db.WithContext(ctx).Create(cfg).Error
}

// Update writes the full row guarded by the version stamp read earlier; zero
// rows affected means someone else won the write.
func (r *Repo) Update(ctx context.Context, cfg *Config) error {
	current := cfg.Version
	cfg.Version = current + 1
	cfg.UpdatedAt = time.Now()

	res := r.db.WithContext(ctx).Model(&Config{}).
		Where("id = ? AND version = ?", cfg.ID, current).
		Select("*").Omit("id", "created_at").
		Updates(cfg)
	if res.Error != nil {
		cfg.Version = current
		return res.Error
	}
	if res.RowsAffected == 0 {
		cfg.Version = current
		return ErrConcurrencyConflict
	}
	return nil
}
