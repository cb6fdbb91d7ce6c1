package payments

import (
	"context"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormStore is the MySQL-backed Store.
type GormStore struct{ db *gorm.DB }

func NewGormStore(db *gorm.DB) *GormStore { return &GormStore{db: db} }

func (s *GormStore) GetTransaction(ctx context.Context, tenantID, id string) (*Transaction, error) {
	var t Transaction
	err := s.db.WithContext(ctx).First(&t, "tenant_id = ? AND id = ?", tenantID, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *GormStore) GetTransactionByIdempotencyKey(ctx context.Context, tenantID, key string) (*Transaction, error) {
	var t Transaction
	err := s.db.WithContext(ctx).First(&t, "tenant_id = ? AND idempotency_key = ?", tenantID, key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *GormStore) GetTransactionByGatewayRef(ctx context.Context, provider, gatewayRef string) (*Transaction, error) {
	var t Transaction
	err := s.db.WithContext(ctx).First(&t, "provider = ? AND gateway_ref = ?", provider, gatewayRef).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTransaction relies on the unique (tenant_id, idempotency_key) index
// as the race backstop: a duplicate-key error means another request with the
// same key won the insert, which the orchestrator resolves by re-reading.
func (s *GormStore) CreateTransaction(ctx context.Context, t *Transaction) error {
	err := s.db.WithContext(ctx).Create(t).Error
	if isDup(err) {
		return ErrDuplicateIdempotencyKey
	}
	return err
}

// UpdateTransaction writes the whole row guarded by the version stamp the
// caller read. Zero rows affected means a conflicting concurrent update; no
// field change is applied in that case.
func (s *GormStore) UpdateTransaction(ctx context.Context, t *Transaction) error {
	current := t.Version
	t.Version = current + 1
	t.UpdatedAt = time.Now()

	res := s.db.WithContext(ctx).Model(&Transaction{}).
		Where("id = ? AND version = ?", t.ID, current).
		Select("*").Omit("id", "created_at").
		Updates(t)
	if res.Error != nil {
		t.Version = current
		return res.Error
	}
	if res.RowsAffected == 0 {
		t.Version = current
		return ErrConcurrencyConflict
	}
	return nil
}

func (s *GormStore) GetRefund(ctx context.Context, tenantID, id string) (*Refund, error) {
	var r Refund
	err := s.db.WithContext(ctx).First(&r, "tenant_id = ? AND id = ?", tenantID, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRefundNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *GormStore) CreateRefund(ctx context.Context, r *Refund) error {
	return s.db.WithContext(ctx).Create(r).Error
}

func (s *GormStore) UpdateRefund(ctx context.Context, r *Refund) error {
	current := r.Version
	r.Version = current + 1
	r.UpdatedAt = time.Now()

	res := s.db.WithContext(ctx).Model(&Refund{}).
		Where("id = ? AND version = ?", r.ID, current).
		Select("*").Omit("id", "created_at").
		Updates(r)
	if res.Error != nil {
		r.Version = current
		return res.Error
	}
	if res.RowsAffected == 0 {
		r.Version = current
		return ErrConcurrencyConflict
	}
	return nil
}

func (s *GormStore) SumRefunds(ctx context.Context, transactionID string, statuses []RefundStatus) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := s.db.WithContext(ctx).Model(&Refund{}).
		Select("SUM(amount)").
		Where("transaction_id = ? AND status IN ?", transactionID, statuses).
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

func (s *GormStore) AppendOperationLog(ctx context.Context, e *OperationLogEntry) error {
	return s.db.WithContext(ctx).Create(e).Error
}

func isDup(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
