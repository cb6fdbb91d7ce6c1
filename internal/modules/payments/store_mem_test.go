package payments

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
)

// memStore mirrors the relational store's contract: tenant-scoped unique
// idempotency keys and version-checked updates that apply nothing on a
// mismatch.
type memStore struct {
	mu      sync.Mutex
	txs     map[string]*Transaction
	refunds map[string]*Refund
	logs    []*OperationLogEntry
}

func newMemStore() *memStore {
	return &memStore{
		txs:     map[string]*Transaction{},
		refunds: map[string]*Refund{},
	}
}

func (m *memStore) GetTransaction(_ context.Context, tenantID, id string) (*Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.txs[id]
	if !ok || t.TenantID != tenantID {
		return nil, ErrTransactionNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memStore) GetTransactionByIdempotencyKey(_ context.Context, tenantID, key string) (*Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.txs {
		if t.TenantID == tenantID && t.IdempotencyKey == key {
			cp := *t
			return &cp, nil
		}
	}
	return nil, ErrTransactionNotFound
}

func (m *memStore) GetTransactionByGatewayRef(_ context.Context, provider, ref string) (*Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.txs {
		if t.Provider == provider && t.GatewayRef != nil && *t.GatewayRef == ref {
			cp := *t
			return &cp, nil
		}
	}
	return nil, ErrTransactionNotFound
}

func (m *memStore) CreateTransaction(_ context.Context, t *Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.txs {
		if existing.TenantID == t.TenantID && existing.IdempotencyKey == t.IdempotencyKey {
			return ErrDuplicateIdempotencyKey
		}
	}
	cp := *t
	m.txs[t.ID] = &cp
	return nil
}

func (m *memStore) UpdateTransaction(_ context.Context, t *Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.txs[t.ID]
	if !ok {
		return ErrTransactionNotFound
	}
	if stored.Version != t.Version {
		return ErrConcurrencyConflict
	}
	t.Version++
	cp := *t
	m.txs[t.ID] = &cp
	return nil
}

func (m *memStore) GetRefund(_ context.Context, tenantID, id string) (*Refund, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.refunds[id]
	if !ok || r.TenantID != tenantID {
		return nil, ErrRefundNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) CreateRefund(_ context.Context, r *Refund) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.refunds[r.ID] = &cp
	return nil
}

func (m *memStore) UpdateRefund(_ context.Context, r *Refund) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.refunds[r.ID]
	if !ok {
		return ErrRefundNotFound
	}
	if stored.Version != r.Version {
		return ErrConcurrencyConflict
	}
	r.Version++
	cp := *r
	m.refunds[r.ID] = &cp
	return nil
}

func (m *memStore) SumRefunds(_ context.Context, transactionID string, statuses []RefundStatus) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := decimal.Zero
	for _, r := range m.refunds {
		if r.TransactionID != transactionID {
			continue
		}
		for _, st := range statuses {
			if r.Status == st {
				total = total.Add(r.Amount)
				break
			}
		}
	}
	return total, nil
}

func (m *memStore) AppendOperationLog(_ context.Context, e *OperationLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.logs = append(m.logs, &cp)
	return nil
}

func (m *memStore) logCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.logs)
}
