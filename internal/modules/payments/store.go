package payments

import (
	"context"

	"github.com/shopspring/decimal"
)

// Store is the persistence the payment core consumes. Implementations must
// enforce the tenant-scoped unique index on the idempotency key
// (CreateTransaction returns ErrDuplicateIdempotencyKey on a losing race) and
// the version stamp on every update (ErrConcurrencyConflict on mismatch,
// with no field applied).
type Store interface {
	GetTransaction(ctx context.Context, tenantID, id string) (*Transaction, error)
	GetTransactionByIdempotencyKey(ctx context.Context, tenantID, key string) (*Transaction, error)
	GetTransactionByGatewayRef(ctx context.Context, provider, gatewayRef string) (*Transaction, error)
	CreateTransaction(ctx context.Context, t *Transaction) error
	UpdateTransaction(ctx context.Context, t *Transaction) error

	GetRefund(ctx context.Context, tenantID, id string) (*Refund, error)
	CreateRefund(ctx context.Context, r *Refund) error
	UpdateRefund(ctx context.Context, r *Refund) error
	// SumRefunds totals refund amounts on a transaction in the given states.
	SumRefunds(ctx context.Context, transactionID string, statuses []RefundStatus) (decimal.Decimal, error)

	AppendOperationLog(ctx context.Context, e *OperationLogEntry) error
}
