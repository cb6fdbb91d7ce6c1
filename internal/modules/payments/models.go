package payments

import (
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Transaction is the aggregate root of one payment attempt. It is created in
// Pending (or CodPending), mutated only through the transition methods below
// and never hard-deleted. Every write goes through a version check; see
// Store.UpdateTransaction.
type Transaction struct {
	ID             string `gorm:"type:char(36);primaryKey"`
	TenantID       string `gorm:"type:char(36);not null;uniqueIndex:ux_tx_tenant_number,priority:1;uniqueIndex:ux_tx_tenant_idem,priority:1"`
	Number         string `gorm:"type:varchar(32);not null;uniqueIndex:ux_tx_tenant_number,priority:2"`
	IdempotencyKey string `gorm:"type:varchar(64);not null;uniqueIndex:ux_tx_tenant_idem,priority:2"`

	GatewayConfigID string  `gorm:"type:char(36);not null;index:ix_tx_gateway_config"`
	Provider        string  `gorm:"type:varchar(64);not null"` // denormalized for fast reads
	GatewayRef      *string `gorm:"type:varchar(128);index:ix_tx_provider_ref"`

	Amount         decimal.Decimal  `gorm:"type:decimal(18,2);not null"`
	Currency       string           `gorm:"type:char(3);not null"`
	ExchangeRate   *decimal.Decimal `gorm:"type:decimal(18,6)"`
	GatewayFee     *decimal.Decimal `gorm:"type:decimal(18,2)"`
	NetAmount      *decimal.Decimal `gorm:"type:decimal(18,2)"`
	RefundedAmount decimal.Decimal  `gorm:"type:decimal(18,2);not null;default:0"`

	Status        Status  `gorm:"type:varchar(32);not null;index:ix_tx_status"`
	FailureReason *string `gorm:"type:varchar(255)"`
	FailureCode   *string `gorm:"type:varchar(64)"`

	Method       Method  `gorm:"type:varchar(32);not null"`
	MethodDetail *string `gorm:"type:varchar(128)"` // e.g. masked card suffix

	OrderID    *string        `gorm:"type:char(36);index:ix_tx_order_id"`
	CustomerID *string        `gorm:"type:char(36)"`
	Metadata   datatypes.JSON `gorm:"type:json"`

	PaidAt    *time.Time `gorm:"type:datetime(3)"` // set exactly once, on first entry into Paid
	ExpiresAt *time.Time `gorm:"type:datetime(3)"`

	CodCollectedBy *string    `gorm:"type:varchar(128)"`
	CodCollectedAt *time.Time `gorm:"type:datetime(3)"`

	Version   int       `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"type:datetime(3);not null"`
	UpdatedAt time.Time `gorm:"type:datetime(3);not null"`
}

func (Transaction) TableName() string { return "payment_transactions" }

func (t *Transaction) transition(to Status) error {
	if !t.Status.CanTransitionTo(to) {
		return &InvalidTransitionError{From: t.Status, To: to}
	}
	t.Status = to
	return nil
}

func (t *Transaction) event(name string, at time.Time) Event {
	return Event{Name: name, TransactionID: t.ID, TransactionNumber: t.Number, OccurredAt: at}
}

// BeginProcessing: gateway accepted the call, no user action required.
func (t *Transaction) BeginProcessing(now time.Time) ([]Event, error) {
	if err := t.transition(StatusProcessing); err != nil {
		return nil, err
	}
	return []Event{t.event(EventPaymentProcessing, now)}, nil
}

// RequireAction: gateway accepted the call, user must redirect / 3-D-secure.
func (t *Transaction) RequireAction(now time.Time) ([]Event, error) {
	if err := t.transition(StatusRequiresAction); err != nil {
		return nil, err
	}
	return []Event{t.event(EventPaymentRequiresAction, now)}, nil
}

// MarkCodPending: collect-on-delivery path, no external call involved.
func (t *Transaction) MarkCodPending(now time.Time) ([]Event, error) {
	if !t.Method.IsCod() {
		return nil, ErrNotCashOnDelivery
	}
	if err := t.transition(StatusCodPending); err != nil {
		return nil, err
	}
	return []Event{t.event(EventPaymentCodPending, now)}, nil
}

// MarkPaid handles the success notification. Already-Paid with a matching
// gateway reference is a no-op (duplicate redelivery); paid time is set on the
// first entry only and never changes afterwards.
func (t *Transaction) MarkPaid(gatewayRef string, now time.Time) ([]Event, error) {
	if t.Status == StatusPaid {
		if gatewayRef != "" && t.GatewayRef != nil && *t.GatewayRef == gatewayRef {
			return nil, nil
		}
		return nil, &InvalidTransitionError{From: t.Status, To: StatusPaid}
	}
	if err := t.transition(StatusPaid); err != nil {
		return nil, err
	}
	if t.PaidAt == nil {
		at := now
		t.PaidAt = &at
	}
	if gatewayRef != "" && t.GatewayRef == nil {
		ref := gatewayRef
		t.GatewayRef = &ref
	}
	return []Event{t.event(EventPaymentPaid, now)}, nil
}

func (t *Transaction) MarkFailed(reason, code string, now time.Time) ([]Event, error) {
	if err := t.transition(StatusFailed); err != nil {
		return nil, err
	}
	t.FailureReason = strPtr(truncate(reason, 255))
	if code != "" {
		t.FailureCode = strPtr(code)
	}
	return []Event{t.event(EventPaymentFailed, now)}, nil
}

func (t *Transaction) Cancel(now time.Time) ([]Event, error) {
	if err := t.transition(StatusCancelled); err != nil {
		return nil, err
	}
	return []Event{t.event(EventPaymentCancelled, now)}, nil
}

// Expire is driven by the external sweep once the expiry window has passed.
func (t *Transaction) Expire(now time.Time) ([]Event, error) {
	if t.ExpiresAt == nil || now.Before(*t.ExpiresAt) {
		return nil, ErrNotYetExpired
	}
	if err := t.transition(StatusExpired); err != nil {
		return nil, err
	}
	return []Event{t.event(EventPaymentExpired, now)}, nil
}

// ConfirmCodCollection records who collected the cash and when. Only valid
// for collect-on-delivery transactions sitting in CodPending.
func (t *Transaction) ConfirmCodCollection(collector string, now time.Time) ([]Event, error) {
	if !t.Method.IsCod() {
		return nil, ErrNotCashOnDelivery
	}
	if err := t.transition(StatusCodCollected); err != nil {
		return nil, err
	}
	at := now
	t.CodCollectedBy = strPtr(collector)
	t.CodCollectedAt = &at
	return []Event{t.event(EventPaymentCodCollected, now)}, nil
}

// AttachGatewayRef stores the gateway-side transaction reference once known.
func (t *Transaction) AttachGatewayRef(ref string) {
	if ref != "" {
		t.GatewayRef = strPtr(ref)
	}
}

// RecordGatewayFee sets fee and derived net amount together, once. Refunds do
// not recompute net; the fee stays a fact of the original charge.
func (t *Transaction) RecordGatewayFee(fee decimal.Decimal) {
	if t.GatewayFee != nil {
		return
	}
	net := t.Amount.Sub(fee)
	t.GatewayFee = &fee
	t.NetAmount = &net
}

// ApplyRefundCompletion updates the cumulative refunded amount after a refund
// reached Completed, and transitions Paid -> Refunded only when the refunded
// total equals the paid amount exactly. Partial refunds leave the transaction
// in Paid.
func (t *Transaction) ApplyRefundCompletion(completedTotal decimal.Decimal, now time.Time) ([]Event, error) {
	if completedTotal.GreaterThan(t.Amount) {
		return nil, ErrRefundExceedsBalance
	}
	t.RefundedAmount = completedTotal
	if !completedTotal.Equal(t.Amount) {
		return nil, nil
	}
	if err := t.transition(StatusRefunded); err != nil {
		return nil, err
	}
	return []Event{t.event(EventPaymentRefunded, now)}, nil
}

// RemainingRefundable is the paid amount minus refunds already completed.
func (t *Transaction) RemainingRefundable() decimal.Decimal {
	return t.Amount.Sub(t.RefundedAmount)
}

func strPtr(s string) *string { return &s }

// truncate caps s at n bytes without splitting a multi-byte rune; strict
// utf8mb4 columns reject partial sequences.
func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
