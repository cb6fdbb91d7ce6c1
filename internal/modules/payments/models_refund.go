package payments

import (
	"time"

	"github.com/shopspring/decimal"
)

type RefundStatus string

const (
	RefundPending   RefundStatus = "pending"
	RefundApproved  RefundStatus = "approved"
	RefundCompleted RefundStatus = "completed"
	RefundFailed    RefundStatus = "failed"
	RefundRejected  RefundStatus = "rejected"
)

func (s RefundStatus) CanTransitionTo(target RefundStatus) bool {
	switch s {
	case RefundPending:
		return target == RefundApproved || target == RefundRejected
	case RefundApproved:
		return target == RefundCompleted || target == RefundFailed
	default:
		return false
	}
}

type RefundReason string

const (
	ReasonCustomerRequest RefundReason = "customer_request"
	ReasonDefective       RefundReason = "defective"
	ReasonWrongItem       RefundReason = "wrong_item"
	ReasonFraud           RefundReason = "fraud"
	ReasonOther           RefundReason = "other"
)

// Refund is a secondary aggregate attached to a Paid transaction. Amount and
// currency are checked against the parent on request; cumulative
// approved+completed refunds never exceed the paid amount.
type Refund struct {
	ID            string `gorm:"type:char(36);primaryKey"`
	TenantID      string `gorm:"type:char(36);not null;uniqueIndex:ux_refund_tenant_number,priority:1"`
	Number        string `gorm:"type:varchar(32);not null;uniqueIndex:ux_refund_tenant_number,priority:2"`
	TransactionID string `gorm:"type:char(36);not null;index:ix_refund_transaction"`

	Amount   decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Currency string          `gorm:"type:char(3);not null"`

	Status RefundStatus `gorm:"type:varchar(32);not null"`

	ReasonCategory RefundReason `gorm:"type:varchar(32);not null"`
	ReasonDetail   *string      `gorm:"type:varchar(255)"`

	RequestedBy      string  `gorm:"type:varchar(128);not null"`
	ApprovedBy       *string `gorm:"type:varchar(128)"` // set on Approve
	GatewayRefundRef *string `gorm:"type:varchar(128)"` // set on Complete, absent for manual refunds
	FailureReason    *string `gorm:"type:varchar(255)"`

	Version   int       `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"type:datetime(3);not null"`
	UpdatedAt time.Time `gorm:"type:datetime(3);not null"`
}

func (Refund) TableName() string { return "payment_refunds" }

func (r *Refund) transition(to RefundStatus) error {
	if !r.Status.CanTransitionTo(to) {
		return &InvalidTransitionError{From: Status(r.Status), To: Status(to)}
	}
	r.Status = to
	return nil
}

func (r *Refund) event(name string, at time.Time) Event {
	return Event{Name: name, TransactionID: r.TransactionID, RefundID: r.ID, OccurredAt: at}
}

func (r *Refund) Approve(approver string, now time.Time) ([]Event, error) {
	if err := r.transition(RefundApproved); err != nil {
		return nil, err
	}
	r.ApprovedBy = strPtr(approver)
	return []Event{r.event(EventRefundApproved, now)}, nil
}

func (r *Refund) Reject(note string, now time.Time) ([]Event, error) {
	if err := r.transition(RefundRejected); err != nil {
		return nil, err
	}
	if note != "" {
		r.FailureReason = strPtr(truncate(note, 255))
	}
	return []Event{r.event(EventRefundRejected, now)}, nil
}

// Complete requires a gateway refund reference unless the refund is manual
// (collect-on-delivery money returned by hand).
func (r *Refund) Complete(gatewayRefundRef string, manual bool, now time.Time) ([]Event, error) {
	if gatewayRefundRef == "" && !manual {
		return nil, ErrGatewayRefundRefMissing
	}
	if err := r.transition(RefundCompleted); err != nil {
		return nil, err
	}
	if gatewayRefundRef != "" {
		r.GatewayRefundRef = strPtr(gatewayRefundRef)
	}
	return []Event{r.event(EventRefundCompleted, now)}, nil
}

func (r *Refund) Fail(reason string, now time.Time) ([]Event, error) {
	if err := r.transition(RefundFailed); err != nil {
		return nil, err
	}
	r.FailureReason = strPtr(truncate(reason, 255))
	return []Event{r.event(EventRefundFailed, now)}, nil
}
