package payments

import "time"

// Event names raised by aggregate transitions.
const (
	EventPaymentProcessing     = "payment.processing"
	EventPaymentRequiresAction = "payment.requires_action"
	EventPaymentPaid           = "payment.paid"
	EventPaymentFailed         = "payment.failed"
	EventPaymentCancelled      = "payment.cancelled"
	EventPaymentExpired        = "payment.expired"
	EventPaymentCodPending     = "payment.cod_pending"
	EventPaymentCodCollected   = "payment.cod_collected"
	EventPaymentRefunded       = "payment.refunded"
	EventRefundRequested       = "refund.requested"
	EventRefundApproved        = "refund.approved"
	EventRefundCompleted       = "refund.completed"
	EventRefundRejected        = "refund.rejected"
	EventRefundFailed          = "refund.failed"
)

// Event is returned from a transition alongside the mutated aggregate. The
// orchestrator decides whether and how to dispatch; there is no implicit bus.
type Event struct {
	Name              string
	TransactionID     string
	TransactionNumber string
	RefundID          string
	OccurredAt        time.Time
}
