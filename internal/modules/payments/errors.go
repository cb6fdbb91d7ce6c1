package payments

import (
	"errors"
	"fmt"
)

var (
	ErrNoTenant                = errors.New("no tenant in context")
	ErrTransactionNotFound     = errors.New("transaction not found")
	ErrRefundNotFound          = errors.New("refund not found")
	ErrProviderNotConfigured   = errors.New("no provider registered for gateway")
	ErrDuplicateIdempotencyKey = errors.New("idempotency key already used")
	ErrConcurrencyConflict     = errors.New("version mismatch, concurrent update conflict")
	ErrNotCashOnDelivery       = errors.New("payment method is not collect on delivery")
	ErrNotYetExpired           = errors.New("transaction expiry time has not been reached")
	ErrRefundNotAllowed        = errors.New("transaction is not refundable")
	ErrRefundExceedsBalance    = errors.New("refund amount exceeds refundable balance")
	ErrGatewayRefundRefMissing = errors.New("gateway refund reference required")
)

// InvalidTransitionError is returned when a transition targets a state not
// reachable from the current one. The aggregate stays untouched.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition %s -> %s", e.From, e.To)
}

// GatewayCallError carries the provider-side rejection or transport failure
// that moved a transaction to Failed.
type GatewayCallError struct {
	Provider string
	Code     string
	Message  string
	Err      error // transport error, nil on provider rejection
}

func (e *GatewayCallError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gateway %s call failed: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("gateway %s rejected: %s (%s)", e.Provider, e.Message, e.Code)
}

func (e *GatewayCallError) Unwrap() error { return e.Err }
