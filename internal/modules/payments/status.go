package payments

// Status is the lifecycle state of a payment transaction.
type Status string

const (
	StatusPending        Status = "pending"
	StatusProcessing     Status = "processing"
	StatusRequiresAction Status = "requires_action"
	StatusAuthorized     Status = "authorized"
	StatusPaid           Status = "paid"
	StatusFailed         Status = "failed"
	StatusCancelled      Status = "cancelled"
	StatusExpired        Status = "expired"
	StatusCodPending     Status = "cod_pending"
	StatusCodCollected   Status = "cod_collected"
	StatusRefunded       Status = "refunded"
)

// CanTransitionTo encodes the legal transition table. Anything not listed
// here is rejected with InvalidTransitionError instead of being applied, so a
// stale or duplicate notification can never move a transaction backwards.
func (s Status) CanTransitionTo(target Status) bool {
	switch s {
	case StatusPending:
		return target == StatusProcessing || target == StatusRequiresAction ||
			target == StatusCodPending || target == StatusFailed ||
			target == StatusCancelled || target == StatusExpired
	case StatusProcessing:
		return target == StatusPaid || target == StatusFailed || target == StatusCancelled
	case StatusRequiresAction:
		return target == StatusPaid || target == StatusFailed ||
			target == StatusCancelled || target == StatusExpired
	case StatusAuthorized:
		return target == StatusPaid
	case StatusCodPending:
		return target == StatusCodCollected
	case StatusPaid:
		return target == StatusRefunded
	case StatusFailed, StatusCancelled, StatusExpired, StatusCodCollected, StatusRefunded:
		return false // terminal
	default:
		return false
	}
}

// IsTerminal returns true if no further transition can leave this state.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusFailed, StatusCancelled, StatusExpired, StatusCodCollected, StatusRefunded:
		return true
	}
	return false
}

// Method is how the customer pays.
type Method string

const (
	MethodCard         Method = "card"
	MethodWallet       Method = "wallet"
	MethodBankTransfer Method = "bank_transfer"
	MethodCod          Method = "cod"
)

// IsCod reports whether money changes hands physically, with no gateway call.
func (m Method) IsCod() bool { return m == MethodCod }
