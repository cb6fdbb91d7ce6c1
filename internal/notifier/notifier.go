package notifier

import (
	"context"
	"time"
)

// Message is a side-channel notification handed off after a state transition.
// Delivery is best-effort; nothing in the transition path blocks on it.
type Message struct {
	Topic             string // event name, e.g. "payment.failed"
	TransactionID     string
	TransactionNumber string
	RefundID          string
	Detail            string
	At                time.Time
}

type Notifier interface {
	Notify(ctx context.Context, m Message) error
}
