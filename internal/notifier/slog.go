package notifier

import (
	"context"
	"log/slog"
)

// Slog writes every notification to the structured log. It is the default
// sink when no email notifier is configured.
type Slog struct {
	L *slog.Logger
}

func (n *Slog) Notify(ctx context.Context, m Message) error {
	n.L.InfoContext(ctx, "notification",
		"topic", m.Topic,
		"transaction_id", m.TransactionID,
		"transaction_number", m.TransactionNumber,
		"refund_id", m.RefundID,
		"detail", m.Detail,
	)
	return nil
}
