package payments

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/NOIR-Solution/noir-payments/internal/notifier"
	"github.com/NOIR-Solution/noir-payments/internal/shared/apperr"
	"github.com/NOIR-Solution/noir-payments/internal/shared/tenant"
)

// RefundService drives the request -> approve -> complete/fail/reject
// workflow attached to a paid transaction.
type RefundService struct {
	store     Store
	gateways  GatewaySource
	providers *Registry
	notifier  notifier.Notifier
	logger    *slog.Logger

	callTimeout time.Duration
	now         func() time.Time
}

func NewRefundService(store Store, gw GatewaySource, providers *Registry, n notifier.Notifier, logger *slog.Logger) *RefundService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RefundService{
		store:       store,
		gateways:    gw,
		providers:   providers,
		notifier:    n,
		logger:      logger,
		callTimeout: 15 * time.Second,
		now:         time.Now,
	}
}

type RequestRefundInput struct {
	TransactionID  string
	Amount         decimal.Decimal // zero means full remaining balance
	ReasonCategory RefundReason
	ReasonDetail   string
	RequestedBy    string
}

// RequestRefund creates a Pending refund against a Paid (or already
// partially/fully Refunded) transaction. The ceiling invariant: requested
// amount plus refunds already approved or completed can never exceed the paid
// amount; a fully refunded transaction therefore rejects any further request.
func (s *RefundService) RequestRefund(ctx context.Context, in RequestRefundInput) (*Refund, error) {
	tenantID, ok := tenant.FromContext(ctx)
	if !ok {
		return nil, ErrNoTenant
	}
	tx, err := s.store.GetTransaction(ctx, tenantID, in.TransactionID)
	if err != nil {
		return nil, err
	}
	if tx.Status != StatusPaid && tx.Status != StatusRefunded {
		return nil, ErrRefundNotAllowed
	}

	reserved, err := s.store.SumRefunds(ctx, tx.ID, []RefundStatus{RefundApproved, RefundCompleted})
	if err != nil {
		return nil, err
	}
	remaining := tx.Amount.Sub(reserved)
	if remaining.LessThanOrEqual(decimal.Zero) {
		return nil, ErrRefundExceedsBalance
	}

	amount := in.Amount
	if amount.IsZero() {
		amount = remaining
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, apperr.InvalidErr("Refund amount must be positive.", map[string]string{"amount": "must be greater than zero"})
	}
	if amount.GreaterThan(remaining) {
		return nil, ErrRefundExceedsBalance
	}

	now := s.now()
	r := &Refund{
		ID:             uuid.NewString(),
		TenantID:       tenantID,
		Number:         NewRefundNumber(now),
		TransactionID:  tx.ID,
		Amount:         amount,
		Currency:       tx.Currency,
		Status:         RefundPending,
		ReasonCategory: in.ReasonCategory,
		RequestedBy:    in.RequestedBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if in.ReasonDetail != "" {
		r.ReasonDetail = strPtr(truncate(in.ReasonDetail, 255))
	}
	if err := s.store.CreateRefund(ctx, r); err != nil {
		return nil, err
	}

	s.dispatch(ctx, []Event{r.event(EventRefundRequested, now)})
	return r, nil
}

// ApproveRefund re-checks the ceiling at approval time: several pending
// requests may individually fit the balance but not together.
func (s *RefundService) ApproveRefund(ctx context.Context, refundID, approver string) (*Refund, error) {
	tenantID, ok := tenant.FromContext(ctx)
	if !ok {
		return nil, ErrNoTenant
	}
	r, err := s.store.GetRefund(ctx, tenantID, refundID)
	if err != nil {
		return nil, err
	}
	tx, err := s.store.GetTransaction(ctx, tenantID, r.TransactionID)
	if err != nil {
		return nil, err
	}

	reserved, err := s.store.SumRefunds(ctx, tx.ID, []RefundStatus{RefundApproved, RefundCompleted})
	if err != nil {
		return nil, err
	}
	if reserved.Add(r.Amount).GreaterThan(tx.Amount) {
		return nil, ErrRefundExceedsBalance
	}

	events, err := r.Approve(approver, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateRefund(ctx, r); err != nil {
		return nil, err
	}
	s.dispatch(ctx, events)
	return r, nil
}

func (s *RefundService) RejectRefund(ctx context.Context, refundID, note string) (*Refund, error) {
	tenantID, ok := tenant.FromContext(ctx)
	if !ok {
		return nil, ErrNoTenant
	}
	r, err := s.store.GetRefund(ctx, tenantID, refundID)
	if err != nil {
		return nil, err
	}
	events, err := r.Reject(note, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateRefund(ctx, r); err != nil {
		return nil, err
	}
	s.dispatch(ctx, events)
	return r, nil
}

type CompleteRefundInput struct {
	RefundID string
	// GatewayRefundRef skips the provider call when the money was already
	// moved out-of-band (e.g. via the gateway dashboard).
	GatewayRefundRef string
}

// CompleteRefund finishes an approved refund. Live-gateway refunds go
// through the provider's refund capability inside an operation log entry;
// collect-on-delivery refunds are manual and complete without a gateway
// reference. On completion the parent's refunded total is re-checked and the
// transaction transitions to Refunded only when it equals the paid amount
// exactly.
func (s *RefundService) CompleteRefund(ctx context.Context, in CompleteRefundInput) (*Refund, error) {
	tenantID, ok := tenant.FromContext(ctx)
	if !ok {
		return nil, ErrNoTenant
	}
	r, err := s.store.GetRefund(ctx, tenantID, in.RefundID)
	if err != nil {
		return nil, err
	}
	// Guard before the provider call: a duplicate complete (client retry, or
	// a retry after a ConcurrencyConflict on the parent update) must never
	// move money a second time.
	if r.Status == RefundCompleted {
		return r, nil
	}
	if r.Status != RefundApproved {
		return nil, &InvalidTransitionError{From: Status(r.Status), To: Status(RefundCompleted)}
	}
	tx, err := s.store.GetTransaction(ctx, tenantID, r.TransactionID)
	if err != nil {
		return nil, err
	}

	manual := tx.Method.IsCod()
	gatewayRef := in.GatewayRefundRef

	if gatewayRef == "" && !manual {
		res, callErr := s.callProviderRefund(ctx, tenantID, tx, r)
		if callErr != nil {
			return s.failRefund(ctx, r, callErr)
		}
		gatewayRef = res.RefundRef
	}

	now := s.now()
	events, err := r.Complete(gatewayRef, manual, now)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateRefund(ctx, r); err != nil {
		return nil, err
	}

	completedTotal, err := s.store.SumRefunds(ctx, tx.ID, []RefundStatus{RefundCompleted})
	if err != nil {
		return nil, err
	}
	txEvents, err := tx.ApplyRefundCompletion(completedTotal, now)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateTransaction(ctx, tx); err != nil {
		return nil, err
	}

	s.dispatch(ctx, append(events, txEvents...))
	return r, nil
}

func (s *RefundService) GetRefund(ctx context.Context, refundID string) (*Refund, error) {
	tenantID, ok := tenant.FromContext(ctx)
	if !ok {
		return nil, ErrNoTenant
	}
	return s.store.GetRefund(ctx, tenantID, refundID)
}

// callProviderRefund wraps the outbound refund call in a sealed operation
// log entry, one per attempt.
func (s *RefundService) callProviderRefund(ctx context.Context, tenantID string, tx *Transaction, r *Refund) (RefundCallResult, *GatewayCallError) {
	provider, err := s.providers.Resolve(tx.Provider)
	if err != nil {
		return RefundCallResult{}, &GatewayCallError{Provider: tx.Provider, Err: err}
	}
	refunder, ok := provider.(Refunder)
	if !ok {
		return RefundCallResult{}, &GatewayCallError{Provider: tx.Provider, Err: ErrGatewayRefundRefMissing}
	}
	cfg, err := s.gateways.ResolveByProvider(ctx, tenantID, tx.Provider)
	if err != nil {
		return RefundCallResult{}, &GatewayCallError{Provider: tx.Provider, Err: err}
	}
	credsMap, err := s.gateways.Credentials(cfg)
	if err != nil {
		return RefundCallResult{}, &GatewayCallError{Provider: tx.Provider, Err: err}
	}

	gatewayRef := ""
	if tx.GatewayRef != nil {
		gatewayRef = *tx.GatewayRef
	}
	req := RefundCallRequest{
		TransactionID:     tx.ID,
		TransactionNumber: tx.Number,
		GatewayRef:        gatewayRef,
		RefundNumber:      r.Number,
		Amount:            r.Amount,
		Currency:          r.Currency,
		Reason:            string(r.ReasonCategory),
	}
	entry := openOperation(tenantID, OpRefund, tx.Provider, tx, req, s.now())

	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	res, callErr := refunder.RefundPayment(callCtx, Credentials(credsMap), req)
	cancel()
	now := s.now()

	if callErr != nil {
		entry.sealFailure("transport", callErr.Error(), now)
		s.appendLog(ctx, entry)
		return RefundCallResult{}, &GatewayCallError{Provider: tx.Provider, Err: callErr}
	}
	if !res.Success {
		entry.sealFailure(res.ErrorCode, res.ErrorMessage, now)
		s.appendLog(ctx, entry)
		return RefundCallResult{}, &GatewayCallError{Provider: tx.Provider, Code: res.ErrorCode, Message: res.ErrorMessage}
	}

	entry.sealSuccess(res, now)
	s.appendLog(ctx, entry)
	return res, nil
}

func (s *RefundService) failRefund(ctx context.Context, r *Refund, callErr *GatewayCallError) (*Refund, error) {
	events, terr := r.Fail(callErr.Error(), s.now())
	if terr != nil {
		return nil, terr
	}
	if uerr := s.store.UpdateRefund(ctx, r); uerr != nil {
		return nil, uerr
	}
	s.dispatch(ctx, events)
	return r, callErr
}

func (s *RefundService) appendLog(ctx context.Context, e *OperationLogEntry) {
	if err := s.store.AppendOperationLog(ctx, e); err != nil {
		s.logger.ErrorContext(ctx, "operation log write failed",
			"operation", e.Op, "provider", e.Provider, "transaction_id", e.TransactionID, "err", err)
	}
}

func (s *RefundService) dispatch(ctx context.Context, events []Event) {
	if s.notifier == nil {
		return
	}
	for _, ev := range events {
		msg := notifier.Message{
			Topic:             ev.Name,
			TransactionID:     ev.TransactionID,
			TransactionNumber: ev.TransactionNumber,
			RefundID:          ev.RefundID,
			At:                ev.OccurredAt,
		}
		if err := s.notifier.Notify(ctx, msg); err != nil {
			s.logger.WarnContext(ctx, "notification delivery failed", "topic", ev.Name, "err", err)
		}
	}
}
