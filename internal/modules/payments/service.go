package payments

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/NOIR-Solution/noir-payments/internal/modules/gateways"
	"github.com/NOIR-Solution/noir-payments/internal/notifier"
	"github.com/NOIR-Solution/noir-payments/internal/shared/tenant"
)

// GatewaySource is how the orchestrator reaches gateway configuration and
// decrypted credentials.
type GatewaySource interface {
	ResolveByProvider(ctx context.Context, tenantID, provider string) (*gateways.Config, error)
	Credentials(cfg *gateways.Config) (map[string]string, error)
	RecordHealth(ctx context.Context, cfg *gateways.Config, healthy bool, at time.Time) error
}

// Service orchestrates transaction creation and every later transition:
// idempotency, gateway validation, the provider call wrapped in an operation
// log entry, and version-checked persistence.
type Service struct {
	store     Store
	gateways  GatewaySource
	providers *Registry
	notifier  notifier.Notifier
	logger    *slog.Logger

	callTimeout time.Duration
	now         func() time.Time
}

func NewService(store Store, gw GatewaySource, providers *Registry, n notifier.Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:       store,
		gateways:    gw,
		providers:   providers,
		notifier:    n,
		logger:      logger,
		callTimeout: 15 * time.Second,
		now:         time.Now,
	}
}

type CreateTransactionInput struct {
	Provider       string
	Amount         decimal.Decimal
	Currency       string
	Method         Method
	MethodDetail   string
	IdempotencyKey string // generated when empty
	OrderID        string
	CustomerID     string
	ReturnURL      string
	Metadata       map[string]string
}

type CreateTransactionResult struct {
	Transaction *Transaction
	Idempotent  bool   // an existing transaction with the same key was returned
	RedirectURL string // set when the gateway requires user action
}

// CreateTransaction implements the creation workflow end to end. The
// transaction is persisted as Pending before the provider call and updated
// only after it returns, so a hung gateway never blocks readers; the
// post-call write is version-checked like every other.
func (s *Service) CreateTransaction(ctx context.Context, in CreateTransactionInput) (CreateTransactionResult, error) {
	tenantID, ok := tenant.FromContext(ctx)
	if !ok {
		return CreateTransactionResult{}, ErrNoTenant
	}

	// At-most-once creation: same key, same transaction, no new gateway call.
	if in.IdempotencyKey != "" {
		existing, err := s.store.GetTransactionByIdempotencyKey(ctx, tenantID, in.IdempotencyKey)
		if err == nil {
			return CreateTransactionResult{Transaction: existing, Idempotent: true}, nil
		}
		if !errors.Is(err, ErrTransactionNotFound) {
			return CreateTransactionResult{}, err
		}
	}

	cfg, err := s.gateways.ResolveByProvider(ctx, tenantID, in.Provider)
	if err != nil {
		return CreateTransactionResult{}, err
	}
	if !cfg.Active {
		return CreateTransactionResult{}, gateways.ErrInactive
	}
	if err := cfg.ValidateCharge(in.Amount, in.Currency); err != nil {
		return CreateTransactionResult{}, err
	}

	now := s.now()
	key := in.IdempotencyKey
	if key == "" {
		key = NewIdempotencyKey()
	}
	expires := now.Add(cfg.ExpiryWindow())

	tx := &Transaction{
		ID:              uuid.NewString(),
		TenantID:        tenantID,
		Number:          NewTransactionNumber(now),
		IdempotencyKey:  key,
		GatewayConfigID: cfg.ID,
		Provider:        cfg.Provider,
		Amount:          in.Amount,
		Currency:        in.Currency,
		RefundedAmount:  decimal.Zero,
		Status:          StatusPending,
		Method:          in.Method,
		ExpiresAt:       &expires,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if in.MethodDetail != "" {
		tx.MethodDetail = strPtr(in.MethodDetail)
	}
	if in.OrderID != "" {
		tx.OrderID = strPtr(in.OrderID)
	}
	if in.CustomerID != "" {
		tx.CustomerID = strPtr(in.CustomerID)
	}
	if len(in.Metadata) > 0 {
		tx.Metadata = datatypes.JSON(mustJSON(in.Metadata))
	}

	// Collect on delivery: no external call, no log entry.
	if in.Method.IsCod() {
		events, err := tx.MarkCodPending(now)
		if err != nil {
			return CreateTransactionResult{}, err
		}
		created, idem, err := s.createOrReuse(ctx, tenantID, tx, key)
		if err != nil {
			return CreateTransactionResult{}, err
		}
		if !idem {
			s.dispatch(ctx, events)
		}
		return CreateTransactionResult{Transaction: created, Idempotent: idem}, nil
	}

	provider, err := s.providers.Resolve(cfg.Provider)
	if err != nil {
		return CreateTransactionResult{}, err
	}
	// Decrypted credentials live only for the duration of this call path.
	credsMap, err := s.gateways.Credentials(cfg)
	if err != nil {
		return CreateTransactionResult{}, err
	}

	created, idem, err := s.createOrReuse(ctx, tenantID, tx, key)
	if err != nil {
		return CreateTransactionResult{}, err
	}
	if idem {
		return CreateTransactionResult{Transaction: created, Idempotent: true}, nil
	}

	req := InitiateRequest{
		TransactionID:     tx.ID,
		TransactionNumber: tx.Number,
		Amount:            tx.Amount,
		Currency:          tx.Currency,
		Method:            tx.Method,
		ReturnURL:         in.ReturnURL,
		Metadata:          in.Metadata,
	}
	entry := openOperation(tenantID, OpInitiatePayment, cfg.Provider, tx, req, s.now())

	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	res, callErr := provider.InitiatePayment(callCtx, Credentials(credsMap), req)
	cancel()
	now = s.now()

	if callErr != nil {
		entry.sealFailure("transport", callErr.Error(), now)
		s.appendLog(ctx, entry)
		return s.failTransaction(ctx, tx, &GatewayCallError{Provider: cfg.Provider, Err: callErr}, now)
	}
	if !res.Success {
		entry.sealFailure(res.ErrorCode, res.ErrorMessage, now)
		s.appendLog(ctx, entry)
		return s.failTransaction(ctx, tx, &GatewayCallError{
			Provider: cfg.Provider, Code: res.ErrorCode, Message: res.ErrorMessage,
		}, now)
	}

	entry.sealSuccess(res, now)
	s.appendLog(ctx, entry)

	tx.AttachGatewayRef(res.GatewayRef)
	var events []Event
	if res.RequiresAction {
		events, err = tx.RequireAction(now)
	} else {
		events, err = tx.BeginProcessing(now)
	}
	if err != nil {
		return CreateTransactionResult{}, err
	}
	if err := s.store.UpdateTransaction(ctx, tx); err != nil {
		return CreateTransactionResult{}, err
	}
	s.dispatch(ctx, events)

	return CreateTransactionResult{Transaction: tx, RedirectURL: res.RedirectURL}, nil
}

// createOrReuse persists the new Pending row; on an idempotency-key race the
// winner is re-read and returned instead of propagating a write failure.
func (s *Service) createOrReuse(ctx context.Context, tenantID string, tx *Transaction, key string) (*Transaction, bool, error) {
	err := s.store.CreateTransaction(ctx, tx)
	if err == nil {
		return tx, false, nil
	}
	if errors.Is(err, ErrDuplicateIdempotencyKey) {
		existing, rerr := s.store.GetTransactionByIdempotencyKey(ctx, tenantID, key)
		if rerr != nil {
			return nil, false, rerr
		}
		return existing, true, nil
	}
	return nil, false, err
}

func (s *Service) failTransaction(ctx context.Context, tx *Transaction, callErr *GatewayCallError, now time.Time) (CreateTransactionResult, error) {
	reason := callErr.Message
	if callErr.Err != nil {
		reason = callErr.Err.Error()
	}
	events, terr := tx.MarkFailed(reason, callErr.Code, now)
	if terr != nil {
		return CreateTransactionResult{}, terr
	}
	if uerr := s.store.UpdateTransaction(ctx, tx); uerr != nil {
		return CreateTransactionResult{}, uerr
	}
	s.dispatch(ctx, events)
	return CreateTransactionResult{Transaction: tx}, callErr
}

type NotificationOutcome string

const (
	OutcomePaid           NotificationOutcome = "paid"
	OutcomeFailed         NotificationOutcome = "failed"
	OutcomeRequiresAction NotificationOutcome = "requires_action"
)

type NotificationInput struct {
	TransactionID string // either this ...
	Provider      string // ... or provider + gateway reference
	GatewayRef    string
	Outcome       NotificationOutcome
	FailureReason string
	FailureCode   string
}

// ApplyNotification drives the transitions a gateway webhook (or an
// equivalent out-of-band confirmation) triggers. A duplicate "paid"
// redelivery with a matching reference is a no-op success; conflicting
// concurrent updates surface as ErrConcurrencyConflict for the caller to
// re-read and retry.
func (s *Service) ApplyNotification(ctx context.Context, in NotificationInput) (*Transaction, error) {
	tx, err := s.findForNotification(ctx, in)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var events []Event
	switch in.Outcome {
	case OutcomePaid:
		events, err = tx.MarkPaid(in.GatewayRef, now)
	case OutcomeFailed:
		events, err = tx.MarkFailed(orDefault(in.FailureReason, "gateway reported failure"), in.FailureCode, now)
	case OutcomeRequiresAction:
		events, err = tx.RequireAction(now)
	default:
		return nil, &InvalidTransitionError{From: tx.Status, To: Status(in.Outcome)}
	}
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		// duplicate redelivery, nothing changed
		return tx, nil
	}

	if err := s.store.UpdateTransaction(ctx, tx); err != nil {
		return nil, err
	}
	s.dispatch(ctx, events)
	return tx, nil
}

func (s *Service) findForNotification(ctx context.Context, in NotificationInput) (*Transaction, error) {
	if in.TransactionID != "" {
		tenantID, ok := tenant.FromContext(ctx)
		if !ok {
			return nil, ErrNoTenant
		}
		return s.store.GetTransaction(ctx, tenantID, in.TransactionID)
	}
	if in.Provider != "" && in.GatewayRef != "" {
		return s.store.GetTransactionByGatewayRef(ctx, in.Provider, in.GatewayRef)
	}
	return nil, ErrTransactionNotFound
}

// ConfirmCodCollection records the physical cash hand-over.
func (s *Service) ConfirmCodCollection(ctx context.Context, transactionID, collector string) (*Transaction, error) {
	tx, err := s.getScoped(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	events, err := tx.ConfirmCodCollection(collector, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateTransaction(ctx, tx); err != nil {
		return nil, err
	}
	s.dispatch(ctx, events)
	return tx, nil
}

func (s *Service) CancelTransaction(ctx context.Context, transactionID string) (*Transaction, error) {
	tx, err := s.getScoped(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	events, err := tx.Cancel(s.now())
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateTransaction(ctx, tx); err != nil {
		return nil, err
	}
	s.dispatch(ctx, events)
	return tx, nil
}

// ExpireTransaction is invoked by the scheduled sweep for transactions whose
// expiry time has passed. It is a guarded transition like any other.
func (s *Service) ExpireTransaction(ctx context.Context, transactionID string) (*Transaction, error) {
	tx, err := s.getScoped(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	events, err := tx.Expire(s.now())
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateTransaction(ctx, tx); err != nil {
		return nil, err
	}
	s.dispatch(ctx, events)
	return tx, nil
}

func (s *Service) GetTransaction(ctx context.Context, transactionID string) (*Transaction, error) {
	return s.getScoped(ctx, transactionID)
}

// CheckGatewayHealth probes a provider that supports it and records the
// outcome on the gateway configuration, with an operation log entry either
// way.
func (s *Service) CheckGatewayHealth(ctx context.Context, providerName string) (bool, error) {
	tenantID, ok := tenant.FromContext(ctx)
	if !ok {
		return false, ErrNoTenant
	}
	cfg, err := s.gateways.ResolveByProvider(ctx, tenantID, providerName)
	if err != nil {
		return false, err
	}
	provider, err := s.providers.Resolve(cfg.Provider)
	if err != nil {
		return false, err
	}
	checker, ok := provider.(HealthChecker)
	if !ok {
		return false, ErrProviderNotConfigured
	}
	credsMap, err := s.gateways.Credentials(cfg)
	if err != nil {
		return false, err
	}

	entry := openOperation(tenantID, OpHealthCheck, cfg.Provider, nil, map[string]string{"probe": "health"}, s.now())
	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	probeErr := checker.CheckHealth(callCtx, Credentials(credsMap))
	cancel()

	now := s.now()
	healthy := probeErr == nil
	if healthy {
		entry.sealSuccess(map[string]string{"status": "ok"}, now)
	} else {
		entry.sealFailure("unhealthy", probeErr.Error(), now)
	}
	s.appendLog(ctx, entry)

	if err := s.gateways.RecordHealth(ctx, cfg, healthy, now); err != nil {
		return healthy, err
	}
	return healthy, nil
}

func (s *Service) getScoped(ctx context.Context, transactionID string) (*Transaction, error) {
	tenantID, ok := tenant.FromContext(ctx)
	if !ok {
		return nil, ErrNoTenant
	}
	return s.store.GetTransaction(ctx, tenantID, transactionID)
}

// appendLog must not be skipped on failure paths: a failed gateway call
// without a log entry is a diagnosability bug. A failed write is logged
// loudly but does not abort the workflow.
func (s *Service) appendLog(ctx context.Context, e *OperationLogEntry) {
	if err := s.store.AppendOperationLog(ctx, e); err != nil {
		s.logger.ErrorContext(ctx, "operation log write failed",
			"operation", e.Op, "provider", e.Provider, "transaction_id", e.TransactionID, "err", err)
	}
}

func (s *Service) dispatch(ctx context.Context, events []Event) {
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
