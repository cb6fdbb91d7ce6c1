package payments

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NOIR-Solution/noir-payments/internal/modules/gateways"
	"github.com/NOIR-Solution/noir-payments/internal/notifier"
	"github.com/NOIR-Solution/noir-payments/internal/shared/apperr"
	"github.com/NOIR-Solution/noir-payments/internal/shared/tenant"
)

const testTenant = "tenant-1"

type fakeGateways struct {
	cfg      *gateways.Config
	credsErr error
}

func (f *fakeGateways) ResolveByProvider(_ context.Context, tenantID, provider string) (*gateways.Config, error) {
	if f.cfg == nil || f.cfg.TenantID != tenantID || f.cfg.Provider != provider {
		return nil, gateways.ErrNotFound
	}
	cp := *f.cfg
	return &cp, nil
}

func (f *fakeGateways) Credentials(_ *gateways.Config) (map[string]string, error) {
	if f.credsErr != nil {
		return nil, f.credsErr
	}
	return map[string]string{"api_key": "sk_test"}, nil
}

func (f *fakeGateways) RecordHealth(_ context.Context, cfg *gateways.Config, healthy bool, at time.Time) error {
	f.cfg.Healthy = &healthy
	f.cfg.LastHealthAt = &at
	return nil
}

type fakeProvider struct {
	name        string
	result      InitiateResult
	err         error
	refund      RefundCallResult
	refundErr   error
	calls       atomic.Int32
	refundCalls atomic.Int32
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) InitiatePayment(_ context.Context, _ Credentials, _ InitiateRequest) (InitiateResult, error) {
	p.calls.Add(1)
	return p.result, p.err
}

func (p *fakeProvider) RefundPayment(_ context.Context, _ Credentials, _ RefundCallRequest) (RefundCallResult, error) {
	p.refundCalls.Add(1)
	return p.refund, p.refundErr
}

func demoConfig() *gateways.Config {
	return &gateways.Config{
		ID:                "gw-1",
		TenantID:          testTenant,
		Provider:          DemoProviderName,
		DisplayName:       "Demo Gateway",
		Active:            true,
		Environment:       gateways.EnvSandbox,
		MinAmount:         decimal.NewFromInt(1000),
		MaxAmount:         decimal.NewFromInt(10000000),
		Currencies:        "VND",
		LinkExpiryMinutes: 30,
	}
}

type serviceFixture struct {
	svc      *Service
	store    *memStore
	provider *fakeProvider
	gw       *fakeGateways
	notes    *notifier.Mock
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	store := newMemStore()
	gw := &fakeGateways{cfg: demoConfig()}
	provider := &fakeProvider{
		name:   DemoProviderName,
		result: InitiateResult{Success: true, GatewayRef: "pay_ref_1"},
	}
	reg := NewRegistry()
	reg.Register(provider)
	notes := &notifier.Mock{}

	svc := NewService(store, gw, reg, notes, nil)
	svc.now = func() time.Time { return time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC) }
	return &serviceFixture{svc: svc, store: store, provider: provider, gw: gw, notes: notes}
}

func testCtx() context.Context {
	return tenant.WithID(context.Background(), testTenant)
}

func cardInput() CreateTransactionInput {
	return CreateTransactionInput{
		Provider: DemoProviderName,
		Amount:   decimal.NewFromInt(500000),
		Currency: "VND",
		Method:   MethodCard,
	}
}

func TestCreateCardPaymentSuccess(t *testing.T) {
	f := newServiceFixture(t)

	res, err := f.svc.CreateTransaction(testCtx(), cardInput())
	require.NoError(t, err)
	tx := res.Transaction

	assert.Equal(t, StatusProcessing, tx.Status)
	require.NotNil(t, tx.GatewayRef)
	assert.Equal(t, "pay_ref_1", *tx.GatewayRef)
	assert.Equal(t, 1, f.store.logCount())
	assert.True(t, f.store.logs[0].Success)
	assert.Equal(t, OpInitiatePayment, f.store.logs[0].Op)
	assert.EqualValues(t, 1, f.provider.calls.Load())
	require.NotNil(t, tx.ExpiresAt)

	// success notification drives Processing -> Paid with paid time set
	updated, err := f.svc.ApplyNotification(testCtx(), NotificationInput{
		Provider:   DemoProviderName,
		GatewayRef: "pay_ref_1",
		Outcome:    OutcomePaid,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, updated.Status)
	require.NotNil(t, updated.PaidAt)

	// duplicate redelivery with the same reference: no-op success
	again, err := f.svc.ApplyNotification(testCtx(), NotificationInput{
		Provider:   DemoProviderName,
		GatewayRef: "pay_ref_1",
		Outcome:    OutcomePaid,
	})
	require.NoError(t, err)
	assert.Equal(t, *updated.PaidAt, *again.PaidAt)
}

func TestCreateRequiresAction(t *testing.T) {
	f := newServiceFixture(t)
	f.provider.result = InitiateResult{
		Success: true, GatewayRef: "pay_3ds", RequiresAction: true, RedirectURL: "https://gw/redirect",
	}

	res, err := f.svc.CreateTransaction(testCtx(), cardInput())
	require.NoError(t, err)
	assert.Equal(t, StatusRequiresAction, res.Transaction.Status)
	assert.Equal(t, "https://gw/redirect", res.RedirectURL)
}

func TestCreateIsIdempotent(t *testing.T) {
	f := newServiceFixture(t)
	in := cardInput()
	in.IdempotencyKey = "client-key-1"

	first, err := f.svc.CreateTransaction(testCtx(), in)
	require.NoError(t, err)
	assert.False(t, first.Idempotent)

	second, err := f.svc.CreateTransaction(testCtx(), in)
	require.NoError(t, err)
	assert.True(t, second.Idempotent)
	assert.Equal(t, first.Transaction.ID, second.Transaction.ID)

	// one gateway call, one log entry, no matter how often it is retried
	assert.EqualValues(t, 1, f.provider.calls.Load())
	assert.Equal(t, 1, f.store.logCount())
}

func TestCreateCollectOnDelivery(t *testing.T) {
	f := newServiceFixture(t)
	in := cardInput()
	in.Method = MethodCod

	res, err := f.svc.CreateTransaction(testCtx(), in)
	require.NoError(t, err)
	tx := res.Transaction

	assert.Equal(t, StatusCodPending, tx.Status)
	assert.Zero(t, f.provider.calls.Load())
	assert.Zero(t, f.store.logCount())

	collected, err := f.svc.ConfirmCodCollection(testCtx(), tx.ID, "warehouse-1")
	require.NoError(t, err)
	assert.Equal(t, StatusCodCollected, collected.Status)
	require.NotNil(t, collected.CodCollectedBy)
	assert.Equal(t, "warehouse-1", *collected.CodCollectedBy)
	require.NotNil(t, collected.CodCollectedAt)
}

func TestCreateRejectsInactiveGateway(t *testing.T) {
	f := newServiceFixture(t)
	f.gw.cfg.Active = false

	_, err := f.svc.CreateTransaction(testCtx(), cardInput())
	assert.ErrorIs(t, err, gateways.ErrInactive)
	// no transaction row persisted
	assert.Empty(t, f.store.txs)
}

func TestCreateValidatesAmountBounds(t *testing.T) {
	f := newServiceFixture(t)

	for name, in := range map[string]CreateTransactionInput{
		"below minimum": {Provider: DemoProviderName, Amount: decimal.NewFromInt(500), Currency: "VND", Method: MethodCard},
		"above maximum": {Provider: DemoProviderName, Amount: decimal.NewFromInt(20000000), Currency: "VND", Method: MethodCard},
		"bad currency":  {Provider: DemoProviderName, Amount: decimal.NewFromInt(500000), Currency: "USD", Method: MethodCard},
	} {
		_, err := f.svc.CreateTransaction(testCtx(), in)
		ae, ok := apperr.As(err)
		require.True(t, ok, name)
		assert.Equal(t, apperr.Invalid, ae.Kind, name)
		assert.Empty(t, f.store.txs, name)
	}
}

func TestCreateUnknownGateway(t *testing.T) {
	f := newServiceFixture(t)
	in := cardInput()
	in.Provider = "no-such-gateway"

	_, err := f.svc.CreateTransaction(testCtx(), in)
	assert.ErrorIs(t, err, gateways.ErrNotFound)
}

func TestCreateProviderRejection(t *testing.T) {
	f := newServiceFixture(t)
	f.provider.result = InitiateResult{Success: false, ErrorCode: "card_declined", ErrorMessage: "insufficient funds"}

	res, err := f.svc.CreateTransaction(testCtx(), cardInput())
	var gce *GatewayCallError
	require.ErrorAs(t, err, &gce)
	assert.Equal(t, "card_declined", gce.Code)

	tx := res.Transaction
	require.NotNil(t, tx)
	assert.Equal(t, StatusFailed, tx.Status)
	require.NotNil(t, tx.FailureReason)
	assert.Equal(t, "insufficient funds", *tx.FailureReason)

	// the failed call is still logged
	require.Equal(t, 1, f.store.logCount())
	assert.False(t, f.store.logs[0].Success)
}

func TestCreateTransportError(t *testing.T) {
	f := newServiceFixture(t)
	f.provider.err = errors.New("connection reset")

	res, err := f.svc.CreateTransaction(testCtx(), cardInput())
	var gce *GatewayCallError
	require.ErrorAs(t, err, &gce)

	// never left dangling in Pending
	assert.Equal(t, StatusFailed, res.Transaction.Status)
	require.Equal(t, 1, f.store.logCount())
	assert.False(t, f.store.logs[0].Success)
	require.NotNil(t, f.store.logs[0].ErrorCode)
	assert.Equal(t, "transport", *f.store.logs[0].ErrorCode)
}

func TestCreateCorruptCredentials(t *testing.T) {
	f := newServiceFixture(t)
	f.gw.credsErr = gateways.ErrCredentialsCorrupt

	_, err := f.svc.CreateTransaction(testCtx(), cardInput())
	assert.ErrorIs(t, err, gateways.ErrCredentialsCorrupt)
	assert.Empty(t, f.store.txs)
	assert.Zero(t, f.provider.calls.Load())
}

func TestConcurrencyGuard(t *testing.T) {
	f := newServiceFixture(t)
	res, err := f.svc.CreateTransaction(testCtx(), cardInput())
	require.NoError(t, err)
	id := res.Transaction.ID

	// two readers load the same version
	a, err := f.store.GetTransaction(testCtx(), testTenant, id)
	require.NoError(t, err)
	b, err := f.store.GetTransaction(testCtx(), testTenant, id)
	require.NoError(t, err)
	require.Equal(t, a.Version, b.Version)

	_, err = a.MarkPaid("pay_ref_1", time.Now())
	require.NoError(t, err)
	_, err = b.Cancel(time.Now())
	require.NoError(t, err)

	// exactly one write wins
	errA := f.store.UpdateTransaction(testCtx(), a)
	errB := f.store.UpdateTransaction(testCtx(), b)
	if errA == nil {
		assert.ErrorIs(t, errB, ErrConcurrencyConflict)
	} else {
		assert.ErrorIs(t, errA, ErrConcurrencyConflict)
		assert.NoError(t, errB)
	}
}

func TestCancelAndExpire(t *testing.T) {
	f := newServiceFixture(t)
	res, err := f.svc.CreateTransaction(testCtx(), cardInput())
	require.NoError(t, err)

	cancelled, err := f.svc.CancelTransaction(testCtx(), res.Transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)

	// a cancelled transaction cannot expire
	_, err = f.svc.ExpireTransaction(testCtx(), res.Transaction.ID)
	require.Error(t, err)
}

func TestExpireAfterDeadline(t *testing.T) {
	f := newServiceFixture(t)
	res, err := f.svc.CreateTransaction(testCtx(), cardInput())
	require.NoError(t, err)

	// move the clock past the expiry window
	f.svc.now = func() time.Time { return time.Date(2026, 8, 29, 11, 0, 0, 0, time.UTC) }

	// Processing cannot expire; only Pending / RequiresAction can
	_, err = f.svc.ExpireTransaction(testCtx(), res.Transaction.ID)
	var ite *InvalidTransitionError
	require.ErrorAs(t, err, &ite)

	// a requires-action transaction past its deadline expires fine
	f.svc.now = func() time.Time { return time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC) }
	f.provider.result = InitiateResult{Success: true, GatewayRef: "pay_3ds_2", RequiresAction: true}
	res2, err := f.svc.CreateTransaction(testCtx(), cardInput())
	require.NoError(t, err)

	f.svc.now = func() time.Time { return time.Date(2026, 8, 29, 11, 0, 0, 0, time.UTC) }
	expired, err := f.svc.ExpireTransaction(testCtx(), res2.Transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, expired.Status)
}

func TestNotificationsDispatch(t *testing.T) {
	f := newServiceFixture(t)
	res, err := f.svc.CreateTransaction(testCtx(), cardInput())
	require.NoError(t, err)

	_, err = f.svc.ApplyNotification(testCtx(), NotificationInput{
		TransactionID: res.Transaction.ID,
		GatewayRef:    "pay_ref_1",
		Outcome:       OutcomePaid,
	})
	require.NoError(t, err)

	topics := []string{}
	for _, m := range f.notes.Messages() {
		topics = append(topics, m.Topic)
	}
	assert.Contains(t, topics, EventPaymentProcessing)
	assert.Contains(t, topics, EventPaymentPaid)
}

func TestNoTenantInContext(t *testing.T) {
	f := newServiceFixture(t)
	_, err := f.svc.CreateTransaction(context.Background(), cardInput())
	assert.ErrorIs(t, err, ErrNoTenant)
}
