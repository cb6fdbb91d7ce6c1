package payments

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NOIR-Solution/noir-payments/internal/notifier"
)

type refundFixture struct {
	svc      *RefundService
	store    *memStore
	provider *fakeProvider
	tx       *Transaction
}

// newRefundFixture seeds a Paid transaction of the given amount.
func newRefundFixture(t *testing.T, amount int64, method Method) *refundFixture {
	t.Helper()
	store := newMemStore()
	gw := &fakeGateways{cfg: demoConfig()}
	provider := &fakeProvider{
		name:   DemoProviderName,
		refund: RefundCallResult{Success: true, RefundRef: "rfnd_ref_1"},
	}
	reg := NewRegistry()
	reg.Register(provider)

	svc := NewRefundService(store, gw, reg, &notifier.Mock{}, nil)
	svc.now = func() time.Time { return time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC) }

	paidAt := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	tx := &Transaction{
		ID:             "tx-paid",
		TenantID:       testTenant,
		Number:         "TXN-20260828-TEST01",
		IdempotencyKey: "paid-key",
		Provider:       DemoProviderName,
		Amount:         decimal.NewFromInt(amount),
		Currency:       "VND",
		RefundedAmount: decimal.Zero,
		Status:         StatusPaid,
		Method:         method,
		GatewayRef:     strPtr("pay_ref_1"),
		PaidAt:         &paidAt,
	}
	require.NoError(t, store.CreateTransaction(testCtx(), tx))
	return &refundFixture{svc: svc, store: store, provider: provider, tx: tx}
}

func (f *refundFixture) requestAndApprove(t *testing.T, amount int64) *Refund {
	t.Helper()
	r, err := f.svc.RequestRefund(testCtx(), RequestRefundInput{
		TransactionID:  f.tx.ID,
		Amount:         decimal.NewFromInt(amount),
		ReasonCategory: ReasonCustomerRequest,
		RequestedBy:    "support-1",
	})
	require.NoError(t, err)
	r, err = f.svc.ApproveRefund(testCtx(), r.ID, "manager-1")
	require.NoError(t, err)
	return r
}

func TestRefundRequiresPaidTransaction(t *testing.T) {
	f := newRefundFixture(t, 100, MethodCard)
	pending := newTestTransaction(MethodCard, StatusProcessing)
	pending.ID = "tx-processing"
	pending.IdempotencyKey = "other-key"
	require.NoError(t, f.store.CreateTransaction(testCtx(), pending))

	_, err := f.svc.RequestRefund(testCtx(), RequestRefundInput{
		TransactionID:  "tx-processing",
		Amount:         decimal.NewFromInt(10),
		ReasonCategory: ReasonCustomerRequest,
		RequestedBy:    "support-1",
	})
	assert.ErrorIs(t, err, ErrRefundNotAllowed)
}

func TestRefundCeiling(t *testing.T) {
	f := newRefundFixture(t, 100, MethodCard)

	_, err := f.svc.RequestRefund(testCtx(), RequestRefundInput{
		TransactionID:  f.tx.ID,
		Amount:         decimal.NewFromInt(150),
		ReasonCategory: ReasonCustomerRequest,
		RequestedBy:    "support-1",
	})
	assert.ErrorIs(t, err, ErrRefundExceedsBalance)

	// 60 approved, then another 60 would breach the ceiling at approval
	f.requestAndApprove(t, 60)
	second, err := f.svc.RequestRefund(testCtx(), RequestRefundInput{
		TransactionID:  f.tx.ID,
		Amount:         decimal.NewFromInt(60),
		ReasonCategory: ReasonDefective,
		RequestedBy:    "support-1",
	})
	assert.ErrorIs(t, err, ErrRefundExceedsBalance)
	assert.Nil(t, second)
}

func TestPartialThenFullRefund(t *testing.T) {
	f := newRefundFixture(t, 100, MethodCard)

	// partial 40: transaction stays Paid
	first := f.requestAndApprove(t, 40)
	first, err := f.svc.CompleteRefund(testCtx(), CompleteRefundInput{RefundID: first.ID})
	require.NoError(t, err)
	assert.Equal(t, RefundCompleted, first.Status)
	require.NotNil(t, first.GatewayRefundRef)

	tx, err := f.store.GetTransaction(testCtx(), testTenant, f.tx.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, tx.Status)
	assert.True(t, tx.RefundedAmount.Equal(decimal.NewFromInt(40)))

	// remaining 60: transaction transitions to Refunded
	second := f.requestAndApprove(t, 60)
	_, err = f.svc.CompleteRefund(testCtx(), CompleteRefundInput{RefundID: second.ID})
	require.NoError(t, err)

	tx, err = f.store.GetTransaction(testCtx(), testTenant, f.tx.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRefunded, tx.Status)
	assert.True(t, tx.RefundedAmount.Equal(decimal.NewFromInt(100)))

	// one operation log entry per provider refund call
	assert.Equal(t, 2, f.store.logCount())
	for _, e := range f.store.logs {
		assert.Equal(t, OpRefund, e.Op)
		assert.True(t, e.Success)
	}

	// fully refunded: nothing left to refund
	_, err = f.svc.RequestRefund(testCtx(), RequestRefundInput{
		TransactionID:  f.tx.ID,
		Amount:         decimal.NewFromInt(1),
		ReasonCategory: ReasonOther,
		RequestedBy:    "support-1",
	})
	assert.ErrorIs(t, err, ErrRefundExceedsBalance)
}

func TestRefundZeroAmountMeansFullRemaining(t *testing.T) {
	f := newRefundFixture(t, 100, MethodCard)

	r, err := f.svc.RequestRefund(testCtx(), RequestRefundInput{
		TransactionID:  f.tx.ID,
		ReasonCategory: ReasonWrongItem,
		RequestedBy:    "support-1",
	})
	require.NoError(t, err)
	assert.True(t, r.Amount.Equal(decimal.NewFromInt(100)))
}

func TestRefundProviderRejectionFailsRefund(t *testing.T) {
	f := newRefundFixture(t, 100, MethodCard)
	f.provider.refund = RefundCallResult{Success: false, ErrorCode: "already_refunded", ErrorMessage: "duplicate refund"}

	r := f.requestAndApprove(t, 40)
	_, err := f.svc.CompleteRefund(testCtx(), CompleteRefundInput{RefundID: r.ID})
	var gce *GatewayCallError
	require.ErrorAs(t, err, &gce)

	stored, err := f.store.GetRefund(testCtx(), testTenant, r.ID)
	require.NoError(t, err)
	assert.Equal(t, RefundFailed, stored.Status)

	// the failed attempt is logged, the transaction stays Paid
	require.Equal(t, 1, f.store.logCount())
	assert.False(t, f.store.logs[0].Success)
	tx, err := f.store.GetTransaction(testCtx(), testTenant, f.tx.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, tx.Status)
}

func TestDuplicateCompleteCallsProviderOnce(t *testing.T) {
	f := newRefundFixture(t, 100, MethodCard)

	r := f.requestAndApprove(t, 40)
	first, err := f.svc.CompleteRefund(testCtx(), CompleteRefundInput{RefundID: r.ID})
	require.NoError(t, err)
	assert.Equal(t, RefundCompleted, first.Status)
	assert.EqualValues(t, 1, f.provider.refundCalls.Load())
	assert.Equal(t, 1, f.store.logCount())

	// a retried complete must not move money again
	second, err := f.svc.CompleteRefund(testCtx(), CompleteRefundInput{RefundID: r.ID})
	require.NoError(t, err)
	assert.Equal(t, RefundCompleted, second.Status)
	assert.Equal(t, first.ID, second.ID)
	assert.EqualValues(t, 1, f.provider.refundCalls.Load())
	assert.Equal(t, 1, f.store.logCount())

	// completing anything other than an approved refund is rejected up front
	pending, err := f.svc.RequestRefund(testCtx(), RequestRefundInput{
		TransactionID:  f.tx.ID,
		Amount:         decimal.NewFromInt(10),
		ReasonCategory: ReasonCustomerRequest,
		RequestedBy:    "support-1",
	})
	require.NoError(t, err)
	_, err = f.svc.CompleteRefund(testCtx(), CompleteRefundInput{RefundID: pending.ID})
	var ite *InvalidTransitionError
	require.ErrorAs(t, err, &ite)
	assert.EqualValues(t, 1, f.provider.refundCalls.Load())
}

func TestManualCodRefundCompletesWithoutProvider(t *testing.T) {
	f := newRefundFixture(t, 100, MethodCod)

	r := f.requestAndApprove(t, 100)
	r, err := f.svc.CompleteRefund(testCtx(), CompleteRefundInput{RefundID: r.ID})
	require.NoError(t, err)
	assert.Equal(t, RefundCompleted, r.Status)
	assert.Nil(t, r.GatewayRefundRef)
	assert.Zero(t, f.store.logCount())

	tx, err := f.store.GetTransaction(testCtx(), testTenant, f.tx.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRefunded, tx.Status)
}

func TestRejectRefund(t *testing.T) {
	f := newRefundFixture(t, 100, MethodCard)

	r, err := f.svc.RequestRefund(testCtx(), RequestRefundInput{
		TransactionID:  f.tx.ID,
		Amount:         decimal.NewFromInt(40),
		ReasonCategory: ReasonOther,
		RequestedBy:    "support-1",
	})
	require.NoError(t, err)

	r, err = f.svc.RejectRefund(testCtx(), r.ID, "outside refund window")
	require.NoError(t, err)
	assert.Equal(t, RefundRejected, r.Status)

	// a rejected refund cannot be approved afterwards
	_, err = f.svc.ApproveRefund(testCtx(), r.ID, "manager-1")
	var ite *InvalidTransitionError
	assert.ErrorAs(t, err, &ite)
}

func TestRefundCurrencyFollowsParent(t *testing.T) {
	f := newRefundFixture(t, 100, MethodCard)
	r := f.requestAndApprove(t, 40)
	assert.Equal(t, "VND", r.Currency)
}
