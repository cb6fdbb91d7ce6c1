package handlers

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NOIR-Solution/noir-payments/internal/modules/gateways"
	"github.com/NOIR-Solution/noir-payments/internal/modules/payments"
	"github.com/NOIR-Solution/noir-payments/internal/shared/apperr"
)

func TestMapDomainErr(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind apperr.Kind
	}{
		{"transaction not found", payments.ErrTransactionNotFound, apperr.NotFound},
		{"concurrency conflict", payments.ErrConcurrencyConflict, apperr.Conflict},
		{"invalid transition", &payments.InvalidTransitionError{From: payments.StatusPaid, To: payments.StatusProcessing}, apperr.Conflict},
		{"refund exceeds balance", payments.ErrRefundExceedsBalance, apperr.Unprocessable},
		{"inactive gateway", gateways.ErrInactive, apperr.Unprocessable},
		{"corrupt credentials", gateways.ErrCredentialsCorrupt, apperr.Internal},
		{"corrupt credentials, wrapped", fmt.Errorf("resolving gateway: %w", gateways.ErrCredentialsCorrupt), apperr.Internal},
		{"corrupt credentials inside gateway call", &payments.GatewayCallError{Provider: "demo-gateway", Err: gateways.ErrCredentialsCorrupt}, apperr.Internal},
		{"gateway rejection", &payments.GatewayCallError{Provider: "demo-gateway", Code: "card_declined", Message: "declined"}, apperr.Upstream},
		{"unknown", errors.New("boom"), apperr.Internal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ae, ok := apperr.As(mapDomainErr(tc.err))
			require.True(t, ok)
			assert.Equal(t, tc.kind, ae.Kind)
		})
	}
}

// corrupt credentials must not leak key material or ciphertext details, but
// the response still names the failure so operators can act on it
func TestMapDomainErrCredentialsMessage(t *testing.T) {
	ae, ok := apperr.As(mapDomainErr(gateways.ErrCredentialsCorrupt))
	require.True(t, ok)
	assert.Equal(t, "Gateway credentials could not be decrypted.", ae.PublicMsg)
}
