package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/NOIR-Solution/noir-payments/internal/http/middleware"
	"github.com/NOIR-Solution/noir-payments/internal/http/validation"
	"github.com/NOIR-Solution/noir-payments/internal/modules/gateways"
	"github.com/NOIR-Solution/noir-payments/internal/modules/payments"
	"github.com/NOIR-Solution/noir-payments/internal/shared/apperr"
)

// bindJSON binds and validates the body, converting validator output into a
// field map the error handler renders.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		fields := validation.FromBindError(err, dst)
		middleware.Fail(c, apperr.InvalidErr("Request validation failed.", fields))
		return false
	}
	return true
}

// parseAmount accepts a decimal string ("500000" or "500000.00").
func parseAmount(c *gin.Context, raw string) (decimal.Decimal, bool) {
	if raw == "" {
		return decimal.Zero, true
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		middleware.Fail(c, apperr.InvalidErr("Request validation failed.",
			map[string]string{"amount": "must be a decimal number"}))
		return decimal.Decimal{}, false
	}
	return d, true
}

// mapDomainErr translates domain sentinels into the error taxonomy the
// error-handler middleware knows how to render.
func mapDomainErr(err error) error {
	if _, ok := apperr.As(err); ok {
		return err
	}

	var ite *payments.InvalidTransitionError
	var gce *payments.GatewayCallError

	switch {
	case errors.Is(err, payments.ErrTransactionNotFound):
		return apperr.NotFoundErr("Transaction not found.")
	case errors.Is(err, payments.ErrRefundNotFound):
		return apperr.NotFoundErr("Refund not found.")
	case errors.Is(err, gateways.ErrNotFound):
		return apperr.NotFoundErr("Gateway is not configured.")

	case errors.Is(err, payments.ErrNoTenant):
		return &apperr.AppError{Kind: apperr.Unauthorized, PublicMsg: "X-Tenant-ID header is required.", Err: err}

	case errors.As(err, &ite):
		return apperr.ConflictErr("The transaction is not in a state that allows this operation.", err)
	case errors.Is(err, payments.ErrConcurrencyConflict),
		errors.Is(err, gateways.ErrConcurrencyConflict):
		return apperr.ConflictErr("The record was modified concurrently, retry with fresh data.", err)
	case errors.Is(err, payments.ErrDuplicateIdempotencyKey):
		return apperr.ConflictErr("A transaction with this idempotency key already exists.", err)

	case errors.Is(err, gateways.ErrInactive):
		return apperr.UnprocessableErr("Gateway is not active.", err)
	case errors.Is(err, payments.ErrNotCashOnDelivery):
		return apperr.UnprocessableErr("Not a collect-on-delivery transaction.", err)
	case errors.Is(err, payments.ErrNotYetExpired):
		return apperr.UnprocessableErr("The transaction has not reached its expiry time.", err)
	case errors.Is(err, payments.ErrRefundNotAllowed):
		return apperr.UnprocessableErr("Only paid transactions can be refunded.", err)
	case errors.Is(err, payments.ErrRefundExceedsBalance):
		return apperr.UnprocessableErr("Refund amount exceeds the remaining refundable balance.", err)
	case errors.Is(err, payments.ErrGatewayRefundRefMissing):
		return apperr.UnprocessableErr("A gateway refund reference is required.", err)

	// credential corruption is an operator problem (wrong key, mangled
	// ciphertext), not something the caller can fix; checked before the
	// generic gateway-call case since the sentinel may arrive wrapped
	case errors.Is(err, gateways.ErrCredentialsCorrupt):
		return &apperr.AppError{Kind: apperr.Internal, PublicMsg: "Gateway credentials could not be decrypted.", Err: err}

	case errors.As(err, &gce):
		return apperr.UpstreamErr("The payment gateway rejected the request.", err)

	default:
		return apperr.Wrap(err)
	}
}

func strVal(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func decVal(p *decimal.Decimal) any {
	if p == nil {
		return nil
	}
	return p.String()
}
