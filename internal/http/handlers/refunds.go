package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/NOIR-Solution/noir-payments/internal/http/middleware"
	"github.com/NOIR-Solution/noir-payments/internal/modules/payments"
)

type RefundHandler struct {
	Logger  *slog.Logger
	Refunds *payments.RefundService
}

func NewRefundHandler(logger *slog.Logger, svc *payments.RefundService) *RefundHandler {
	return &RefundHandler{Logger: logger, Refunds: svc}
}

type createRefundRequest struct {
	// Amount empty means the full remaining balance.
	Amount         string `json:"amount"`
	ReasonCategory string `json:"reason_category" binding:"required,oneof=customer_request defective wrong_item fraud other"`
	ReasonDetail   string `json:"reason_detail"`
	RequestedBy    string `json:"requested_by" binding:"required"`
}

// POST /api/payments/:id/refunds
func (h *RefundHandler) Create(c *gin.Context) {
	var req createRefundRequest
	if !bindJSON(c, &req) {
		return
	}
	amount, ok := parseAmount(c, req.Amount)
	if !ok {
		return
	}

	r, err := h.Refunds.RequestRefund(c.Request.Context(), payments.RequestRefundInput{
		TransactionID:  c.Param("id"),
		Amount:         amount,
		ReasonCategory: payments.RefundReason(req.ReasonCategory),
		ReasonDetail:   req.ReasonDetail,
		RequestedBy:    req.RequestedBy,
	})
	if err != nil {
		middleware.Fail(c, mapDomainErr(err))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"refund": refundResponse(r)})
}

// GET /api/refunds/:id
func (h *RefundHandler) Get(c *gin.Context) {
	r, err := h.Refunds.GetRefund(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.Fail(c, mapDomainErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"refund": refundResponse(r)})
}

type approveRefundRequest struct {
	ApprovedBy string `json:"approved_by" binding:"required"`
}

// POST /api/refunds/:id/approve
func (h *RefundHandler) Approve(c *gin.Context) {
	var req approveRefundRequest
	if !bindJSON(c, &req) {
		return
	}
	r, err := h.Refunds.ApproveRefund(c.Request.Context(), c.Param("id"), req.ApprovedBy)
	if err != nil {
		middleware.Fail(c, mapDomainErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"refund": refundResponse(r)})
}

type completeRefundRequest struct {
	// GatewayRefundRef is set when the money was moved out-of-band; with it
	// present no provider call is made.
	GatewayRefundRef string `json:"gateway_refund_ref"`
}

// POST /api/refunds/:id/complete
func (h *RefundHandler) Complete(c *gin.Context) {
	var req completeRefundRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	r, err := h.Refunds.CompleteRefund(c.Request.Context(), payments.CompleteRefundInput{
		RefundID:         c.Param("id"),
		GatewayRefundRef: req.GatewayRefundRef,
	})
	if err != nil {
		middleware.Fail(c, mapDomainErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"refund": refundResponse(r)})
}

type rejectRefundRequest struct {
	Note string `json:"note"`
}

// POST /api/refunds/:id/reject
func (h *RefundHandler) Reject(c *gin.Context) {
	var req rejectRefundRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	r, err := h.Refunds.RejectRefund(c.Request.Context(), c.Param("id"), req.Note)
	if err != nil {
		middleware.Fail(c, mapDomainErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"refund": refundResponse(r)})
}

func refundResponse(r *payments.Refund) gin.H {
	return gin.H{
		"id":                 r.ID,
		"number":             r.Number,
		"transaction_id":     r.TransactionID,
		"status":             r.Status,
		"amount":             r.Amount.String(),
		"currency":           r.Currency,
		"reason_category":    r.ReasonCategory,
		"reason_detail":      strVal(r.ReasonDetail),
		"requested_by":       r.RequestedBy,
		"approved_by":        strVal(r.ApprovedBy),
		"gateway_refund_ref": strVal(r.GatewayRefundRef),
		"failure_reason":     strVal(r.FailureReason),
		"created_at":         r.CreatedAt,
		"updated_at":         r.UpdatedAt,
	}
}
