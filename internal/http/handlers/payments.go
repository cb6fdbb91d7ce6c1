package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/NOIR-Solution/noir-payments/internal/http/middleware"
	"github.com/NOIR-Solution/noir-payments/internal/modules/payments"
)

type PaymentHandler struct {
	Logger   *slog.Logger
	Payments *payments.Service
}

func NewPaymentHandler(logger *slog.Logger, svc *payments.Service) *PaymentHandler {
	return &PaymentHandler{Logger: logger, Payments: svc}
}

type createPaymentRequest struct {
	Provider       string            `json:"provider" binding:"required"`
	Amount         string            `json:"amount" binding:"required"`
	Currency       string            `json:"currency" binding:"required,len=3"`
	Method         string            `json:"method" binding:"required,oneof=card wallet bank_transfer cod"`
	MethodDetail   string            `json:"method_detail"`
	IdempotencyKey string            `json:"idempotency_key"`
	OrderID        string            `json:"order_id"`
	CustomerID     string            `json:"customer_id"`
	ReturnURL      string            `json:"return_url" binding:"omitempty,url"`
	Metadata       map[string]string `json:"metadata"`
}

// POST /api/payments
func (h *PaymentHandler) Create(c *gin.Context) {
	var req createPaymentRequest
	if !bindJSON(c, &req) {
		return
	}
	amount, ok := parseAmount(c, req.Amount)
	if !ok {
		return
	}

	res, err := h.Payments.CreateTransaction(c.Request.Context(), payments.CreateTransactionInput{
		Provider:       req.Provider,
		Amount:         amount,
		Currency:       req.Currency,
		Method:         payments.Method(req.Method),
		MethodDetail:   req.MethodDetail,
		IdempotencyKey: req.IdempotencyKey,
		OrderID:        req.OrderID,
		CustomerID:     req.CustomerID,
		ReturnURL:      req.ReturnURL,
		Metadata:       req.Metadata,
	})
	if err != nil {
		// a gateway rejection still produced a Failed transaction the
		// caller needs to see
		var gce *payments.GatewayCallError
		if errors.As(err, &gce) && res.Transaction != nil {
			c.JSON(http.StatusBadGateway, gin.H{
				"error":       "The payment gateway rejected the request.",
				"error_code":  gce.Code,
				"request_id":  middleware.GetRequestID(c),
				"transaction": txResponse(res.Transaction),
			})
			return
		}
		middleware.Fail(c, mapDomainErr(err))
		return
	}

	status := http.StatusCreated
	if res.Idempotent {
		status = http.StatusOK
	}
	body := gin.H{"transaction": txResponse(res.Transaction)}
	if res.RedirectURL != "" {
		body["redirect_url"] = res.RedirectURL
	}
	c.JSON(status, body)
}

// GET /api/payments/:id
func (h *PaymentHandler) Get(c *gin.Context) {
	tx, err := h.Payments.GetTransaction(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.Fail(c, mapDomainErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": txResponse(tx)})
}

// POST /api/payments/:id/cancel
func (h *PaymentHandler) Cancel(c *gin.Context) {
	tx, err := h.Payments.CancelTransaction(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.Fail(c, mapDomainErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": txResponse(tx)})
}

type codCollectedRequest struct {
	CollectedBy string `json:"collected_by" binding:"required"`
}

// POST /api/payments/:id/cod-collected
func (h *PaymentHandler) CodCollected(c *gin.Context) {
	var req codCollectedRequest
	if !bindJSON(c, &req) {
		return
	}
	tx, err := h.Payments.ConfirmCodCollection(c.Request.Context(), c.Param("id"), req.CollectedBy)
	if err != nil {
		middleware.Fail(c, mapDomainErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": txResponse(tx)})
}

func txResponse(tx *payments.Transaction) gin.H {
	return gin.H{
		"id":               tx.ID,
		"number":           tx.Number,
		"status":           tx.Status,
		"provider":         tx.Provider,
		"method":           tx.Method,
		"method_detail":    strVal(tx.MethodDetail),
		"amount":           tx.Amount.String(),
		"currency":         tx.Currency,
		"gateway_fee":      decVal(tx.GatewayFee),
		"net_amount":       decVal(tx.NetAmount),
		"refunded_amount":  tx.RefundedAmount.String(),
		"gateway_ref":      strVal(tx.GatewayRef),
		"failure_reason":   strVal(tx.FailureReason),
		"failure_code":     strVal(tx.FailureCode),
		"order_id":         strVal(tx.OrderID),
		"customer_id":      strVal(tx.CustomerID),
		"paid_at":          tx.PaidAt,
		"expires_at":       tx.ExpiresAt,
		"cod_collected_by": strVal(tx.CodCollectedBy),
		"cod_collected_at": tx.CodCollectedAt,
		"version":          tx.Version,
		"created_at":       tx.CreatedAt,
		"updated_at":       tx.UpdatedAt,
	}
}
