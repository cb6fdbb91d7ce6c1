package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/NOIR-Solution/noir-payments/internal/http/middleware"
	"github.com/NOIR-Solution/noir-payments/internal/modules/payments"
)

type NotificationHandler struct {
	Logger   *slog.Logger
	Payments *payments.Service
}

func NewNotificationHandler(logger *slog.Logger, svc *payments.Service) *NotificationHandler {
	return &NotificationHandler{Logger: logger, Payments: svc}
}

type notificationRequest struct {
	// Either the internal transaction id or the gateway-side reference must
	// identify the transaction.
	TransactionID string `json:"transaction_id"`
	GatewayRef    string `json:"gateway_ref"`
	Outcome       string `json:"outcome" binding:"required,oneof=paid failed requires_action"`
	FailureReason string `json:"failure_reason"`
	FailureCode   string `json:"failure_code"`
}

// POST /api/payments/notifications/:provider
//
// Applies an asynchronous gateway outcome. Duplicate redelivery of a
// confirmation the transaction already absorbed answers 200 without a write,
// so gateways can retry freely.
func (h *NotificationHandler) Handle(c *gin.Context) {
	var req notificationRequest
	if !bindJSON(c, &req) {
		return
	}

	tx, err := h.Payments.ApplyNotification(c.Request.Context(), payments.NotificationInput{
		TransactionID: req.TransactionID,
		Provider:      c.Param("provider"),
		GatewayRef:    req.GatewayRef,
		Outcome:       payments.NotificationOutcome(req.Outcome),
		FailureReason: req.FailureReason,
		FailureCode:   req.FailureCode,
	})
	if err != nil {
		middleware.Fail(c, mapDomainErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": txResponse(tx)})
}
