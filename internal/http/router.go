package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/NOIR-Solution/noir-payments/internal/http/handlers"
	"github.com/NOIR-Solution/noir-payments/internal/http/middleware"
	"github.com/NOIR-Solution/noir-payments/internal/modules/gateways"
	"github.com/NOIR-Solution/noir-payments/internal/modules/payments"
)

type RouterDeps struct {
	Logger   *slog.Logger
	Payments *payments.Service
	Refunds  *payments.RefundService
	Gateways *gateways.Service
}

func NewRouter(d RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.Logger(d.Logger),
		middleware.Recovery(d.Logger),
		middleware.ErrorHandler(d.Logger),
	)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	pay := handlers.NewPaymentHandler(d.Logger, d.Payments)
	ref := handlers.NewRefundHandler(d.Logger, d.Refunds)
	gw := handlers.NewGatewayHandler(d.Logger, d.Gateways, d.Payments)
	notif := handlers.NewNotificationHandler(d.Logger, d.Payments)

	api := r.Group("/api", middleware.Tenant())
	{
		api.POST("/payments", pay.Create)
		api.GET("/payments/:id", pay.Get)
		api.POST("/payments/:id/cancel", pay.Cancel)
		api.POST("/payments/:id/cod-collected", pay.CodCollected)
		api.POST("/payments/notifications/:provider", notif.Handle)

		api.POST("/payments/:id/refunds", ref.Create)
		api.GET("/refunds/:id", ref.Get)
		api.POST("/refunds/:id/approve", ref.Approve)
		api.POST("/refunds/:id/complete", ref.Complete)
		api.POST("/refunds/:id/reject", ref.Reject)

		api.GET("/gateways", gw.List)
		api.POST("/gateways", gw.Create)
		api.GET("/gateways/:id", gw.Get)
		api.PUT("/gateways/:id", gw.Update)
		api.POST("/providers/:provider/health", gw.Health)
	}

	return r
}
