package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/NOIR-Solution/noir-payments/internal/http/middleware"
	"github.com/NOIR-Solution/noir-payments/internal/modules/gateways"
	"github.com/NOIR-Solution/noir-payments/internal/modules/payments"
	"github.com/NOIR-Solution/noir-payments/internal/shared/tenant"
)

type GatewayHandler struct {
	Logger   *slog.Logger
	Gateways *gateways.Service
	Payments *payments.Service
}

func NewGatewayHandler(logger *slog.Logger, gw *gateways.Service, pay *payments.Service) *GatewayHandler {
	return &GatewayHandler{Logger: logger, Gateways: gw, Payments: pay}
}

type upsertGatewayRequest struct {
	Provider          string            `json:"provider" binding:"required"`
	DisplayName       string            `json:"display_name" binding:"required"`
	Active            bool              `json:"active"`
	Environment       string            `json:"environment" binding:"required,oneof=sandbox live"`
	Credentials       map[string]string `json:"credentials"`
	WebhookURL        string            `json:"webhook_url" binding:"omitempty,url"`
	MinAmount         string            `json:"min_amount" binding:"required"`
	MaxAmount         string            `json:"max_amount" binding:"required"`
	Currencies        string            `json:"currencies" binding:"required"`
	LinkExpiryMinutes int               `json:"link_expiry_minutes"`
}

func (h *GatewayHandler) upsertInput(c *gin.Context, req upsertGatewayRequest) (gateways.UpsertInput, bool) {
	minAmount, ok := parseAmount(c, req.MinAmount)
	if !ok {
		return gateways.UpsertInput{}, false
	}
	maxAmount, ok := parseAmount(c, req.MaxAmount)
	if !ok {
		return gateways.UpsertInput{}, false
	}
	return gateways.UpsertInput{
		Provider:          req.Provider,
		DisplayName:       req.DisplayName,
		Active:            req.Active,
		Environment:       gateways.Environment(req.Environment),
		Credentials:       req.Credentials,
		WebhookURL:        req.WebhookURL,
		MinAmount:         minAmount,
		MaxAmount:         maxAmount,
		Currencies:        req.Currencies,
		LinkExpiryMinutes: req.LinkExpiryMinutes,
	}, true
}

// GET /api/gateways
func (h *GatewayHandler) List(c *gin.Context) {
	tenantID, ok := tenant.FromContext(c.Request.Context())
	if !ok {
		middleware.Fail(c, mapDomainErr(payments.ErrNoTenant))
		return
	}
	cfgs, err := h.Gateways.List(c.Request.Context(), tenantID)
	if err != nil {
		middleware.Fail(c, mapDomainErr(err))
		return
	}
	out := make([]gin.H, 0, len(cfgs))
	for i := range cfgs {
		out = append(out, gatewayResponse(&cfgs[i]))
	}
	c.JSON(http.StatusOK, gin.H{"gateways": out})
}

// GET /api/gateways/:id
func (h *GatewayHandler) Get(c *gin.Context) {
	tenantID, ok := tenant.FromContext(c.Request.Context())
	if !ok {
		middleware.Fail(c, mapDomainErr(payments.ErrNoTenant))
		return
	}
	cfg, err := h.Gateways.GetByID(c.Request.Context(), tenantID, c.Param("id"))
	if err != nil {
		middleware.Fail(c, mapDomainErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"gateway": gatewayResponse(cfg)})
}

// POST /api/gateways
func (h *GatewayHandler) Create(c *gin.Context) {
	tenantID, ok := tenant.FromContext(c.Request.Context())
	if !ok {
		middleware.Fail(c, mapDomainErr(payments.ErrNoTenant))
		return
	}
	var req upsertGatewayRequest
	if !bindJSON(c, &req) {
		return
	}
	in, ok := h.upsertInput(c, req)
	if !ok {
		return
	}
	cfg, err := h.Gateways.Create(c.Request.Context(), tenantID, in)
	if err != nil {
		middleware.Fail(c, mapDomainErr(err))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"gateway": gatewayResponse(cfg)})
}

// PUT /api/gateways/:id
func (h *GatewayHandler) Update(c *gin.Context) {
	tenantID, ok := tenant.FromContext(c.Request.Context())
	if !ok {
		middleware.Fail(c, mapDomainErr(payments.ErrNoTenant))
		return
	}
	var req upsertGatewayRequest
	if !bindJSON(c, &req) {
		return
	}
	in, ok := h.upsertInput(c, req)
	if !ok {
		return
	}
	cfg, err := h.Gateways.Update(c.Request.Context(), tenantID, c.Param("id"), in)
	if err != nil {
		middleware.Fail(c, mapDomainErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"gateway": gatewayResponse(cfg)})
}

// POST /api/providers/:provider/health
func (h *GatewayHandler) Health(c *gin.Context) {
	healthy, err := h.Payments.CheckGatewayHealth(c.Request.Context(), c.Param("provider"))
	if err != nil {
		middleware.Fail(c, mapDomainErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"provider": c.Param("provider"), "healthy": healthy})
}

// gatewayResponse never includes credentials, encrypted or otherwise.
func gatewayResponse(cfg *gateways.Config) gin.H {
	return gin.H{
		"id":                  cfg.ID,
		"provider":            cfg.Provider,
		"display_name":        cfg.DisplayName,
		"active":              cfg.Active,
		"environment":         cfg.Environment,
		"webhook_url":         strVal(cfg.WebhookURL),
		"min_amount":          cfg.MinAmount.String(),
		"max_amount":          cfg.MaxAmount.String(),
		"currencies":          cfg.Currencies,
		"link_expiry_minutes": cfg.LinkExpiryMinutes,
		"healthy":             cfg.Healthy,
		"last_health_at":      cfg.LastHealthAt,
		"version":             cfg.Version,
		"created_at":          cfg.CreatedAt,
		"updated_at":          cfg.UpdatedAt,
	}
}
