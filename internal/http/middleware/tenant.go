package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/NOIR-Solution/noir-payments/internal/shared/apperr"
	"github.com/NOIR-Solution/noir-payments/internal/shared/tenant"
)

const HeaderTenantID = "X-Tenant-ID"

// Tenant requires the tenant header on every API request and puts the id on
// the request context, where the services read it. Every database lookup is
// scoped by it; there is no cross-tenant code path.
func Tenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderTenantID)
		if id == "" {
			Fail(c, &apperr.AppError{Kind: apperr.Unauthorized, PublicMsg: "X-Tenant-ID header is required."})
			return
		}

		ctx := tenant.WithID(c.Request.Context(), id)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
