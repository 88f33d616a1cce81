package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/umi-schedule-api/internal/models"
	appErrors "github.com/noah-isme/umi-schedule-api/pkg/errors"
	"github.com/noah-isme/umi-schedule-api/pkg/response"
)

// RequireRoles admits callers holding one of roles. SUPERADMIN is always
// admitted. Services repeat the check, so this only rejects early.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		actor, ok := CurrentActor(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if actor.Role == models.RoleSuperAdmin {
			c.Next()
			return
		}
		if _, ok := allowed[actor.Role]; ok {
			c.Next()
			return
		}

		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "insufficient permissions"))
		c.Abort()
	}
}
