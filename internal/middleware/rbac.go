package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

// RequireRoles admits callers whose role is one of roles. Missing claims are 401;
// other roles get 403 with the accepted roles in the error details.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
		names = append(names, string(role))
	}
	forbidden := appErrors.ErrForbidden.WithDetail("allowed_roles", names)

	return func(c *gin.Context) {
		claims := ClaimsFrom(c)
		if claims == nil {
			abortWith(c, appErrors.ErrUnauthorized)
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			abortWith(c, forbidden.WithDetail("role", string(claims.Role)))
			return
		}
		c.Next()
	}
}
