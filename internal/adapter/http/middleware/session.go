package middleware

import (
	"identityapp/internal/adapter/http/helper"
	"identityapp/internal/core/domain"
	"identityapp/internal/core/port"
	"identityapp/pkg/config"
	ct "identityapp/pkg/context"

	"github.com/gin-gonic/gin"
)

// SessionMiddleware admits requests carrying the bearer token of a live
// session and exposes the account id under config.UserIDKey.
func SessionMiddleware(svc port.IdentityService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := helper.BearerToken(c)

		if !ok {
			helper.SendUnauthorizedError(c, domain.ErrInvalidToken.Error())
			return
		}

		userID, err := svc.Authenticate(c.Request.Context(), token)

		if err != nil {
			helper.SendServiceError(c, err)
			return
		}

		c.Set(config.UserIDKey, userID)
		GetCurrent(c).Set(ct.UserIDKey, userID)

		c.Next()
	}
}
