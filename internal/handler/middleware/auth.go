package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"
	"github.com/yokitheyo/backdrop/internal/domain"
	"github.com/yokitheyo/backdrop/internal/dto"
)

const userIDKey = "user_id"

// AuthMiddleware requires "Authorization: Bearer <token>" and stores the
// verified subject in the context.
func AuthMiddleware(verifier domain.TokenVerifier) ginext.HandlerFunc {
	return func(c *ginext.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			unauthorized(c, "Missing bearer token")
			return
		}

		userID, err := verifier.Verify(token)
		if err != nil {
			zlog.Logger.Warn().
				Err(err).
				Str("path", c.Request.URL.Path).
				Str("client_ip", c.ClientIP()).
				Msg("authentication failed")
			msg := "Invalid token"
			if errors.Is(err, domain.ErrUnauthorized) {
				msg = strings.TrimPrefix(err.Error(), domain.ErrUnauthorized.Error()+": ")
			}
			unauthorized(c, msg)
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// UserID returns the subject stored by AuthMiddleware.
func UserID(c *ginext.Context) string {
	return c.GetString(userIDKey)
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(c *ginext.Context, msg string) {
	c.Header("WWW-Authenticate", `Bearer realm="backdrop"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{
		Error:   "unauthorized",
		Message: msg,
		Code:    http.StatusUnauthorized,
	})
}
