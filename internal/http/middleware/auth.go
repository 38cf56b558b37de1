package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/smallbiznis/teamdocs-auth/internal/session"
)

// SessionCookieName is the cookie carrying the signed session credential.
const SessionCookieName = "accessToken"

const ginUserIDKey = "session_user_id"

// Auth validates the session cookie on protected routes.
type Auth struct {
	Signer *session.Signer
}

// ValidateSession rejects requests without a valid session credential and
// stores the asserted user id in the Gin context.
func (a *Auth) ValidateSession(c *gin.Context) {
	token, err := c.Cookie(SessionCookieName)
	if err != nil || strings.TrimSpace(token) == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "error_description": "Session cookie missing."})
		return
	}

	userID, _, err := a.Signer.Validate(token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Session could not be verified."})
		return
	}

	c.Set(ginUserIDKey, userID)
	c.Next()
}

// SessionUserID extracts the validated user id stored by ValidateSession.
func SessionUserID(c *gin.Context) (int64, bool) {
	value, ok := c.Get(ginUserIDKey)
	if !ok {
		return 0, false
	}
	userID, ok := value.(int64)
	return userID, ok
}
