package auth

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/magnecruit/backend/internal/store"
)

const userContextKey = "auth.user"

// RequireAuth rejects requests without a valid session. The token is read
// from the session cookie, falling back to a bearer Authorization header for
// non-browser clients.
func (s *Service) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := s.Verify(c.Request.Context(), TokenFromRequest(c))
		if err != nil {
			c.AbortWithStatusJSON(401, gin.H{"error": "authentication required"})
			return
		}
		c.Set(userContextKey, user)
		c.Next()
	}
}

// TokenFromRequest extracts the session token from a request.
func TokenFromRequest(c *gin.Context) string {
	if cookie, err := c.Cookie(CookieName); err == nil && cookie != "" {
		return cookie
	}
	header := c.GetHeader("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return token
	}
	return ""
}

// CurrentUser returns the authenticated user set by RequireAuth.
func CurrentUser(c *gin.Context) (*store.User, bool) {
	value, ok := c.Get(userContextKey)
	if !ok {
		return nil, false
	}
	user, ok := value.(*store.User)
	return user, ok
}
