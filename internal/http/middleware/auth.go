package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/theseyan/418-nits-hacks/internal/service"
)

const userIDKey = "authUserID"

// Auth validates the Authorization header and attaches the user id.
type Auth struct {
	AuthService *service.AuthService
}

// NewAuth constructs the middleware.
func NewAuth(auth *service.AuthService) *Auth {
	return &Auth{AuthService: auth}
}

// RequireAccessToken ensures the request carries a valid bearer access token.
// Every failure mode gets the same 401 body; callers learn nothing about why
// a token was rejected.
func (m *Auth) RequireAccessToken(c *gin.Context) {
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		abortUnauthorized(c)
		return
	}

	userID, err := m.AuthService.VerifyAccessToken(c.Request.Context(), parts[1])
	if err != nil {
		abortUnauthorized(c)
		return
	}

	c.Set(userIDKey, userID)
	c.Next()
}

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"code":    "E_UNAUTHORIZED",
		"message": "Invalid or expired access token",
	})
}

// GetUserID exposes the verified user id to handlers.
func GetUserID(c *gin.Context) (string, bool) {
	value, ok := c.Get(userIDKey)
	if !ok {
		return "", false
	}
	id, ok := value.(string)
	return id, ok
}
