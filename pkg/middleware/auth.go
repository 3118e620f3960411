package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-chat/pkg/jwt"
	"github.com/weiawesome/wes-chat/pkg/log"
	"github.com/weiawesome/wes-chat/pkg/response"
)

const (
	UsernameKey    = "username"
	AuthHeaderKey  = "Authorization"
	BearerPrefix   = "Bearer "
	TokenQueryKey  = "token"
	UsernameHeader = "X-Username"
)

var (
	ErrMissingCredentials = errors.New("missing credentials")
	ErrInvalidFormat      = errors.New("invalid authorization format")
)

// AuthMiddleware resolves the acting username of a request. With a token
// manager it validates bearer tokens; without one it trusts the
// X-Username header (development mode).
type AuthMiddleware struct {
	tokens *jwt.Manager
}

// NewAuthMiddleware creates a new auth middleware. tokens may be nil.
func NewAuthMiddleware(tokens *jwt.Manager) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Enabled reports whether token validation is active.
func (m *AuthMiddleware) Enabled() bool {
	return m.tokens != nil
}

// Authenticate extracts the username from r.
// Tokens are read from the Authorization header or the token query
// parameter, the latter for WebSocket clients that cannot set headers.
func (m *AuthMiddleware) Authenticate(r *http.Request) (string, error) {
	if m.tokens == nil {
		name := strings.TrimSpace(r.Header.Get(UsernameHeader))
		if name == "" {
			return "", ErrMissingCredentials
		}
		return name, nil
	}

	token := r.URL.Query().Get(TokenQueryKey)
	if token == "" {
		authHeader := r.Header.Get(AuthHeaderKey)
		if authHeader == "" {
			return "", ErrMissingCredentials
		}
		if !strings.HasPrefix(authHeader, BearerPrefix) {
			return "", ErrInvalidFormat
		}
		token = strings.TrimPrefix(authHeader, BearerPrefix)
	}

	claims, err := m.tokens.ValidateToken(token)
	if err != nil {
		return "", err
	}
	return claims.Username, nil
}

// RequireAuth returns a Gin middleware that rejects unauthenticated requests.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		username, err := m.Authenticate(c.Request)
		if err != nil {
			response.Unauthorized(c, err.Error())
			c.Abort()
			return
		}

		c.Set(UsernameKey, username)
		c.Request = c.Request.WithContext(log.WithActor(c.Request.Context(), username))
		c.Next()
	}
}

// GetUsername extracts username from Gin context.
func GetUsername(c *gin.Context) string {
	if username, exists := c.Get(UsernameKey); exists {
		return username.(string)
	}
	return ""
}
