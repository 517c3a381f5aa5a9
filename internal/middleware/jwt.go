package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
)

const (
	// ContextKeyClaims is the Gin context key for JWT claims.
	ContextKeyClaims = "claims"
	// ContextKeyPrincipal is the Gin context key for the caller identity.
	ContextKeyPrincipal = "principal"
)

// TokenValidator verifies identity provider tokens.
type TokenValidator interface {
	ValidateToken(tokenStr string) (*service.Claims, error)
}

// RequireJWT validates a JWT from the Authorization header, falling back to
// the ?token= query parameter for EventSource and WebSocket clients which
// cannot send headers.
func RequireJWT(auth TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := extractToken(c)
		if tokenStr == "" {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		claims, err := auth.ValidateToken(tokenStr)
		if err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
			return
		}

		c.Set(ContextKeyClaims, claims)
		c.Set(ContextKeyPrincipal, claims.Principal())
		c.Next()
	}
}

// GetClaims retrieves the JWT claims from the Gin context.
func GetClaims(c *gin.Context) *service.Claims {
	val, exists := c.Get(ContextKeyClaims)
	if !exists {
		return nil
	}
	claims, ok := val.(*service.Claims)
	if !ok {
		return nil
	}
	return claims
}

// GetPrincipal retrieves the authenticated caller from the Gin context.
func GetPrincipal(c *gin.Context) *model.Principal {
	val, exists := c.Get(ContextKeyPrincipal)
	if !exists {
		return nil
	}
	p, ok := val.(*model.Principal)
	if !ok {
		return nil
	}
	return p
}

func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	return c.Query("token")
}

// rateKey identifies the caller for rate limiting: the principal when
// authenticated, otherwise the client IP.
func rateKey(c *gin.Context) string {
	if p := GetPrincipal(c); p != nil {
		return principalString(p)
	}
	return "ip:" + c.ClientIP()
}

func principalString(p *model.Principal) string {
	if p == nil {
		return "anonymous"
	}
	return fmt.Sprintf("%s:%d", p.Role, p.UserID)
}
