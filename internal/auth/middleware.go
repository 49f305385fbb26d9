package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ClaimsKey is the gin context key holding the caller's *Claims
const ClaimsKey = "auth_claims"

// Middleware rejects requests without a valid session token. Browsers
// cannot set headers on websocket upgrades, so a token query parameter is
// accepted as well.
func Middleware(tokens *TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ExtractToken(c.Request)
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		claims, err := tokens.Parse(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		SetClaims(c, claims)
		c.Next()
	}
}

// RequireRole lets through only callers holding one of roles
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": FriendlyMessage(ErrUnauthorized)})
			return
		}
		for _, role := range roles {
			if claims.Role == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": FriendlyMessage(ErrForbidden)})
	}
}

func SetClaims(c *gin.Context, claims *Claims) {
	c.Set(ClaimsKey, claims)
}

func ClaimsFrom(c *gin.Context) (*Claims, bool) {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*Claims)
	return claims, ok && claims != nil
}

// MustClaims is for handlers mounted behind Middleware
func MustClaims(c *gin.Context) *Claims {
	claims, ok := ClaimsFrom(c)
	if !ok {
		panic("auth: claims missing from context")
	}
	return claims
}
