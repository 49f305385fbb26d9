package auth

import "github.com/gin-gonic/gin"

// RegisterRoutes registers auth routes. /me sits behind the token middleware.
func RegisterRoutes(r *gin.RouterGroup, handler *Handler, tokens *TokenManager) {
	authGroup := r.Group("/auth")
	{
		authGroup.POST("/register", handler.Register)
		authGroup.POST("/login", handler.Login)
		authGroup.GET("/google/login", handler.GoogleLogin)
		authGroup.GET("/google/callback", handler.GoogleCallback)
		authGroup.GET("/me", Middleware(tokens), handler.Me)
	}
}
