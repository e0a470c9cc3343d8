package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shelf-sh/shelf/internal/server/auth"
)

const (
	bearerPrefix = "Bearer "
	authHeader   = "Authorization"

	// IdentityContextKey is where the authenticated identity lives in the
	// gin context.
	IdentityContextKey = "identity"
)

// TokenAuth validates the bearer token and stores the identity for
// handlers. Authorization against a specific project happens in the
// handlers, which know which project a request touches.
func TokenAuth(authService *auth.AuthService) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token := extractBearer(ctx)
		if token == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing bearer token",
			})
			return
		}

		identity, err := authService.Authenticate(ctx.Request.Context(), token)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": err.Error(),
			})
			return
		}

		ctx.Set(IdentityContextKey, identity)
		ctx.Next()
	}
}

// AdminAuth additionally requires the admin identity. Project and token
// administration routes sit behind this.
func AdminAuth() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		identity := GetIdentity(ctx)
		if identity == nil || !identity.Admin {
			ctx.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "admin access required",
			})
			return
		}
		ctx.Next()
	}
}

// GetIdentity returns the authenticated identity or nil.
func GetIdentity(ctx *gin.Context) *auth.Identity {
	v, ok := ctx.Get(IdentityContextKey)
	if !ok {
		return nil
	}
	identity, _ := v.(*auth.Identity)
	return identity
}

func extractBearer(ctx *gin.Context) string {
	value := ctx.GetHeader(authHeader)
	if !strings.HasPrefix(value, bearerPrefix) {
		return ""
	}
	return strings.TrimPrefix(value, bearerPrefix)
}
