package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/openforum/forum/config"
	"github.com/openforum/forum/utils"
)

const (
	// ContextUserIDKey is the key used to store authenticated user ID in Gin context.
	ContextUserIDKey = "user_id"
	// ContextUsernameKey stores the username inside Gin context.
	ContextUsernameKey = "username"
	// ContextClaimsKey stores the parsed token claims.
	ContextClaimsKey = "claims"
	// TokenCookie carries the token for browser clients.
	TokenCookie = "auth_token"
)

// Authenticator verifies identity tokens issued for the identity store.
type Authenticator struct {
	Issuer    *utils.TokenIssuer
	Blacklist *utils.TokenBlacklist
	// LoginURL is where browsers without a session are sent.
	LoginURL string
}

// authenticate resolves the caller or returns an API error code and message.
func (a *Authenticator) authenticate(ctx *gin.Context) (*utils.Claims, int, string) {
	tokenString, _ := ctx.Cookie(TokenCookie)
	if authHeader := ctx.GetHeader("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return nil, 40102, "invalid authorization header format"
		}
		tokenString = parts[1]
	}

	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, 40101, "authentication required"
	}

	claims, err := a.Issuer.Parse(tokenString)
	if err != nil {
		return nil, 40105, "invalid token"
	}
	if a.Blacklist != nil && a.Blacklist.IsRevoked(ctx.Request.Context(), claims.ID) {
		return nil, 40104, "token revoked"
	}
	return claims, 0, ""
}

func setIdentity(ctx *gin.Context, claims *utils.Claims) {
	ctx.Set(ContextUserIDKey, claims.UserID)
	ctx.Set(ContextUsernameKey, claims.Username)
	ctx.Set(ContextClaimsKey, claims)
}

// AuthRequired ensures the request is authenticated via JWT.
func (a *Authenticator) AuthRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		claims, code, msg := a.authenticate(ctx)
		if claims == nil {
			utils.Error(ctx, http.StatusUnauthorized, code, msg)
			ctx.Abort()
			return
		}
		setIdentity(ctx, claims)
		ctx.Next()
	}
}

// LoginRequired is AuthRequired for pages: browsers asking for HTML are
// redirected to the login URL with a next parameter, other clients get 401.
func (a *Authenticator) LoginRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		claims, code, msg := a.authenticate(ctx)
		if claims == nil {
			if strings.Contains(ctx.GetHeader("Accept"), "text/html") && a.LoginURL != "" {
				ctx.Redirect(http.StatusFound, a.LoginURL+"?next="+url.QueryEscape(ctx.Request.URL.RequestURI()))
				ctx.Abort()
				return
			}
			utils.Error(ctx, http.StatusUnauthorized, code, msg)
			ctx.Abort()
			return
		}
		setIdentity(ctx, claims)
		ctx.Next()
	}
}

// AdminRequired lets through only callers listed as administrators. It must run after AuthRequired.
func AdminRequired(cfg config.AppConfig) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if !IsAdmin(ctx, cfg) {
			utils.Error(ctx, http.StatusForbidden, 40301, "admin privileges required")
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}

// IsAdmin reports whether the authenticated caller is an administrator.
func IsAdmin(ctx *gin.Context, cfg config.AppConfig) bool {
	return cfg.IsAdmin(ctx.GetString(ContextUsernameKey))
}

// UserID returns the authenticated caller's id.
func UserID(ctx *gin.Context) (uint, bool) {
	v, ok := ctx.Get(ContextUserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok && id != 0
}
