package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/openforum/forum/config"
	"github.com/openforum/forum/middleware"
	"github.com/openforum/forum/models"
	"github.com/openforum/forum/store"
	"github.com/openforum/forum/utils"
)

// AuthController fronts the identity store: local accounts, tokens and user removal.
type AuthController struct {
	store *store.Store
	auth  *middleware.Authenticator
	cfg   config.AppConfig
}

// NewAuthController creates an AuthController.
func NewAuthController(st *store.Store, auth *middleware.Authenticator, cfg config.AppConfig) *AuthController {
	return &AuthController{store: st, auth: auth, cfg: cfg}
}

// Register handles local account registration with bcrypt hashing.
func (a *AuthController) Register(ctx *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required,min=6"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if errors.Is(err, utils.ErrPasswordTooLong) {
		utils.Error(ctx, http.StatusBadRequest, 40002, err.Error())
		return
	}
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50001, "failed to hash password")
		return
	}

	user := models.User{Username: strings.TrimSpace(req.Username), PasswordHash: hash}
	if err := a.store.CreateUser(ctx.Request.Context(), &user); err != nil {
		respondStoreError(ctx, err, "register user")
		return
	}
	utils.Created(ctx, a.userResponse(user))
}

// Login verifies user credentials and issues a JWT.
func (a *AuthController) Login(ctx *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40003, "invalid request payload")
		return
	}

	user, err := a.store.FindUserByUsername(ctx.Request.Context(), strings.TrimSpace(req.Username))
	if err != nil || !utils.CheckPassword(user.PasswordHash, req.Password) {
		utils.Error(ctx, http.StatusUnauthorized, 40106, "invalid username or password")
		return
	}

	token, claims, err := a.auth.Issuer.Generate(user.ID, user.Username)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50004, "failed to generate token")
		return
	}
	maxAge := int(time.Until(claims.ExpiresAt.Time).Seconds())
	ctx.SetCookie(middleware.TokenCookie, token, maxAge, "/", "", false, true)

	utils.Success(ctx, gin.H{
		"token": token,
		"user":  a.userResponse(*user),
	})
}

// Logout invalidates the token by blacklisting it until expiration.
func (a *AuthController) Logout(ctx *gin.Context) {
	v, _ := ctx.Get(middleware.ContextClaimsKey)
	claims, ok := v.(*utils.Claims)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40107, "unauthorized")
		return
	}

	expiresAt := time.Now().Add(time.Duration(a.cfg.TokenTTLHours) * time.Hour)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	if err := a.auth.Blacklist.Revoke(ctx.Request.Context(), claims.ID, expiresAt); err != nil {
		utils.Sugar.Errorw("token revoke failed", "user_id", claims.UserID, "error", err)
		utils.Error(ctx, http.StatusInternalServerError, 50005, "failed to revoke token")
		return
	}
	ctx.SetCookie(middleware.TokenCookie, "", -1, "/", "", false, true)
	utils.Success(ctx, gin.H{"message": "logged out"})
}

// Me returns the current authenticated user's information.
func (a *AuthController) Me(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		return
	}
	user, err := a.store.GetUser(ctx.Request.Context(), userID)
	if err != nil {
		respondStoreError(ctx, err, "load user")
		return
	}
	utils.Success(ctx, a.userResponse(*user))
}

// DeleteUser removes a user from the identity store. Users still referenced
// by forum rows are refused with 409 and the list of references.
func (a *AuthController) DeleteUser(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	if err := a.store.DeleteUser(ctx.Request.Context(), id); err != nil {
		respondStoreError(ctx, err, "delete user")
		return
	}
	utils.Sugar.Infow("user deleted", "user_id", id, "by", ctx.GetString(middleware.ContextUsernameKey))
	utils.Success(ctx, gin.H{"message": "user deleted"})
}

func (a *AuthController) userResponse(user models.User) gin.H {
	return gin.H{
		"id":         user.ID,
		"username":   user.Username,
		"created_at": user.CreatedAt,
		"is_admin":   a.cfg.IsAdmin(user.Username),
	}
}
