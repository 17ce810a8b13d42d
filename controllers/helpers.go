package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/openforum/forum/middleware"
	"github.com/openforum/forum/models"
	"github.com/openforum/forum/store"
	"github.com/openforum/forum/utils"
)

// parseID reads a positive numeric path parameter, answering 400 when it is not one.
func parseID(ctx *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(ctx.Param(name), 10, 64)
	if err != nil || id == 0 {
		utils.Error(ctx, http.StatusBadRequest, 40010, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

func getUserID(ctx *gin.Context) (uint, bool) {
	id, ok := middleware.UserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
	}
	return id, ok
}

// sanitizeTitle strips markup from a submitted title, answering 400 when the
// title still spells out markup afterwards.
func sanitizeTitle(ctx *gin.Context, raw string) (string, bool) {
	title, err := utils.SanitizeTitle(raw)
	if err != nil {
		ve := &models.ValidationError{Field: "title", Message: err.Error()}
		utils.ErrorWithData(ctx, http.StatusBadRequest, 40020, ve.Error(), gin.H{"field": ve.Field})
		return "", false
	}
	return title, true
}

// respondStoreError maps store and validation errors onto API responses.
func respondStoreError(ctx *gin.Context, err error, action string) {
	var ve *models.ValidationError
	var iv *store.IntegrityViolation
	switch {
	case errors.As(err, &ve):
		utils.ErrorWithData(ctx, http.StatusBadRequest, 40020, ve.Error(), gin.H{"field": ve.Field})
	case errors.As(err, &iv):
		utils.ErrorWithData(ctx, http.StatusConflict, 40901, iv.Error(), iv)
	case errors.Is(err, store.ErrNotFound):
		utils.Error(ctx, http.StatusNotFound, 40400, "not found")
	case errors.Is(err, store.ErrNotSoftDeletable):
		utils.Error(ctx, http.StatusBadRequest, 40030, err.Error())
	default:
		utils.Sugar.Errorw("store operation failed", "action", action, "path", ctx.Request.URL.Path, "error", err)
		utils.Error(ctx, http.StatusInternalServerError, 50000, "failed to "+action)
	}
}
