package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Greeting is the body served to authenticated callers of the landing page.
const Greeting = "hello, world"

// HelloWorld answers authenticated callers with a fixed greeting.
func HelloWorld(ctx *gin.Context) {
	ctx.String(http.StatusOK, Greeting)
}
