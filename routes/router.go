package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/openforum/forum/config"
	"github.com/openforum/forum/controllers"
	"github.com/openforum/forum/middleware"
	"github.com/openforum/forum/schema"
	"github.com/openforum/forum/store"
	"github.com/openforum/forum/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(cfg config.AppConfig, st *store.Store, auth *middleware.Authenticator) *gin.Engine {
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Access log goes to its own rolling file; the level follows the application's.
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, false))
	} else {
		utils.Sugar.Warnw("gin logger unavailable, using default recovery", "path", cfg.GinPath, "error", err)
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
		// cors refuses wildcard origins together with credentials
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/", auth.LoginRequired(), controllers.HelloWorld)
	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	authController := controllers.NewAuthController(st, auth, cfg)
	forumController := controllers.NewForumController(st, cfg)

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware(cfg.RateLimitPerMinute))
	authGroup.POST("/register", authController.Register)
	authGroup.POST("/login", authController.Login)
	authGroup.POST("/logout", auth.AuthRequired(), authController.Logout)
	authGroup.GET("/me", auth.AuthRequired(), authController.Me)

	protected := api.Group("")
	protected.Use(auth.AuthRequired(), middleware.RateLimitMiddleware(cfg.RateLimitPerMinute))

	protected.GET("/topics", forumController.ListTopics)
	protected.POST("/topics", forumController.CreateTopic)
	protected.GET("/topics/:id", forumController.GetTopic)
	protected.GET("/topics/:id/questions", forumController.ListQuestions)
	protected.POST("/topics/:id/questions", forumController.CreateQuestion)

	protected.GET("/questions/:id", forumController.GetQuestion)
	protected.POST("/questions/:id/responses", forumController.CreateResponse)
	protected.POST("/questions/:id/upvotes", forumController.UpvoteQuestion)
	protected.POST("/questions/:id/tags", forumController.TagUser)
	protected.POST("/responses/:id/upvotes", forumController.UpvoteResponse)
	protected.POST("/nominations", forumController.Nominate)

	protected.DELETE("/questions/:id", forumController.SoftDelete(schema.QuestionTable))
	protected.DELETE("/responses/:id", forumController.SoftDelete(schema.ResponseTable))
	protected.DELETE("/question-upvotes/:id", forumController.SoftDelete(schema.QuestionUpVoteTable))
	protected.DELETE("/response-upvotes/:id", forumController.SoftDelete(schema.ResponseUpVoteTable))
	protected.DELETE("/tags/:id", forumController.SoftDelete(schema.TagTable))
	protected.DELETE("/nominations/:id", forumController.SoftDelete(schema.NominationTable))

	admin := protected.Group("/admin")
	admin.Use(middleware.AdminRequired(cfg))
	admin.POST("/topics/:id/approve", forumController.ApproveTopic)
	admin.DELETE("/topics/:id", forumController.DeleteTopic)
	admin.DELETE("/questions/:id", forumController.DeleteQuestion)
	admin.DELETE("/users/:id", authController.DeleteUser)

	r.NoRoute(func(ctx *gin.Context) {
		if strings.HasPrefix(ctx.Request.URL.Path, "/api/") {
			utils.Error(ctx, http.StatusNotFound, 40400, "api route not found")
			return
		}
		utils.Error(ctx, http.StatusNotFound, 40401, "not found")
	})

	return r
}
