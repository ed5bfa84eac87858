package router

import (
	"context"
	"strings"

	"voice-beyond/companion/internal/api"
	"voice-beyond/companion/internal/ws"
	"voice-beyond/companion/pkg/di"
	"voice-beyond/companion/pkg/errors"
	"voice-beyond/companion/pkg/logger"
	"voice-beyond/companion/pkg/middleware"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Version is reported by the health endpoints.
var Version = "dev"

// Router is the main router for the application
type Router struct {
	Engine    *gin.Engine
	Container *di.Container
	Logger    *logger.Logger
	Hub       *ws.Hub
}

// New creates a new router with the given container. ctx bounds the
// rate limiter's background cleanup.
func New(ctx context.Context, container *di.Container) *Router {
	logger.SetGlobal(container.Logger)
	cfg := container.Config

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	engine.Use(middleware.RequestIDMiddleware())
	engine.Use(middleware.SessionIDMiddleware())
	engine.Use(logger.Middleware(container.Logger))
	engine.Use(errors.ErrorHandler())
	engine.Use(errors.RecoveryWithLogger())
	engine.Use(corsMiddleware(cfg.Server.AllowedOrigins))
	engine.Use(middleware.BodyLimit(cfg.Server.MaxBodySize))

	opts := middleware.DefaultRateLimiterOptions()
	if cfg.Server.RateLimit > 0 {
		opts.Limit = rate.Limit(cfg.Server.RateLimit)
	}
	if cfg.Server.RateLimitBurst > 0 {
		opts.Burst = cfg.Server.RateLimitBurst
	}
	rateLimiter := middleware.NewRateLimiter(container.Logger, opts)
	engine.Use(rateLimiter.Middleware(ctx))

	return &Router{
		Engine:    engine,
		Container: container,
		Logger:    container.Logger,
		Hub:       container.Hub,
	}
}

// SetupRoutes registers all application routes
func (r *Router) SetupRoutes() {
	c := r.Container

	authHandler := api.NewAuthHandler(c.Users, c.Sessions, r.Logger)
	userHandler := api.NewUserHandler(c.Users, c.Sessions)
	characterHandler := api.NewCharacterHandler(c.Characters, c.Users, r.Logger)
	chatHandler := api.NewChatHandler(c.Orchestrator, c.Sessions, c.Users)
	noticeHandler := api.NewNoticeHandler(c.Notifier)

	r.Hub.SetCommands(chatHandler)

	r.setupHealthRoutes()
	if c.Metrics != nil {
		r.Engine.GET("/metrics", gin.WrapH(c.Metrics.Handler))
	}
	if c.Config.Server.OpenAPISpec != "" {
		r.AddOpenAPIValidation(c.Config.Server.OpenAPISpec)
	}

	apiRoutes := r.Engine.Group("/api")

	authRoutes := apiRoutes.Group("/auth")
	{
		authRoutes.POST("/guest", authHandler.Guest)
		authRoutes.POST("/login", authHandler.Login)
		authRoutes.POST("/register", authHandler.Register)
		authRoutes.POST("/logout", userHandler.Logout)
		authRoutes.GET("/me", userHandler.Me)
	}

	characterRoutes := apiRoutes.Group("/characters")
	{
		characterRoutes.GET("", characterHandler.ListCharacters)
		characterRoutes.POST("", characterHandler.CreateCharacter)
		characterRoutes.GET("/pending-edit", characterHandler.PendingEdit)
		characterRoutes.GET("/:id", characterHandler.GetCharacter)
		characterRoutes.PUT("/:id", characterHandler.UpdateCharacter)
		characterRoutes.DELETE("/:id", characterHandler.DeleteCharacter)
		characterRoutes.POST("/:id/voice", characterHandler.UploadVoice)
		characterRoutes.POST("/:id/start", characterHandler.StartChat)
		characterRoutes.POST("/:id/edit", characterHandler.EditCharacter)
	}

	chatRoutes := apiRoutes.Group("/chat")
	{
		chatRoutes.POST("/select", chatHandler.SelectCharacter)
		chatRoutes.POST("/send", chatHandler.SendMessage)
		chatRoutes.GET("/transcript", chatHandler.Transcript)
	}

	apiRoutes.GET("/notices", noticeHandler.List)
	apiRoutes.DELETE("/notices/:id", noticeHandler.Dismiss)

	r.Engine.GET("/ws", func(ctx *gin.Context) {
		ws.ServeWs(r.Hub, ctx)
	})
}

// corsMiddleware echoes allowed origins and lets the UI read the session header.
func corsMiddleware(allowed []string) gin.HandlerFunc {
	allowAll := len(allowed) == 0
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		o = strings.TrimSpace(o)
		if o == "*" {
			allowAll = true
		}
		set[o] = true
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		switch {
		case origin == "":
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		case allowAll || set[origin]:
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Add("Vary", "Origin")
		}

		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept, Authorization, Origin, Upgrade, Connection, Cache-Control, "+middleware.SessionIDHeader+", "+middleware.RequestIDHeader)
		c.Writer.Header().Set("Access-Control-Expose-Headers", middleware.SessionIDHeader+", "+middleware.RequestIDHeader)
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
