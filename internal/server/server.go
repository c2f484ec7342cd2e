package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"medbridge/config"
	"medbridge/internal/handler"
	"medbridge/internal/middleware"
	"medbridge/internal/services"
	"medbridge/internal/transport/httpdto"
	"medbridge/internal/websocket"
	"medbridge/pkg/logger"

	"github.com/gin-gonic/gin"
)

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger
}

var (
	ReleaseMode = "release"
	DebugMode   = "debug"
	TestMode    = "test"
)

type Handlers struct {
	Pairing      *handler.PairingHandler
	Conversation *handler.ConversationHandler
	Message      *handler.MessageHandler
	Diagnostic   *handler.DiagnosticHandler
	Notification *handler.NotificationHandler
	Upload       *handler.UploadHandler
	User         *handler.UserHandler
	WebSocket    *websocket.Handler
}

// Dependencies are what the routes need beyond the handlers.
type Dependencies struct {
	Auth           *services.AuthService
	RequestLimiter middleware.RequestLimiter
	HealthCheck    func(ctx context.Context) error
}

func New(cfg *config.Config, l *logger.Logger) *Server {
	if cfg.AppMode == ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.AppMode == TestMode {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%s", cfg.AppPort),
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		engine: engine,
		config: cfg,
		logger: l,
	}
}

// Engine exposes the router, mainly for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) SetupRoutes(h *Handlers, deps Dependencies) {
	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(middleware.CORSMiddleware())
	s.engine.Use(middleware.LoggingMiddleware(s.logger))
	s.engine.Use(middleware.ErrorHandler(s.logger))

	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": "pong"}))
	})

	s.engine.GET("/health", func(c *gin.Context) {
		if deps.HealthCheck != nil {
			if err := deps.HealthCheck(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse(err.Error(), "UNHEALTHY"))
				return
			}
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"status": "healthy"}))
	})

	// The websocket authenticates from ?token= since browsers cannot set
	// headers on the upgrade request.
	s.engine.GET("/v1/ws", h.WebSocket.Connect)

	v1 := s.engine.Group("/v1", middleware.AuthMiddleware(deps.Auth, s.logger))

	requests := v1.Group("/requests")
	{
		send := []gin.HandlerFunc{h.Pairing.Send}
		if deps.RequestLimiter != nil {
			send = append([]gin.HandlerFunc{middleware.RequestRateLimitMiddleware(deps.RequestLimiter, s.logger)}, send...)
		}
		requests.POST("", send...)
		requests.DELETE("", h.Pairing.Cancel)
		requests.GET("/received", h.Pairing.Received)
		requests.GET("/sent", h.Pairing.Sent)
		requests.GET("/accepted", h.Pairing.Accepted)
		requests.GET("/:id", h.Pairing.Get)
		requests.POST("/:id/respond", h.Pairing.Respond)
	}

	conversations := v1.Group("/conversations")
	{
		conversations.GET("", h.Conversation.List)
		conversations.GET("/:id", h.Conversation.GetByID)
		conversations.GET("/:id/messages", h.Message.History)
		conversations.POST("/:id/close", h.Conversation.Close)
	}

	diagnostics := v1.Group("/diagnostics")
	{
		diagnostics.POST("", h.Diagnostic.Start)
		diagnostics.GET("", h.Diagnostic.List)
		diagnostics.GET("/:id", h.Diagnostic.Get)
		diagnostics.POST("/:id/turns", h.Diagnostic.AppendTurn)
		diagnostics.POST("/:id/ask", h.Diagnostic.Ask)
		diagnostics.POST("/:id/complete", h.Diagnostic.Complete)
		diagnostics.POST("/:id/assign", h.Diagnostic.Assign)
	}

	notifications := v1.Group("/notifications")
	{
		notifications.GET("", h.Notification.List)
		notifications.POST("/:id/read", h.Notification.MarkRead)
	}

	v1.POST("/uploads/presign", h.Upload.Presign)
	v1.GET("/uploads/url", h.Upload.ReadURL)

	users := v1.Group("/users")
	{
		users.GET("/me", h.User.Me)
		users.PUT("/me/push-token", h.User.UpdatePushToken)
		users.GET("/:id/presence", h.User.Presence)
	}
}

// Start serves until SIGINT or SIGTERM, then shuts down gracefully. onStop
// runs after the HTTP server has stopped accepting requests.
func (s *Server) Start(onStop func()) error {
	go func() {
		if s.logger != nil {
			s.logger.Infof("Starting the server on port %s...", s.config.AppPort)
		}
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if s.logger != nil {
				s.logger.Errorf("Error in starting the server: %s", err)
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	<-quit

	if s.logger != nil {
		s.logger.Infof("Quitting signal received.. Shutting down after 5 seconds")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	if onStop != nil {
		onStop()
	}
	if err != nil {
		if s.logger != nil {
			s.logger.Infof("Error in the graceful shutdown of the server: %s", err)
		}
		return err
	}

	if s.logger != nil {
		s.logger.Infof("Server stopped gracefully")
	}
	return nil
}
