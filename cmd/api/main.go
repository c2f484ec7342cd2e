package main

import (
	"context"
	"log"
	"time"

	"medbridge/config"
	"medbridge/internal/agent"
	"medbridge/internal/handler"
	"medbridge/internal/middleware"
	"medbridge/internal/push"
	"medbridge/internal/redis"
	"medbridge/internal/repository"
	"medbridge/internal/server"
	"medbridge/internal/services"
	"medbridge/internal/storage"
	"medbridge/internal/websocket"
	"medbridge/pkg/database"
	"medbridge/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadConfig()

	appLogger := logger.New(cfg.LogMode)
	logger.SetGlobalLogger(appLogger)
	defer appLogger.Sync()

	if err := database.Connect(cfg); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		log.Fatalf("Failed to apply migrations: %v", err)
	}
	db := database.DB

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis backs presence, rate limits and the identity cache. Without it
	// the service still runs, minus those.
	var (
		identityCache  *redis.IdentityCache
		presence       websocket.PresenceTracker
		presenceReader handler.PresenceReader
		msgLimiter     websocket.MessageLimiter
		reqLimiter     middleware.RequestLimiter
	)
	redisClient := redis.NewClient(redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()
	if err := redis.Ping(ctx, redisClient); err != nil {
		appLogger.Warn(ctx, "redis unavailable, running without presence, rate limits and identity cache", zap.Error(err))
	} else {
		identityCache = redis.NewIdentityCache(redisClient, cfg.IdentityTTL)
		store := redis.NewPresenceStore(redisClient, cfg.PresenceTTL)
		presence, presenceReader = store, store
		limiter := redis.NewRateLimiter(redisClient, redis.RateLimitConfig{
			MessageLimit: cfg.MessageRateLimit,
			RequestLimit: cfg.RequestRateLimit,
			Window:       cfg.RateLimitWindow,
		})
		msgLimiter, reqLimiter = limiter, limiter
	}

	var pushProvider push.Provider = push.NewLogProvider(appLogger)
	if cfg.PushEndpoint != "" {
		pushProvider = push.NewFCMProvider(cfg.PushEndpoint, cfg.PushServerToken, cfg.PushTimeout, appLogger)
	}

	var agentClient services.AgentClient
	if cfg.AIAgentURL != "" {
		agentClient = agent.NewClient(cfg.AIAgentURL, cfg.AIAgentTimeout, appLogger)
	}

	var mediaStore storage.MediaStore
	if cfg.S3Bucket != "" {
		s3Client, err := storage.NewClient(ctx, storage.S3Config{
			Region:     cfg.S3Region,
			Bucket:     cfg.S3Bucket,
			AccessKey:  cfg.S3AccessKey,
			SecretKey:  cfg.S3SecretKey,
			Endpoint:   cfg.S3Endpoint,
			PublicBase: cfg.S3PublicBase,
			PresignTTL: cfg.S3PresignTTL,
		})
		if err != nil {
			appLogger.Warn(ctx, "object storage disabled", zap.Error(err))
		} else {
			mediaStore = s3Client
		}
	}

	// Services
	authService := services.NewAuthService(cfg.JWTSecret)
	identityService := services.NewIdentityService(repository.NewUserRepository(db), identityCache, appLogger)
	notificationService := services.NewNotificationService(
		repository.NewNotificationRepository(db),
		identityService,
		pushProvider,
		appLogger,
		cfg.NotifyWorkers,
		cfg.NotifyQueueSize,
	)
	notificationService.Start()

	hub := websocket.NewHub(identityService, presence, appLogger)
	sequencer := websocket.NewSequencer(hub, 0, appLogger)
	go sequencer.RunPruner(ctx, time.Minute, 10*time.Minute)
	go hub.RunPresenceRefresher(ctx, cfg.PresenceTTL/2)

	conversationService := services.NewConversationService(db, identityService, appLogger)
	pairingService := services.NewPairingService(db, conversationService, identityService, notificationService, appLogger)
	messageService := services.NewMessageService(db, identityService, sequencer, notificationService, appLogger)
	diagnosticService := services.NewDiagnosticService(db, identityService, agentClient, notificationService, appLogger)
	uploadService := services.NewUploadService(mediaStore)

	srv := server.New(cfg, appLogger)
	srv.SetupRoutes(&server.Handlers{
		Pairing:      handler.NewPairingHandler(pairingService),
		Conversation: handler.NewConversationHandler(conversationService),
		Message:      handler.NewMessageHandler(messageService),
		Diagnostic:   handler.NewDiagnosticHandler(diagnosticService),
		Notification: handler.NewNotificationHandler(notificationService),
		Upload:       handler.NewUploadHandler(uploadService),
		User:         handler.NewUserHandler(identityService, presenceReader),
		WebSocket:    websocket.NewHandler(authService, hub, messageService, msgLimiter, appLogger),
	}, server.Dependencies{
		Auth:           authService,
		RequestLimiter: reqLimiter,
		HealthCheck:    database.HealthCheck,
	})

	if err := srv.Start(func() {
		cancel()
		hub.CloseAll()
		notificationService.Stop()
	}); err != nil {
		log.Printf("Server stopped with error: %v", err)
	}
}
