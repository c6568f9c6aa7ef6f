package main

import (
	"context"
	"log"

	"instapilot/config"
	"instapilot/internal/handler"
	"instapilot/internal/queue"
	"instapilot/internal/redis"
	"instapilot/internal/repository"
	"instapilot/internal/server"
	"instapilot/internal/services"
	"instapilot/internal/vault"
	"instapilot/pkg/database"
	"instapilot/pkg/logger"
)

func main() {
	cfg := config.LoadConfig()

	mode := logger.DevelopmentMode
	if cfg.AppMode == server.ReleaseMode {
		mode = logger.ProductionMode
	}
	l := logger.New(mode)
	logger.SetGlobalLogger(l)

	ctx := context.Background()

	pool, err := database.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	if err := database.ApplyRawMigrations(ctx, pool, "migrations"); err != nil {
		log.Fatalf("Failed to apply migrations: %v", err)
	}

	redisClient := redis.NewClient(redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()

	v, err := vault.New(cfg.EncryptionKey)
	if err != nil {
		log.Fatalf("Failed to initialize credential vault: %v", err)
	}

	accountRepo := repository.NewAccountRepository(pool)
	automationRepo := repository.NewAutomationRepository(pool)
	actionLogRepo := repository.NewActionLogRepository(pool)

	producer := queue.NewProducer(redisClient, l)
	limiter := redis.NewRateLimiter(redisClient, redis.RateLimitConfig{
		AuthLimit:     cfg.RateLimitAuthPerMinute,
		AuthWindow:    redis.DefaultRateLimitConfig().AuthWindow,
		GeneralLimit:  cfg.RateLimitPerMinute,
		GeneralWindow: redis.DefaultRateLimitConfig().GeneralWindow,
	})

	automationSvc := services.NewAutomationService(automationRepo, accountRepo, services.TierLimitsFromConfig(cfg))
	accountSvc := services.NewAccountService(accountRepo, v)
	logSvc := services.NewLogService(actionLogRepo)

	handlers := &server.Handlers{
		Webhook:    handler.NewWebhookHandler(cfg, producer, l),
		Automation: handler.NewAutomationHandler(automationSvc),
		Account:    handler.NewAccountHandler(accountSvc),
		Logs:       handler.NewLogsHandler(logSvc),
	}

	srv := server.New(cfg, l)
	srv.SetupRoutes(handlers, limiter, pool)

	if err := srv.Start(); err != nil {
		log.Fatalf("Server exited with error: %v", err)
	}
}
