package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"instapilot/config"
	"instapilot/internal/dispatch"
	"instapilot/internal/executor"
	"instapilot/internal/instagram"
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT, os.Interrupt)
	defer stop()

	pool, err := database.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

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

	graph := instagram.NewClient(cfg.GraphAPIBaseURL, cfg.GraphAPIVersion)
	producer := queue.NewProducer(redisClient, l)
	scheduler := queue.NewScheduler(redisClient, producer, l)
	policy := dispatch.DefaultPolicy()

	events := dispatch.NewEventProcessor(accountRepo, automationRepo, actionLogRepo, producer, l)
	exec := executor.New(accountRepo, actionLogRepo, v, graph,
		time.Duration(cfg.DedupWindowHours)*time.Hour, l)

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "worker"
	}

	var wg sync.WaitGroup

	runStream := func(stream, group string, handle dispatch.HandlerFunc) {
		for i := 0; i < cfg.WorkerConcurrency; i++ {
			consumer, err := queue.NewConsumer(redisClient, queue.ConsumerConfig{
				Stream:    stream,
				Group:     group,
				Consumer:  fmt.Sprintf("%s-%d", hostname, i),
				BatchSize: 10,
				Block:     5 * time.Second,
				MinIdle:   time.Minute,
			}, l)
			if err != nil {
				log.Fatalf("Failed to create consumer for %s: %v", stream, err)
			}
			w := dispatch.NewWorker(consumer, scheduler, policy, handle, l)
			wg.Add(1)
			go func() {
				defer wg.Done()
				w.Run(ctx)
			}()
		}
	}

	runStream(queue.StreamEvents, "events-workers", events.Process)
	runStream(queue.StreamComments, "comment-workers", exec.Execute)
	runStream(queue.StreamMessages, "message-workers", exec.Execute)

	wg.Add(1)
	go func() {
		defer wg.Done()
		scheduler.Run(ctx)
	}()

	refresher := services.NewTokenRefresher(accountRepo, actionLogRepo, v, graph, l)
	wg.Add(1)
	go func() {
		defer wg.Done()
		refresher.Run(ctx)
	}()

	l.Infof("Worker started (concurrency=%d per stream)", cfg.WorkerConcurrency)
	<-ctx.Done()
	l.Infof("Shutdown signal received, draining workers...")
	wg.Wait()
	l.Infof("Worker stopped gracefully")
}
