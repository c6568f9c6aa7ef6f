package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"instapilot/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// Scheduler parks failed tasks in a ZSET scored by ready time and moves them
// back onto their stream once the retry delay has elapsed. Keeping the parked
// task in Redis (rather than an in-process timer) preserves at-least-once
// delivery across worker restarts.
type Scheduler struct {
	client    *redis.Client
	producer  Producer
	interval  time.Duration
	batchSize int64
	log       *logger.Logger
}

func NewScheduler(client *redis.Client, producer Producer, log *logger.Logger) *Scheduler {
	return &Scheduler{
		client:    client,
		producer:  producer,
		interval:  time.Second,
		batchSize: 100,
		log:       log,
	}
}

// Schedule parks the task until readyAt.
func (s *Scheduler) Schedule(ctx context.Context, task Task, readyAt time.Time) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal retry task: %w", err)
	}
	if err := s.client.ZAdd(ctx, retryKey, redis.Z{
		Score:  float64(readyAt.UnixMilli()),
		Member: string(payload),
	}).Err(); err != nil {
		return fmt.Errorf("schedule retry: %w", err)
	}
	return nil
}

// Run drains due tasks on a ticker until the context is canceled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.drainDue(ctx)
		}
	}
}

func (s *Scheduler) drainDue(ctx context.Context) {
	now := time.Now().UnixMilli()
	members, err := s.client.ZRangeByScore(ctx, retryKey, &redis.ZRangeBy{
		Min:   "0",
		Max:   fmt.Sprintf("%d", now),
		Count: s.batchSize,
	}).Result()
	if err != nil {
		if s.log != nil {
			s.log.Errorf("reading due retry tasks: %v", err)
		}
		return
	}
	if len(members) == 0 {
		return
	}

	for _, member := range members {
		// ZREM before re-enqueue: with several schedulers running, only the
		// one that removes the member re-enqueues it.
		removed, err := s.client.ZRem(ctx, retryKey, member).Result()
		if err != nil || removed == 0 {
			continue
		}

		var task Task
		if err := json.Unmarshal([]byte(member), &task); err != nil {
			if s.log != nil {
				s.log.Errorf("dropping undecodable retry entry: %v", err)
			}
			continue
		}

		if err := s.producer.Enqueue(ctx, task); err != nil {
			// Put it back; it will be retried on a later tick.
			_ = s.client.ZAdd(ctx, retryKey, redis.Z{
				Score:  float64(now),
				Member: member,
			}).Err()
			if s.log != nil {
				s.log.Errorf("re-enqueue of retry task failed: %v", err)
			}
		}
	}
}
