package queue

import (
	"context"
	"fmt"

	"instapilot/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// Producer enqueues tasks onto their kind's stream.
type Producer interface {
	Enqueue(ctx context.Context, task Task) error
}

type redisProducer struct {
	client *redis.Client
	log    *logger.Logger
}

func NewProducer(client *redis.Client, log *logger.Logger) Producer {
	return &redisProducer{client: client, log: log}
}

// Enqueue persists the task on its stream. The XADD completing is the
// durability point; callers must not acknowledge upstream before it returns.
func (p *redisProducer) Enqueue(ctx context.Context, task Task) error {
	if task.Attempt <= 0 {
		task.Attempt = 1
	}

	values, err := taskValues(task)
	if err != nil {
		return err
	}

	stream := task.Kind.Stream()
	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: values,
	}).Err(); err != nil {
		return fmt.Errorf("enqueue %s: %w", task.Kind, err)
	}

	if p.log != nil {
		p.log.Debugf("enqueued %s task on %s (correlation_id=%s attempt=%d)",
			task.Kind, stream, task.CorrelationID, task.Attempt)
	}
	return nil
}
