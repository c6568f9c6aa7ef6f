package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"instapilot/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// ConsumerConfig configures one stream consumer.
type ConsumerConfig struct {
	Stream    string        // Redis stream name
	Group     string        // consumer group name
	Consumer  string        // consumer name within the group
	BatchSize int64         // messages per read
	Block     time.Duration // how long to block waiting for new messages
	MinIdle   time.Duration // pending age before another consumer may claim
}

const defaultMinIdle = time.Minute

// Consumer reads tasks from one stream via a consumer group.
type Consumer struct {
	client *redis.Client
	cfg    ConsumerConfig
	log    *logger.Logger
}

func NewConsumer(client *redis.Client, cfg ConsumerConfig, log *logger.Logger) (*Consumer, error) {
	if cfg.MinIdle <= 0 {
		cfg.MinIdle = defaultMinIdle
	}
	c := &Consumer{client: client, cfg: cfg, log: log}
	if err := c.ensureGroup(context.Background()); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Consumer) ensureGroup(ctx context.Context) error {
	// Start the group at "0" so tasks enqueued before the first worker boot
	// are not lost.
	err := c.client.XGroupCreateMkStream(ctx, c.cfg.Stream, c.cfg.Group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("creating consumer group on %s: %w", c.cfg.Stream, err)
	}
	return nil
}

// Read blocks for up to cfg.Block and returns newly delivered tasks.
// Undecodable entries are acked and dropped so they cannot wedge the group.
func (c *Consumer) Read(ctx context.Context) ([]Message, error) {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		Streams:  []string{c.cfg.Stream, ">"},
		Count:    c.cfg.BatchSize,
		Block:    c.cfg.Block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading from %s: %w", c.cfg.Stream, err)
	}

	var messages []Message
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			parsed, parseErr := ParseMessage(msg)
			if parseErr != nil {
				if c.log != nil {
					c.log.Errorf("dropping unparseable task: %v", parseErr)
				}
				_ = c.Ack(ctx, msg.ID)
				continue
			}
			messages = append(messages, parsed)
		}
	}
	return messages, nil
}

// Reclaim takes over entries that were delivered but never acked, typically
// because the consumer that read them died before finishing. XReadGroup with
// ">" only ever returns fresh entries, so without claiming, a crashed
// worker's deliveries would sit in the pending list forever.
func (c *Consumer) Reclaim(ctx context.Context) ([]Message, error) {
	pending, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: c.cfg.Stream,
		Group:  c.cfg.Group,
		Idle:   c.cfg.MinIdle,
		Start:  "-",
		End:    "+",
		Count:  c.cfg.BatchSize,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("xpending (stream=%s): %w", c.cfg.Stream, err)
	}
	if len(pending) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(pending))
	for _, p := range pending {
		ids = append(ids, p.ID)
	}

	// MinIdle on the claim keeps two reclaimers from grabbing the same entry:
	// whoever claims first resets the idle clock and the other claim returns
	// nothing for that id.
	claimed, err := c.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   c.cfg.Stream,
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		MinIdle:  c.cfg.MinIdle,
		Messages: ids,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("xclaim (stream=%s): %w", c.cfg.Stream, err)
	}

	var messages []Message
	for _, msg := range claimed {
		parsed, parseErr := ParseMessage(msg)
		if parseErr != nil {
			if c.log != nil {
				c.log.Errorf("dropping unparseable reclaimed task: %v", parseErr)
			}
			_ = c.Ack(ctx, msg.ID)
			continue
		}
		messages = append(messages, parsed)
	}
	if len(messages) > 0 && c.log != nil {
		c.log.Infof("reclaimed %d stale task(s) on %s", len(messages), c.cfg.Stream)
	}
	return messages, nil
}

// Ack marks one delivery as handled.
func (c *Consumer) Ack(ctx context.Context, id string) error {
	if err := c.client.XAck(ctx, c.cfg.Stream, c.cfg.Group, id).Err(); err != nil {
		return fmt.Errorf("xack (stream=%s): %w", c.cfg.Stream, err)
	}
	return nil
}
