// Package bus mirrors hub frames onto a Redis Stream so out-of-process
// consumers can tail the event feed. Delivery is best-effort: the hub's
// websocket fan-out never waits on Redis.
package bus

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis Streams publisher settings
type Config struct {
	Addr     string
	Password string
	DB       int
	Stream   string
}

// Publisher appends event frames to a Redis Stream with XADD
type Publisher struct {
	rdb    *redis.Client
	stream string
	queue  chan entry
	stopCh chan struct{}
	logger *slog.Logger
}

type entry struct {
	frameType string
	frame     []byte
}

// NewPublisher connects to Redis and starts the drain worker
func NewPublisher(cfg Config, logger *slog.Logger) (*Publisher, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	stream := cfg.Stream
	if stream == "" {
		stream = "forge.events"
	}

	p := &Publisher{
		rdb:    rdb,
		stream: stream,
		queue:  make(chan entry, 256),
		stopCh: make(chan struct{}),
		logger: logger,
	}
	go p.drain()
	return p, nil
}

// Publish enqueues one frame. Never blocks; frames are dropped when the
// queue is full.
func (p *Publisher) Publish(frameType string, frame []byte) {
	select {
	case p.queue <- entry{frameType: frameType, frame: frame}:
	default:
		p.logger.Warn("event mirror queue full, dropping frame", "type", frameType)
	}
}

func (p *Publisher) drain() {
	for {
		select {
		case <-p.stopCh:
			return
		case e := <-p.queue:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := p.rdb.XAdd(ctx, &redis.XAddArgs{
				Stream: p.stream,
				Values: map[string]interface{}{
					"event_type": e.frameType,
					"frame":      string(e.frame),
				},
			}).Err()
			cancel()
			if err != nil {
				p.logger.Warn("xadd failed", "type", e.frameType, "error", err)
			}
		}
	}
}

// Close stops the worker and closes the Redis connection
func (p *Publisher) Close() error {
	close(p.stopCh)
	return p.rdb.Close()
}
