package store

import (
	"context"
	"fmt"

	"trueface/internal/config"
	"trueface/internal/queue"
)

// OpenQueue opens the event queue selected by QUEUE_BACKEND. The returned
// close func releases any connection it opened.
func OpenQueue(ctx context.Context, cfg config.App) (queue.Queue, func() error, error) {
	noop := func() error { return nil }

	switch cfg.QueueBackend {
	case "", "memory":
		return queue.NewInMemory(64), noop, nil
	case "none":
		return queue.Discard{}, noop, nil
	case "redis":
		client := NewRedis(cfg.RedisAddr)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
		}
		return queue.NewRedisQueue(client, cfg.StoreKeyPrefix+":events"), client.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown queue backend %q", cfg.QueueBackend)
}
