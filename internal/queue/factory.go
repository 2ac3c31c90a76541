package queue

import (
	"context"
	"fmt"

	"shelf-go/internal/config"
	"shelf-go/internal/shelf"
)

// NewQueueFromConfig creates a TaskQueue implementation based on the config type.
func NewQueueFromConfig(ctx context.Context, cfg config.QueueConfig) (shelf.TaskQueue, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryQueue(), nil
	case "redis":
		return NewRedisQueue(ctx, RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Key:      cfg.RedisKey,
		})
	default:
		return nil, fmt.Errorf("unknown queue type: %s", cfg.Type)
	}
}
