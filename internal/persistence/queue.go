package persistence

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pastewatch/pastewatch/internal/types"
)

// Queue pushes the archive path of every matched pasty onto a Redis list so
// an external consumer (e.g. a separate triage process) can tail it without
// querying MongoDB.
type Queue struct {
	client   *redis.Client
	listName string
	logger   *slog.Logger
}

// NewQueue connects to a Redis server at addr:port/db and pushes onto listName.
func NewQueue(addr string, port, db int, listName string, logger *slog.Logger) (*Queue, error) {
	client := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%d", addr, port),
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	if listName == "" {
		listName = "pastes"
	}

	return &Queue{
		client:   client,
		listName: listName,
		logger:   logger.With("component", "persistence_queue"),
	}, nil
}

// Push LPUSHes the archive path for a pasty onto the queue.
func (q *Queue) Push(ctx context.Context, localPath string) error {
	if err := q.client.LPush(ctx, q.listName, localPath).Err(); err != nil {
		return &types.StorageError{Backend: "redis", Err: err}
	}
	return nil
}

// Close closes the underlying Redis client.
func (q *Queue) Close() error {
	return q.client.Close()
}
