package repository

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// StreamRepository appends entries to Redis streams.
type StreamRepository struct {
	client *redis.Client
	maxLen int64
}

// NewStreamRepository constructs a StreamRepository. Streams are trimmed
// approximately to maxLen entries when maxLen is positive.
func NewStreamRepository(client *redis.Client, maxLen int64) *StreamRepository {
	return &StreamRepository{client: client, maxLen: maxLen}
}

// Append adds one entry and returns its stream id. Without a client it is a no-op.
func (r *StreamRepository) Append(ctx context.Context, stream string, values map[string]interface{}) (string, error) {
	if r.client == nil {
		return "", nil
	}
	args := &redis.XAddArgs{
		Stream: stream,
		Values: values,
	}
	if r.maxLen > 0 {
		args.MaxLen = r.maxLen
		args.Approx = true
	}
	id, err := r.client.XAdd(ctx, args).Result()
	if err != nil {
		return "", fmt.Errorf("redis xadd %s: %w", stream, err)
	}
	return id, nil
}
