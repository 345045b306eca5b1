package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"brand-pipeline/models"
)

// RedisPublisher stores each generation's brand counts as a Redis hash so
// downstream jobs can look up brand frequencies without rereading the CSVs.
type RedisPublisher struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisPublisher connects to addr, which may be a redis:// URL or host:port.
func NewRedisPublisher(addr string, ttl time.Duration) (*RedisPublisher, error) {
	var opts *redis.Options
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("redis: parse url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: addr}
	}
	return &RedisPublisher{client: redis.NewClient(opts), ttl: ttl}, nil
}

// CountsKey is the hash holding gen's counts for runID.
func CountsKey(gen models.Generation, runID string) string {
	return fmt.Sprintf("brand_counts:%s:%s", gen, runID)
}

// LatestKey points at the run id of gen's most recent publication.
func LatestKey(gen models.Generation) string {
	return fmt.Sprintf("brand_counts:%s:latest", gen)
}

// Publish replaces the run's hash and moves the latest pointer in one transaction.
func (p *RedisPublisher) Publish(ctx context.Context, runID string, gen models.Generation, counts map[string]int) error {
	key := CountsKey(gen, runID)

	fields := make(map[string]interface{}, len(counts))
	for brand, n := range counts {
		fields[brand] = n
	}

	pipe := p.client.TxPipeline()
	pipe.Del(ctx, key)
	if len(fields) > 0 {
		pipe.HSet(ctx, key, fields)
		pipe.Expire(ctx, key, p.ttl)
	}
	pipe.Set(ctx, LatestKey(gen), runID, p.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: publish %s: %w", key, err)
	}
	return nil
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
