package database

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// NewRedis connects to redisURL. An empty URL returns a nil client: the
// verification cooldown, refresh tokens, rate limiting, realtime fan-out and
// worker wake-ups all degrade to single-instance behavior without Redis.
func NewRedis(redisURL string) (*redis.Client, error) {
	if redisURL == "" {
		log.Warn().Msg("REDIS_URL not set, running without Redis")
		return nil, nil
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	if opt.PoolSize == 0 {
		opt.PoolSize = 20
	}
	if opt.MinIdleConns == 0 {
		opt.MinIdleConns = 2
	}
	opt.DialTimeout = 5 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	log.Info().Int("db", opt.DB).Msg("Connected to Redis")
	return client, nil
}

// CloseRedis closes client; nil is ignored.
func CloseRedis(client *redis.Client) {
	if client == nil {
		return
	}
	if err := client.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing Redis connection")
		return
	}
	log.Info().Msg("Redis connection closed")
}

// Ping checks Postgres and, when configured, Redis.
func Ping(ctx context.Context, db interface{ PingContext(context.Context) error }, client *redis.Client) error {
	if err := db.PingContext(ctx); err != nil {
		return err
	}
	if client != nil {
		return client.Ping(ctx).Err()
	}
	return nil
}
