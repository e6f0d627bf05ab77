package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"

	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/reserv/internal/config"
	"github.com/wolfman30/reserv/internal/session"
	"github.com/wolfman30/reserv/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildSessionStorage picks where tab sessions persist. Redis is used when
// configured and reachable; otherwise sessions stay in process memory.
// The returned client is nil for memory storage and must be closed by the
// caller otherwise.
func BuildSessionStorage(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (session.Storage, *redis.Client) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil || !cfg.UseRedisSessions() {
		logger.Info("tab sessions stored in memory")
		return session.NewMemoryStorage(), nil
	}
	client := BuildRedisClient(ctx, cfg, logger, true)
	if client == nil {
		logger.Warn("falling back to in-memory tab sessions", "redis_addr", cfg.RedisAddr)
		return session.NewMemoryStorage(), nil
	}
	logger.Info("tab sessions stored in redis", "redis_addr", cfg.RedisAddr, "ttl", cfg.SessionTTL.String())
	return session.NewRedisStorage(client, cfg.SessionTTL), client
}
