package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/barber-agent/internal/config"
	"github.com/wolfman30/barber-agent/internal/conversation"
	"github.com/wolfman30/barber-agent/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when no address is
// set. When verify is true, a ping is issued and failures return nil.
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
		logger.Warn("redis not available", "addr", cfg.RedisAddr, "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildSessionStore picks the session backend named by SESSION_STORE. The
// redis backend needs a reachable client; the memory backend is bounded by
// SESSION_MAX_ENTRIES.
func BuildSessionStore(cfg *appconfig.Config, redisClient *redis.Client, logger *logging.Logger) (conversation.SessionStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	switch cfg.SessionStore {
	case appconfig.SessionStoreRedis:
		if redisClient == nil {
			return nil, fmt.Errorf("bootstrap: session store %q requires redis at %q", cfg.SessionStore, cfg.RedisAddr)
		}
		logger.Info("using redis session store", "addr", cfg.RedisAddr, "ttl", cfg.SessionTTL.String())
		return conversation.NewRedisSessionStore(redisClient, cfg.SessionTTL), nil
	case appconfig.SessionStoreMemory, "":
		logger.Info("using in-memory session store", "max_entries", cfg.SessionMaxEntries, "ttl", cfg.SessionTTL.String())
		return conversation.NewMemorySessionStore(cfg.SessionTTL, cfg.SessionMaxEntries), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown session store %q", cfg.SessionStore)
	}
}

// BuildTranscriptStore returns the Postgres turn log, or nil without a pool.
func BuildTranscriptStore(pool conversation.PgxPool) *conversation.PostgresTranscriptStore {
	if pool == nil {
		return nil
	}
	return conversation.NewPostgresTranscriptStore(pool)
}
