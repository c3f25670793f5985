// File: internal/service/initializers.go
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xkilldash9x/easyapply/internal/artifacts"
	"github.com/xkilldash9x/easyapply/internal/config"
	"github.com/xkilldash9x/easyapply/internal/ratelimit"
	"github.com/xkilldash9x/easyapply/internal/secrets"
	"github.com/xkilldash9x/easyapply/internal/store"
)

// NewPool opens and verifies a pgx connection pool.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("database URL is not configured (hint: check EASYAPPLY_DATABASE_URL)")
	}
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse PGX pool config: %w", err)
	}
	// One attempt at a time needs few connections.
	poolConfig.MaxConns = 4
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = 1 * time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create PGX connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// InitializeStore connects to the database for commands that need storage
// but no browser. The returned cleanup closes the pool.
func InitializeStore(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*store.Store, func(), error) {
	pool, err := NewPool(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	st, err := store.New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	cleanup := func() {
		logger.Debug("Closing database connection pool (standalone store).")
		pool.Close()
	}
	return st, cleanup, nil
}

// InitializeCipher returns nil without error when no key is configured. In
// that mode sensitive answers are never learned and stored ciphertext is
// filled as-is.
func InitializeCipher(cfg config.CryptoConfig, logger *zap.Logger) (*secrets.Cipher, error) {
	if cfg.EncryptionKey == "" {
		logger.Warn("No encryption key configured; sensitive answers will not be learned.")
		return nil, nil
	}
	c, err := secrets.New(cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}
	return c, nil
}

// InitializeCounter picks the daily submission store. When Redis is enabled
// but unreachable the count falls back to memory rather than blocking the
// assistant.
func InitializeCounter(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (ratelimit.DailyCounter, *redis.Client) {
	if !cfg.Enabled {
		logger.Debug("Using in-memory daily submission counter.")
		return ratelimit.NewMemoryCounter(), nil
	}
	client, err := ratelimit.NewRedisClient(ctx, cfg.Addr, cfg.Password, cfg.DB)
	if err != nil {
		logger.Warn("Redis unavailable; daily counter will not survive restarts.", zap.Error(err))
		return ratelimit.NewMemoryCounter(), nil
	}
	logger.Info("Using Redis daily submission counter.", zap.String("addr", cfg.Addr))
	return ratelimit.NewRedisCounter(client), client
}

// InitializeMirror returns nil when the S3 mirror is disabled.
func InitializeMirror(ctx context.Context, cfg config.S3Config, logger *zap.Logger) (*artifacts.S3Mirror, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	m, err := artifacts.NewS3Mirror(ctx, cfg.Region, cfg.Bucket, cfg.Prefix, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize S3 mirror: %w", err)
	}
	return m, nil
}

// LimitsFrom converts the rate section into governor limits.
func LimitsFrom(cfg config.RateConfig) ratelimit.Limits {
	return ratelimit.Limits{
		ActionsPerWindow: cfg.ActionsPerWindow,
		Window:           cfg.Window,
		MaxDaily:         cfg.MaxDaily,
	}
}
