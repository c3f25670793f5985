// File: internal/service/components.go
package service

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xkilldash9x/easyapply/internal/artifacts"
	"github.com/xkilldash9x/easyapply/internal/browser/session"
	"github.com/xkilldash9x/easyapply/internal/engine"
	"github.com/xkilldash9x/easyapply/internal/observability"
	"github.com/xkilldash9x/easyapply/internal/ratelimit"
	"github.com/xkilldash9x/easyapply/internal/secrets"
	"github.com/xkilldash9x/easyapply/internal/store"
)

// Components holds the runtime graph of the assistant. It lives as long as
// the process, so the browser session survives between shell commands.
type Components struct {
	DBPool   *pgxpool.Pool
	Store    *store.Store
	Redis    *redis.Client
	Cipher   *secrets.Cipher
	Governor *ratelimit.Governor
	Session  *session.Manager
	State    *engine.EngineState
	Engine   *engine.Engine
	Mirror   *artifacts.S3Mirror
}

// Shutdown releases everything in reverse order of creation. It is safe on
// partially built components.
func (c *Components) Shutdown() {
	logger := observability.GetLogger()
	logger.Debug("Beginning components shutdown sequence.")

	if c.State != nil {
		// Shutdown must finish even when the caller's context is already gone.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := c.State.Stop(shutdownCtx); err != nil {
			logger.Warn("Error during browser shutdown.", zap.Error(err))
		} else {
			logger.Debug("Browser stopped.")
		}
	}

	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			logger.Warn("Error closing Redis client.", zap.Error(err))
		}
		logger.Debug("Redis client closed.")
	}

	if c.DBPool != nil {
		c.DBPool.Close()
		logger.Debug("Database connection pool closed.")
	}

	logger.Info("All components shut down.")
}
