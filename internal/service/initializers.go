// File: internal/service/initializers.go
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uxpilot/api/schemas"
	"github.com/xkilldash9x/uxpilot/internal/config"
	"github.com/xkilldash9x/uxpilot/internal/imagestore"
	"github.com/xkilldash9x/uxpilot/internal/llmclient"
)

// InitializeDBPool opens and pings a pgx pool for url.
func InitializeDBPool(ctx context.Context, url string, logger *zap.Logger) (*pgxpool.Pool, error) {
	if url == "" {
		return nil, fmt.Errorf("database URL is not configured (hint: check UXPILOT_DATABASE_URL)")
	}

	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("unable to parse PGX pool config: %w", err)
	}
	poolConfig.MaxConns = 10
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = 1 * time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create PGX connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}
	logger.Info("Database connection pool initialized.", zap.Int32("max_conns", poolConfig.MaxConns))
	return pool, nil
}

// InitializeImageStore builds the configured screenshot store. The pool is
// non-nil only for the postgres backend and belongs to the caller.
func InitializeImageStore(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (imagestore.Store, *pgxpool.Pool, error) {
	switch cfg.Backend {
	case config.StorageFS, "":
		store, err := imagestore.NewFSStore(cfg.ImageDir, cfg.BaseURL, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Using filesystem image store.", zap.String("dir", store.Root()))
		return store, nil, nil

	case config.StoragePostgres:
		pool, err := InitializeDBPool(ctx, cfg.Database.URL, logger)
		if err != nil {
			return nil, nil, err
		}
		store := imagestore.NewPostgresStore(pool, cfg.BaseURL, logger)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.Info("Using PostgreSQL image store.")
		return store, pool, nil

	default:
		return nil, nil, fmt.Errorf("unsupported storage backend: %s", cfg.Backend)
	}
}

// InitializeLLMClient creates the tier router. observer may be nil.
func InitializeLLMClient(ctx context.Context, cfg config.AgentConfig, logger *zap.Logger, observer llmclient.DurationObserver) (schemas.LLMClient, error) {
	client, err := llmclient.NewRouterFromConfig(ctx, cfg.LLM, logger, observer)
	if err != nil {
		logger.Error("Failed to initialize LLM client. Runs cannot reach the oracle.", zap.Error(err))
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	return client, nil
}
