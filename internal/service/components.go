// File: internal/service/components.go
package service

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uxpilot/api/schemas"
	"github.com/xkilldash9x/uxpilot/internal/browser"
	"github.com/xkilldash9x/uxpilot/internal/graph"
	"github.com/xkilldash9x/uxpilot/internal/imagestore"
	"github.com/xkilldash9x/uxpilot/internal/metrics"
)

// Components holds everything a run needs, built once per process.
type Components struct {
	Images   imagestore.Store
	Browser  *browser.Manager
	LLM      schemas.LLMClient
	Executor *graph.Executor
	Runner   *Runner
	// Metrics is nil when metrics are disabled.
	Metrics *metrics.Collector
	DBPool  *pgxpool.Pool

	logger *zap.Logger
}

// Shutdown releases the components in reverse order of creation. It is safe
// on a partially built value.
func (c *Components) Shutdown(ctx context.Context) {
	logger := c.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Debug("Beginning components shutdown sequence.")

	if c.Browser != nil {
		if err := c.Browser.Shutdown(ctx); err != nil {
			logger.Warn("Error during browser manager shutdown.", zap.Error(err))
		} else {
			logger.Debug("Browser manager shut down.")
		}
	}

	if c.LLM != nil {
		if err := c.LLM.Close(); err != nil {
			logger.Warn("Error closing LLM client.", zap.Error(err))
		}
	}

	if c.DBPool != nil {
		c.DBPool.Close()
		logger.Debug("Database connection pool closed.")
	}

	logger.Info("All components shut down.")
}
