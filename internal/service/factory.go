// File: internal/service/factory.go
package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/uxpilot/internal/browser"
	"github.com/xkilldash9x/uxpilot/internal/config"
	"github.com/xkilldash9x/uxpilot/internal/graph"
	"github.com/xkilldash9x/uxpilot/internal/llmclient"
	"github.com/xkilldash9x/uxpilot/internal/metrics"
	"github.com/xkilldash9x/uxpilot/internal/oracle"
	"github.com/xkilldash9x/uxpilot/internal/perception"
	"github.com/xkilldash9x/uxpilot/internal/tools"
)

// ComponentFactory builds the components shared by the serve and run
// commands. Commands depend on the interface so tests can swap it.
type ComponentFactory interface {
	Create(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*Components, error)
}

type concreteFactory struct{}

// NewComponentFactory creates the production factory.
func NewComponentFactory() ComponentFactory {
	return &concreteFactory{}
}

// Create wires config into live components. Nothing here contacts the
// browser; the manager connects on Start or on the first run.
func (f *concreteFactory) Create(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*Components, error) {
	components := &Components{logger: logger.Named("components")}

	var initializationErr error
	defer func() {
		if initializationErr != nil {
			logger.Warn("Initialization failed, shutting down partially created components.", zap.Error(initializationErr))
			components.Shutdown(context.Background())
		}
	}()

	// 1. Metrics
	var llmObserver llmclient.DurationObserver
	if cfg.Metrics().Enabled {
		components.Metrics = metrics.NewCollector(cfg.Metrics().Namespace, logger)
		llmObserver = components.Metrics
		logger.Debug("Metrics collector initialized.")
	}

	// 2. Image store
	images, pool, err := InitializeImageStore(ctx, cfg.Storage(), logger)
	if err != nil {
		initializationErr = fmt.Errorf("failed to initialize image store: %w", err)
		return nil, initializationErr
	}
	components.Images = images
	components.DBPool = pool

	// 3. LLM router
	llm, err := InitializeLLMClient(ctx, cfg.Agent(), logger, llmObserver)
	if err != nil {
		initializationErr = err
		return nil, initializationErr
	}
	components.LLM = llm
	logger.Debug("LLM router initialized.")

	// 4. Perception and tools
	perceiver := perception.New(images, logger)
	var toolOpts []tools.Option
	if components.Metrics != nil {
		toolOpts = append(toolOpts, tools.WithRecorder(components.Metrics))
	}
	dispatcher := tools.NewDispatcher(perceiver, logger, toolOpts...)

	// 5. Executor
	viewport := cfg.Browser().Viewport
	executor := graph.NewExecutor(oracle.NewLLMOracle(llm, logger), perceiver, dispatcher, logger, graph.Options{
		ViewportWidth:  viewport.Width,
		ViewportHeight: viewport.Height,
		HardDedupe:     cfg.Agent().HardDedupe,
	})
	if components.Metrics != nil {
		executor.SetRecorder(components.Metrics)
	}
	components.Executor = executor

	// 6. Browser
	components.Browser = browser.NewManager(cfg.Browser(), cfg.Server().RejectConcurrent, logger)
	components.Runner = NewRunner(components.Browser, executor, cfg.Agent().StepBudget, logger)

	logger.Info("All components initialized successfully.")
	return components, nil
}
