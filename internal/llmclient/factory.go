// -- internal/llmclient/factory.go --
package llmclient

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/uxpilot/api/schemas"
	"github.com/xkilldash9x/uxpilot/internal/config"
)

// NewClient is a factory function that creates an LLMClient based on the model configuration.
func NewClient(ctx context.Context, cfg config.LLMModelConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	switch cfg.Provider {
	case config.ProviderGemini, "":
		return NewGeminiClient(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown or unsupported LLM provider configured: '%s'. Supported: [%s]", cfg.Provider, config.ProviderGemini)
	}
}

// ResolveModel returns the model entry for a tier. An entry under the tier
// name in Models wins; otherwise the tier's default model is used with the
// shared API key.
func ResolveModel(cfg config.LLMRouterConfig, tier schemas.ModelTier) config.LLMModelConfig {
	model, ok := cfg.Models[string(tier)]
	if !ok {
		model = config.LLMModelConfig{Provider: config.ProviderGemini}
		if tier == schemas.TierFast {
			model.Model = cfg.DefaultFastModel
		} else {
			model.Model = cfg.DefaultPowerfulModel
		}
	}
	if model.APIKey == "" {
		model.APIKey = cfg.APIKey
	}
	return model
}

// NewRouterFromConfig builds one client per tier and routes between them.
// When RequestsPerMinute is set the whole router shares a single limiter.
func NewRouterFromConfig(ctx context.Context, cfg config.LLMRouterConfig, logger *zap.Logger, observer DurationObserver) (schemas.LLMClient, error) {
	fast, err := NewClient(ctx, ResolveModel(cfg, schemas.TierFast), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create fast tier client: %w", err)
	}
	powerful, err := NewClient(ctx, ResolveModel(cfg, schemas.TierPowerful), logger)
	if err != nil {
		_ = fast.Close()
		return nil, fmt.Errorf("failed to create powerful tier client: %w", err)
	}

	router, err := NewLLMRouter(logger, fast, powerful)
	if err != nil {
		return nil, err
	}
	if observer != nil {
		router.SetObserver(observer)
	}
	if cfg.RequestsPerMinute > 0 {
		return NewRateLimitedClient(router, cfg.RequestsPerMinute), nil
	}
	return router, nil
}
