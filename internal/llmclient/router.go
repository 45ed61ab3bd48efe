package llmclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/uxpilot/api/schemas"
)

// DurationObserver receives the latency of every routed request.
type DurationObserver interface {
	ObserveLLMRequest(tier string, d time.Duration)
}

// LLMRouter implements the LLMClient interface and routes requests by tier.
type LLMRouter struct {
	logger   *zap.Logger
	clients  map[schemas.ModelTier]schemas.LLMClient
	observer DurationObserver
}

// NewLLMRouter creates a new router with the specified clients for each tier.
func NewLLMRouter(logger *zap.Logger, fastClient, powerfulClient schemas.LLMClient) (*LLMRouter, error) {
	if fastClient == nil || powerfulClient == nil {
		return nil, fmt.Errorf("both fast and powerful tier clients must be provided")
	}

	return &LLMRouter{
		logger: logger.Named("llm_router"),
		clients: map[schemas.ModelTier]schemas.LLMClient{
			schemas.TierFast:     fastClient,
			schemas.TierPowerful: powerfulClient,
		},
	}, nil
}

// SetObserver attaches a latency observer.
func (r *LLMRouter) SetObserver(o DurationObserver) {
	r.observer = o
}

// Generate selects the client for req.Tier, defaulting to the powerful tier.
func (r *LLMRouter) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	tier := req.Tier
	if tier == "" {
		tier = schemas.TierPowerful
	}

	client, ok := r.clients[tier]
	if !ok {
		return "", fmt.Errorf("no LLM client configured for tier: %s", tier)
	}

	r.logger.Debug("Routing LLM request", zap.String("tier", string(tier)), zap.Int("images", len(req.Images)))
	start := time.Now()
	out, err := client.Generate(ctx, req)
	if r.observer != nil {
		r.observer.ObserveLLMRequest(string(tier), time.Since(start))
	}
	return out, err
}

// Close closes every distinct underlying client.
func (r *LLMRouter) Close() error {
	seen := make(map[schemas.LLMClient]bool, len(r.clients))
	var errs []error
	for _, c := range r.clients {
		if seen[c] {
			continue
		}
		seen[c] = true
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
