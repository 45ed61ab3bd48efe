package llmclient

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/xkilldash9x/uxpilot/api/schemas"
)

func newTestGeminiClient(models contentGenerator) *GeminiClient {
	c := newGeminiClient(models, getValidLLMConfig(), zap.NewNop())
	c.newBackOff = func() backoff.BackOff {
		return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 3)
	}
	return c
}

func TestNewGeminiClient_Validation(t *testing.T) {
	cfg := getValidLLMConfig()
	cfg.APIKey = ""
	_, err := NewGeminiClient(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API Key is required")

	cfg = getValidLLMConfig()
	cfg.Model = ""
	_, err = NewGeminiClient(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model name is required")
}

func TestGeminiClient_Generate(t *testing.T) {
	t.Run("builds parts and config", func(t *testing.T) {
		models := &fakeModels{responses: []*genai.GenerateContentResponse{textResponse(`{"is_achieved": true}`)}}
		c := newTestGeminiClient(models)

		out, err := c.Generate(context.Background(), schemas.GenerationRequest{
			SystemPrompt: "You verify goals.",
			UserPrompt:   "Current Goal: enable dark mode",
			Images: []schemas.ImagePart{
				{MIMEType: "image/png", Data: []byte{0x89}, Label: "Current page:"},
				{Data: nil, Label: "skipped"},
			},
			Tier:    schemas.TierPowerful,
			Options: schemas.GenerationOptions{ForceJSONFormat: true},
		})
		require.NoError(t, err)
		assert.Equal(t, `{"is_achieved": true}`, out)

		assert.Equal(t, "test-model", models.lastModel)
		require.Len(t, models.lastContents, 1)
		parts := models.lastContents[0].Parts
		require.Len(t, parts, 3, "label, image and prompt")
		assert.Equal(t, "Current page:", parts[0].Text)
		require.NotNil(t, parts[1].InlineData)
		assert.Equal(t, "image/png", parts[1].InlineData.MIMEType)
		assert.Equal(t, "Current Goal: enable dark mode", parts[2].Text)

		cfg := models.lastConfig
		assert.Equal(t, "application/json", cfg.ResponseMIMEType)
		require.NotNil(t, cfg.Temperature)
		assert.InDelta(t, 0.3, *cfg.Temperature, 1e-6, "model temperature applies when the request leaves it unset")
		assert.Equal(t, int32(2048), cfg.MaxOutputTokens)
		require.NotNil(t, cfg.TopK)
		assert.Equal(t, float32(40), *cfg.TopK)
		require.NotNil(t, cfg.SystemInstruction)
		assert.Equal(t, "You verify goals.", cfg.SystemInstruction.Parts[0].Text)
	})

	t.Run("request options override the model defaults", func(t *testing.T) {
		models := &fakeModels{responses: []*genai.GenerateContentResponse{textResponse("ok")}}
		c := newTestGeminiClient(models)

		_, err := c.Generate(context.Background(), schemas.GenerationRequest{
			UserPrompt: "hi",
			Options:    schemas.GenerationOptions{Temperature: 0.9, MaxOutputTokens: 100},
		})
		require.NoError(t, err)
		assert.InDelta(t, 0.9, *models.lastConfig.Temperature, 1e-6)
		assert.Equal(t, int32(100), models.lastConfig.MaxOutputTokens)
		assert.Nil(t, models.lastConfig.SystemInstruction)
		assert.Empty(t, models.lastConfig.ResponseMIMEType)
	})

	t.Run("retries transient API errors", func(t *testing.T) {
		models := &fakeModels{
			errs:      []error{genai.APIError{Code: http.StatusTooManyRequests}, genai.APIError{Code: http.StatusServiceUnavailable}},
			responses: []*genai.GenerateContentResponse{nil, nil, textResponse("third time")},
		}
		c := newTestGeminiClient(models)

		out, err := c.Generate(context.Background(), schemas.GenerationRequest{UserPrompt: "x"})
		require.NoError(t, err)
		assert.Equal(t, "third time", out)
		assert.Equal(t, 3, models.calls)
	})

	t.Run("does not retry client errors", func(t *testing.T) {
		models := &fakeModels{errs: []error{genai.APIError{Code: http.StatusBadRequest, Message: "bad"}}}
		c := newTestGeminiClient(models)

		_, err := c.Generate(context.Background(), schemas.GenerationRequest{UserPrompt: "x"})
		require.Error(t, err)
		var apiErr genai.APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusBadRequest, apiErr.Code)
		assert.Equal(t, 1, models.calls)
	})

	t.Run("safety blocks are permanent", func(t *testing.T) {
		blocked := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonSafety}}}
		models := &fakeModels{responses: []*genai.GenerateContentResponse{blocked}}
		c := newTestGeminiClient(models)

		_, err := c.Generate(context.Background(), schemas.GenerationRequest{UserPrompt: "x"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "blocked the request")
		assert.Equal(t, 1, models.calls)
	})

	t.Run("no candidates is permanent", func(t *testing.T) {
		models := &fakeModels{responses: []*genai.GenerateContentResponse{{}}}
		c := newTestGeminiClient(models)

		_, err := c.Generate(context.Background(), schemas.GenerationRequest{UserPrompt: "x"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no candidates")
	})

	t.Run("gives up after the retry budget", func(t *testing.T) {
		netErr := errors.New("connection reset by peer")
		models := &fakeModels{errs: []error{netErr, netErr, netErr, netErr, netErr}}
		c := newTestGeminiClient(models)

		_, err := c.Generate(context.Background(), schemas.GenerationRequest{UserPrompt: "x"})
		assert.ErrorIs(t, err, netErr)
		assert.Equal(t, 4, models.calls, "one attempt plus three retries")
	})
}
