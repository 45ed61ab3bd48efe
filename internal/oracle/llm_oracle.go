package oracle

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/xkilldash9x/uxpilot/api/schemas"
)

const (
	// maxSummaryRunes bounds the report length.
	maxSummaryRunes  = 6000
	summaryMaxTokens = 2048

	candidatesTemperature = 0.4
	rankTemperature       = 0.1
	predictTemperature    = 0.2
	verifyTemperature     = 0.05
	summaryTemperature    = 0.3
)

// LLMOracle implements Oracle by prompting a language model with the
// annotated screenshot and the run context.
type LLMOracle struct {
	client schemas.LLMClient
	logger *zap.Logger
}

var _ Oracle = (*LLMOracle)(nil)

// NewLLMOracle wraps an LLM client.
func NewLLMOracle(client schemas.LLMClient, logger *zap.Logger) *LLMOracle {
	return &LLMOracle{
		client: client,
		logger: logger.Named("oracle"),
	}
}

func (o *LLMOracle) GenerateCandidates(ctx context.Context, in Input, probe string) (Candidates, error) {
	raw, err := o.client.Generate(ctx, schemas.GenerationRequest{
		SystemPrompt: candidatesSystemPrompt(in.Persona),
		UserPrompt:   candidatesUserPrompt(in, probe),
		Images:       currentImage(in),
		Tier:         schemas.TierFast,
		Options:      schemas.GenerationOptions{Temperature: candidatesTemperature, ForceJSONFormat: true},
	})
	if err != nil {
		return Candidates{}, fmt.Errorf("candidate generation failed: %w", err)
	}

	obj, err := parseObject(raw)
	if err != nil {
		o.malformed("candidates", raw, err)
		return Candidates{}, nil
	}
	return decodeCandidates(obj), nil
}

func (o *LLMOracle) Rank(ctx context.Context, in Input, candidates Candidates, density Density) (Ranking, error) {
	raw, err := o.client.Generate(ctx, schemas.GenerationRequest{
		SystemPrompt: rankSystemPrompt(in.Persona),
		UserPrompt:   rankUserPrompt(in, candidates, density),
		Tier:         schemas.TierFast,
		Options:      schemas.GenerationOptions{Temperature: rankTemperature, ForceJSONFormat: true},
	})
	if err != nil {
		return Ranking{}, fmt.Errorf("ranking failed: %w", err)
	}

	obj, err := parseObject(raw)
	if err != nil {
		o.malformed("ranking", raw, err)
		return Ranking{}, nil
	}
	return decodeRanking(obj), nil
}

func (o *LLMOracle) PredictAction(ctx context.Context, in Input, subgoal string) (Prediction, error) {
	raw, err := o.client.Generate(ctx, schemas.GenerationRequest{
		SystemPrompt: predictSystemPrompt(in.Persona),
		UserPrompt:   predictUserPrompt(in, subgoal),
		Images:       currentImage(in),
		Tier:         schemas.TierPowerful,
		Options:      schemas.GenerationOptions{Temperature: predictTemperature, ForceJSONFormat: true},
	})
	if err != nil {
		return Prediction{}, fmt.Errorf("action prediction failed: %w", err)
	}

	obj, err := parseObject(raw)
	if err != nil {
		o.malformed("prediction", raw, err)
		return Prediction{}, nil
	}
	return decodePrediction(obj), nil
}

func (o *LLMOracle) Verify(ctx context.Context, in Input) (Verification, error) {
	images := currentImage(in)
	if gt := in.GroundTruth; gt != nil && isDataURI(gt.Image) {
		if part, ok := decodeDataURI(gt.Image); ok {
			part.Label = "Reference image of the expected end state:"
			images = append(images, part)
		} else {
			o.logger.Warn("Ignoring undecodable ground truth image")
		}
	}

	raw, err := o.client.Generate(ctx, schemas.GenerationRequest{
		SystemPrompt: verifySystemPrompt,
		UserPrompt:   verifyUserPrompt(in),
		Images:       images,
		Tier:         schemas.TierPowerful,
		Options:      schemas.GenerationOptions{Temperature: verifyTemperature, ForceJSONFormat: true},
	})
	if err != nil {
		return Verification{}, fmt.Errorf("goal verification failed: %w", err)
	}

	obj, err := parseObject(raw)
	if err != nil {
		o.malformed("verification", raw, err)
		return Verification{}, nil
	}
	return decodeVerification(obj), nil
}

func (o *LLMOracle) Summarize(ctx context.Context, in Input) (string, error) {
	raw, err := o.client.Generate(ctx, schemas.GenerationRequest{
		SystemPrompt: summarySystemPrompt,
		UserPrompt:   summaryUserPrompt(in),
		Images:       currentImage(in),
		Tier:         schemas.TierPowerful,
		Options:      schemas.GenerationOptions{Temperature: summaryTemperature, MaxOutputTokens: summaryMaxTokens},
	})
	if err != nil {
		return "", fmt.Errorf("summarization failed: %w", err)
	}
	return truncateRunes(strings.TrimSpace(raw), maxSummaryRunes), nil
}

func (o *LLMOracle) malformed(kind, raw string, err error) {
	o.logger.Warn("Discarding malformed oracle response",
		zap.String("kind", kind),
		zap.String("raw_response", raw),
		zap.Error(err))
}

func currentImage(in Input) []schemas.ImagePart {
	if in.Snapshot == nil || len(in.Snapshot.Current.Data) == 0 {
		return nil
	}
	return []schemas.ImagePart{{
		MIMEType: "image/png",
		Data:     in.Snapshot.Current.Data,
		Label:    "Annotated screenshot of the current page:",
	}}
}

func isDataURI(s string) bool {
	return strings.HasPrefix(s, "data:image/")
}

// decodeDataURI parses data:image/<type>;base64,<payload>.
func decodeDataURI(uri string) (schemas.ImagePart, bool) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok || !strings.HasSuffix(header, ";base64") {
		return schemas.ImagePart{}, false
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil || len(data) == 0 {
		return schemas.ImagePart{}, false
	}
	return schemas.ImagePart{MIMEType: strings.TrimSuffix(header, ";base64"), Data: data}, true
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
