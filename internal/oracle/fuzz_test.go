package oracle

import (
	"context"
	"strings"
	"testing"

	fuzz "github.com/AdaLogics/go-fuzz-headers"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uxpilot/api/schemas"
)

func FuzzDecodePrediction(f *testing.F) {
	f.Add(`{"action": "Click", "args": [3], "rationale": "settings"}`)
	f.Add("```json\n{\"action\": \"Type\", \"args\": [\"2\", \"hello\"]}\n```")
	f.Add(`sure {"action": "Scroll", "args": ["WINDOW", "down", true, null]} done`)
	f.Add(`{"action": ["Click"], "args": {"0": 1}}`)
	f.Add(`{"action": `)
	f.Add("")

	f.Fuzz(func(t *testing.T, response string) {
		obj, err := parseObject(response)
		if err != nil {
			return
		}
		p := decodePrediction(obj)
		assert.Equal(t, strings.TrimSpace(p.Action), p.Action)
		if args := obj.Get("args"); args.ValueType() == jsoniter.ArrayValue {
			assert.Len(t, p.Args, args.Size())
		} else {
			assert.Empty(t, p.Args)
		}
	})
}

func FuzzDecodeRanking(f *testing.F) {
	f.Add(`{"rankings": [{"action": "Click 0", "goal_alignment": 0.9}], "confidence": "high"}`)
	f.Add(`{"rankings": [{"action": "Click 0", "goal_alignment": "n/a"}, 4], "confidence": "12%"}`)
	f.Add(`{"rankings": null}`)

	f.Fuzz(func(t *testing.T, response string) {
		obj, err := parseObject(response)
		if err != nil {
			return
		}
		for _, r := range decodeRanking(obj).Rankings {
			assert.NotEmpty(t, r.Action)
			assert.Equal(t, strings.TrimSpace(r.Action), r.Action)
		}
	})
}

// FuzzLLMOracle_Structured feeds arbitrary personas, ground truths and model
// output through every oracle call. Malformed output must degrade, never
// fail or panic.
func FuzzLLMOracle_Structured(f *testing.F) {
	f.Add([]byte("seed"))

	f.Fuzz(func(t *testing.T, data []byte) {
		consumer := fuzz.NewConsumer(data)

		var persona Persona
		if err := consumer.GenerateStruct(&persona); err != nil {
			return
		}
		var truth schemas.GroundTruth
		if err := consumer.GenerateStruct(&truth); err != nil {
			return
		}
		response, err := consumer.GetString()
		if err != nil {
			return
		}

		in := testInput()
		in.Persona = persona
		in.GroundTruth = &truth

		o := NewLLMOracle(&scriptedClient{response: response}, zap.NewNop())
		ctx := context.Background()

		candidates, err := o.GenerateCandidates(ctx, in, "")
		require.NoError(t, err)
		_, err = o.Rank(ctx, in, candidates, Density{})
		require.NoError(t, err)
		_, err = o.PredictAction(ctx, in, "open settings")
		require.NoError(t, err)
		_, err = o.Verify(ctx, in)
		require.NoError(t, err)
		_, err = o.Summarize(ctx, in)
		require.NoError(t, err)
	})
}
