package oracle

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

// jsonBlockRegex extracts the body of a fenced markdown code block.
var jsonBlockRegex = regexp.MustCompile(fmt.Sprintf("(?s)%s(?:json)?\\s*(.*?)\\s*%s", "```", "```"))

// Confidence labels the ranker may answer with instead of a number.
var confidenceLabels = map[string]float64{
	"very high": 0.95,
	"high":      0.9,
	"medium":    0.6,
	"moderate":  0.6,
	"low":       0.3,
	"very low":  0.1,
}

// extractJSON finds the JSON object in a model response, handling fenced
// code blocks and prose around a raw object.
func extractJSON(response string) string {
	response = strings.TrimSpace(response)
	if matches := jsonBlockRegex.FindStringSubmatch(response); len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}
	first := strings.Index(response, "{")
	last := strings.LastIndex(response, "}")
	if first != -1 && last > first {
		return response[first : last+1]
	}
	return response
}

// parseObject returns the JSON object in response. Fields are read one at a
// time afterwards, so a mistyped field only loses itself.
func parseObject(response string) (jsoniter.Any, error) {
	body := []byte(extractJSON(response))
	if len(body) == 0 {
		return nil, errors.New("could not find any JSON in the LLM response")
	}
	if !jsoniter.Valid(body) {
		return nil, errors.New("extracted text is not valid JSON")
	}
	obj := jsoniter.Get(body)
	if obj.ValueType() != jsoniter.ObjectValue {
		return nil, fmt.Errorf("expected a JSON object, got %s", kindOf(obj))
	}
	return obj, nil
}

func decodeCandidates(obj jsoniter.Any) Candidates {
	out := Candidates{UXNotes: textField(obj.Get("ux_notes"))}
	eachObject(obj.Get("actions"), func(item jsoniter.Any) {
		c := Candidate{
			Action:    textField(item.Get("action")),
			Rationale: textField(item.Get("rationale")),
		}
		if c.Action != "" {
			out.Actions = append(out.Actions, c)
		}
	})
	return out
}

func decodeRanking(obj jsoniter.Any) Ranking {
	out := Ranking{}
	out.Confidence, _ = scoreField(obj.Get("confidence"))
	eachObject(obj.Get("rankings"), func(item jsoniter.Any) {
		r := RankedAction{Action: textField(item.Get("action"))}
		r.GoalAlignment, _ = scoreField(item.Get("goal_alignment"))
		if r.Action != "" {
			out.Rankings = append(out.Rankings, r)
		}
	})
	return out
}

// decodePrediction accepts args of any scalar JSON type; models often send
// label numbers unquoted.
func decodePrediction(obj jsoniter.Any) Prediction {
	p := Prediction{
		Action:    textField(obj.Get("action")),
		Rationale: textField(obj.Get("rationale")),
	}
	args := obj.Get("args")
	if args.ValueType() != jsoniter.ArrayValue {
		return p
	}
	for i := 0; i < args.Size(); i++ {
		p.Args = append(p.Args, argString(args.Get(i)))
	}
	return p
}

func decodeVerification(obj jsoniter.Any) Verification {
	return Verification{
		IsAchieved:     flagField(obj.Get("is_achieved")),
		CurrentState:   textField(obj.Get("current_state")),
		VisualEvidence: textField(obj.Get("visual_evidence")),
		Notes:          textField(obj.Get("notes")),
	}
}

// eachObject calls fn for every object element of an array field.
func eachObject(arr jsoniter.Any, fn func(jsoniter.Any)) {
	if arr.ValueType() != jsoniter.ArrayValue {
		return
	}
	for i := 0; i < arr.Size(); i++ {
		if item := arr.Get(i); item.ValueType() == jsoniter.ObjectValue {
			fn(item)
		}
	}
}

// textField reads a string field. Anything that is not a string counts as
// absent.
func textField(v jsoniter.Any) string {
	if v.ValueType() != jsoniter.StringValue {
		return ""
	}
	return strings.TrimSpace(v.ToString())
}

// scoreField reads a number that may arrive as a number, a numeric string
// or a confidence label.
func scoreField(v jsoniter.Any) (float64, bool) {
	switch v.ValueType() {
	case jsoniter.NumberValue:
		return v.ToFloat64(), true
	case jsoniter.StringValue:
		s := strings.ToLower(strings.TrimSpace(v.ToString()))
		if f, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64); err == nil {
			if strings.HasSuffix(s, "%") {
				f /= 100
			}
			return f, true
		}
		f, ok := confidenceLabels[s]
		return f, ok
	}
	return 0, false
}

// flagField reads a boolean. Unparseable values are false, which keeps
// verification conservative.
func flagField(v jsoniter.Any) bool {
	switch v.ValueType() {
	case jsoniter.BoolValue:
		return v.ToBool()
	case jsoniter.StringValue:
		b, err := strconv.ParseBool(strings.TrimSpace(v.ToString()))
		return err == nil && b
	}
	return false
}

func argString(v jsoniter.Any) string {
	switch v.ValueType() {
	case jsoniter.StringValue:
		return v.ToString()
	case jsoniter.NumberValue:
		return strconv.FormatFloat(v.ToFloat64(), 'f', -1, 64)
	case jsoniter.BoolValue:
		return strconv.FormatBool(v.ToBool())
	case jsoniter.NilValue:
		return ""
	default:
		return strings.TrimSpace(v.ToString())
	}
}

func kindOf(v jsoniter.Any) string {
	switch v.ValueType() {
	case jsoniter.ArrayValue:
		return "an array"
	case jsoniter.StringValue:
		return "a string"
	case jsoniter.NumberValue:
		return "a number"
	case jsoniter.BoolValue:
		return "a boolean"
	case jsoniter.NilValue:
		return "null"
	}
	return "an invalid value"
}
