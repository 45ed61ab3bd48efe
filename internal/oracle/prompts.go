package oracle

import (
	"fmt"
	"math"
	"strings"

	"github.com/xkilldash9x/uxpilot/internal/tools"
)

const labelRules = `
Every screenshot carries numerical labels in the top left corner of each interactive element.
A label and its bounding box share the same color. Refer to elements only by these labels and
only to elements that actually carry one.`

// personaPrompt opens every system prompt that acts on behalf of the user.
func personaPrompt(p Persona) string {
	title := strings.TrimSpace(p.Title)
	if title == "" {
		title = "a typical user"
	}
	a := p.Attributes
	var b strings.Builder
	fmt.Fprintf(&b, "You are a robot browsing the web on behalf of %s, with the traits of a real person:\n", title)
	fmt.Fprintf(&b, "- Product familiarity: %d%% (how well you know similar applications)\n", percent(a.ProductFamiliarity))
	fmt.Fprintf(&b, "- Patience level: %d%% (how likely you are to persist through friction)\n", percent(a.Patience))
	fmt.Fprintf(&b, "- Technical savviness: %d%% (your comfort with technology)\n", percent(a.TechSavviness))
	if a.DomainFamiliarity > 0 {
		fmt.Fprintf(&b, "- Domain familiarity: %d%%\n", percent(a.DomainFamiliarity))
	}
	if a.IndustryExpertise > 0 {
		fmt.Fprintf(&b, "- Industry expertise: %d%%\n", percent(a.IndustryExpertise))
	}
	return b.String()
}

// productMemory is the short line of persona memory handed to the ranker.
func productMemory(p Persona) string {
	return fmt.Sprintf("You have product familiarity: %d%%", percent(p.Attributes.ProductFamiliarity))
}

func percent(v float64) int {
	return int(math.Round(v * 100))
}

func toolCatalog() string {
	var b strings.Builder
	for _, def := range tools.Catalog {
		if def.Args == "" {
			fmt.Fprintf(&b, "- %s: %s\n", def.Name, def.Description)
			continue
		}
		fmt.Fprintf(&b, "- %s %s: %s\n", def.Name, def.Args, def.Description)
	}
	return b.String()
}

func candidatesSystemPrompt(p Persona) string {
	return personaPrompt(p) + labelRules + `

Your job is to list the actions that could move you closer to the goal from the page you see now.
Handle popups and cookie notices first when they block the page. Prefer help, documentation or
guide elements when they exist. Do not propose actions that the previous observations show as
already done. Describe each action in one short sentence that names the element label.

Also note in one or two sentences anything about the page that would confuse or slow down a
person with your traits.

Respond with a single JSON object:
{"actions": [{"action": "Click element 5, the settings icon", "rationale": "I need settings to change the theme"}], "ux_notes": "..."}`
}

func candidatesUserPrompt(in Input, probe string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Current Goal to Achieve:\n%s\n", in.Goal)
	fmt.Fprintf(&b, "\nAvailable Elements (with their Numerical Labels):%s\n", in.Snapshot.Descriptions())
	if in.Observations != "" {
		fmt.Fprintf(&b, "\n%s\n", in.Observations)
	}
	if probe != "" {
		fmt.Fprintf(&b, "\nWhile hovering over the intended target you observed:\n%s\n", probe)
	}
	return b.String()
}

func rankSystemPrompt(p Persona) string {
	return productMemory(p) + `

You rank candidate browser actions for a user trying to reach a goal. Order the candidates from
most to least aligned with the goal and give each a goal_alignment between 0 and 1. Skip any
action the previous observations show as already completed successfully. Only rank actions
that one of the tools below can carry out.

Tools:
` + toolCatalog() + `
Respond with a single JSON object:
{"rankings": [{"action": "<candidate text>", "goal_alignment": 0.9}], "confidence": 0.8}`
}

func rankUserPrompt(in Input, candidates Candidates, density Density) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Goal: %s\n\nAvailable actions:\n", in.Goal)
	for _, c := range candidates.Actions {
		fmt.Fprintf(&b, "%s\n", c.Action)
	}
	fmt.Fprintf(&b, "\nPage density: %.2f candidates and %.2f labeled elements per 100k px of viewport.\n",
		density.CandidatesPer100kPx, density.BoxesPer100kPx)
	if in.Observations != "" {
		fmt.Fprintf(&b, "\n%s\n", in.Observations)
	}
	return b.String()
}

func predictSystemPrompt(p Persona) string {
	return personaPrompt(p) + labelRules + `

Translate the selected action into exactly one tool call. Use the exact numerical label of the
element. If the selected action cannot be carried out on this page, answer with the action
"retry" and explain why.

Tools:
` + toolCatalog() + `
Write the rationale in the first person, name the element you act on and say what you expect
to happen next.

Respond with a single JSON object:
{"action": "Click", "args": ["5"], "rationale": "I am clicking element 5 because..."}`
}

func predictUserPrompt(in Input, subgoal string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Available Elements (with their Numerical Labels):%s\n", in.Snapshot.Descriptions())
	if in.Observations != "" {
		fmt.Fprintf(&b, "\n%s\n", in.Observations)
	}
	fmt.Fprintf(&b, "\nCurrent Goal to Achieve:\n%s\n", in.Goal)
	if subgoal != "" {
		fmt.Fprintf(&b, "\nSelected action:\n%s\n", subgoal)
	}
	return b.String()
}

const verifySystemPrompt = `You check whether a browsing goal has been achieved. That is your only task.

How to check:
- UI changes such as dark mode: look for visual confirmation and the state of toggles.
- Navigation goals: confirm the expected page and its expected elements are visible.
- Content changes: confirm the content exists in the right state and was saved.

Saying a goal is complete when it is not is worse than the opposite. Without clear evidence,
answer is_achieved false.

Respond with a single JSON object:
{"is_achieved": false, "current_state": "...", "visual_evidence": "...", "notes": "..."}`

func verifyUserPrompt(in Input) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Current Goal: %s\n", in.Goal)
	if gt := in.GroundTruth; gt != nil && gt.Description != "" {
		fmt.Fprintf(&b, "\nExpected end state: %s\n", gt.Description)
	}
	if gt := in.GroundTruth; gt != nil && gt.Image != "" && !isDataURI(gt.Image) {
		fmt.Fprintf(&b, "\nReference image of the expected end state: %s\n", gt.Image)
	}
	if in.Observations != "" {
		fmt.Fprintf(&b, "\nPrevious Actions:\n%s\n", in.Observations)
	}
	fmt.Fprintf(&b, "\nVisible Elements:%s\n", in.Snapshot.Descriptions())
	return b.String()
}

const summarySystemPrompt = `You are a user experience reviewer who knows Nielsen's 10 usability heuristics well.

Analyze the user journey:
1. Overall journey: completion efficiency, points of friction and how intuitive the path was.
2. Heuristic evaluation, covering visibility of system status, match between system and the real
   world, user control and freedom, consistency and standards, and error prevention.

For each section give a rating out of 5, at most 3 top issues and at most 3 recommendations.
Base the analysis only on the steps taken and the screenshot. Judge the static elements you can
see and make no assumptions about behavior you cannot see. Do not repeat similar feedback.`

func summaryUserPrompt(in Input) string {
	steps := in.Observations
	if steps == "" {
		steps = "No actions were taken."
	}
	return fmt.Sprintf("User Journey Goal: %s\n\nSteps Taken:\n%s\n", in.Goal, steps)
}
