// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package builtin ships the demo code-review toolset and its graph: a chain
// of static-analysis tools feeding a quality gate that loops back through a
// refinement tool until the score clears the bar.
package builtin

import (
	"context"
	"math"
	"regexp"
	"strings"

	"github.com/tombee/graphexec/pkg/graph"
	"github.com/tombee/graphexec/pkg/tools"
)

// ReviewGraphID is the graph id the builtin review workflow registers under.
const ReviewGraphID = "code_review"

var functionPattern = regexp.MustCompile(`(?m)^def\s+([a-zA-Z_][a-zA-Z0-9_]*)`)

var branchKeywords = []string{"if ", "for ", "while ", "try:", "except ", "with "}

// ExtractFunctions lists the function names defined in state["code"].
func ExtractFunctions(ctx context.Context, state map[string]any) (map[string]any, error) {
	code := stringValue(state, "code")

	functions := []string{}
	for _, m := range functionPattern.FindAllStringSubmatch(code, -1) {
		functions = append(functions, m[1])
	}
	return map[string]any{"functions": functions}, nil
}

// CheckComplexity estimates an average branching complexity per function.
func CheckComplexity(ctx context.Context, state map[string]any) (map[string]any, error) {
	code := stringValue(state, "code")

	var complexities []float64
	current := 1.0
	for _, raw := range strings.Split(code, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		for _, kw := range branchKeywords {
			if strings.Contains(line, kw) {
				current++
				break
			}
		}
		if strings.HasPrefix(line, "def ") {
			complexities = append(complexities, current)
			current = 1
		}
	}
	complexities = append(complexities, current)

	sum := 0.0
	for _, c := range complexities {
		sum += c
	}
	avg := sum / float64(len(complexities))
	return map[string]any{"avg_complexity": round2(avg)}, nil
}

// DetectBasicIssues flags long lines and TODO comments with line numbers.
func DetectBasicIssues(ctx context.Context, state map[string]any) (map[string]any, error) {
	code := stringValue(state, "code")

	var longLines, todoLines []int
	for idx, line := range strings.Split(code, "\n") {
		if len(line) > 100 {
			longLines = append(longLines, idx+1)
		}
		if strings.Contains(line, "TODO") {
			todoLines = append(todoLines, idx+1)
		}
	}

	issues := []map[string]any{}
	if len(longLines) > 0 {
		issues = append(issues, map[string]any{"type": "long_lines", "lines": longLines})
	}
	if len(todoLines) > 0 {
		issues = append(issues, map[string]any{"type": "todo_comments", "lines": todoLines})
	}
	return map[string]any{"issues": issues, "issue_count": len(issues)}, nil
}

// SuggestImprovements turns detected issues into suggestions and scores the
// result; fewer suggestions means a higher quality score.
func SuggestImprovements(ctx context.Context, state map[string]any) (map[string]any, error) {
	var suggestions []string
	if floatValue(state, "avg_complexity", 1) > 5 {
		suggestions = append(suggestions, "Reduce branching or split functions to lower complexity.")
	}
	if hasIssue(state, "long_lines") {
		suggestions = append(suggestions, "Wrap or refactor long lines to improve readability.")
	}
	if hasIssue(state, "todo_comments") {
		suggestions = append(suggestions, "Resolve or track TODO comments explicitly.")
	}

	score := math.Max(0.1, 1.0-0.1*float64(len(suggestions)))
	if suggestions == nil {
		suggestions = []string{}
	}
	return map[string]any{
		"suggestions":   suggestions,
		"quality_score": round2(score),
	}, nil
}

// RefineSuggestions appends a follow-up action and nudges the quality score
// upward, modelling one round of addressing feedback.
func RefineSuggestions(ctx context.Context, state map[string]any) (map[string]any, error) {
	previous := stringSlice(state, "suggestions")
	refined := append(previous, "Apply one suggestion and re-evaluate quality.")

	score := floatValue(state, "quality_score", 0.5)
	if score == 0 {
		score = 0.5
	}
	return map[string]any{
		"suggestions":   refined,
		"quality_score": round2(math.Min(1.0, score+0.1)),
	}, nil
}

// Register adds the review toolset to a registry.
func Register(r *tools.Registry) {
	r.RegisterWithDescription("extract_functions", "List function names defined in the code under review", ExtractFunctions)
	r.RegisterWithDescription("check_complexity", "Estimate average branching complexity per function", CheckComplexity)
	r.RegisterWithDescription("detect_basic_issues", "Flag long lines and TODO comments", DetectBasicIssues)
	r.RegisterWithDescription("suggest_improvements", "Turn detected issues into suggestions and a quality score", SuggestImprovements)
	r.RegisterWithDescription("refine_suggestions", "Apply one round of refinement to the suggestions", RefineSuggestions)
}

// ReviewGraph returns the builtin code-review workflow definition: analysis
// chain, then a quality gate that routes back through refinement until the
// score reaches 0.8.
func ReviewGraph() *graph.Definition {
	return &graph.Definition{
		GraphID: ReviewGraphID,
		StartAt: "extract",
		Nodes: []graph.NodeDefinition{
			{Name: "extract", Type: graph.NodeTypeTool, Next: "complexity", Config: map[string]any{"tool": "extract_functions"}},
			{Name: "complexity", Type: graph.NodeTypeTool, Next: "detect", Config: map[string]any{"tool": "check_complexity"}},
			{Name: "detect", Type: graph.NodeTypeTool, Next: "suggest", Config: map[string]any{"tool": "detect_basic_issues"}},
			{Name: "suggest", Type: graph.NodeTypeTool, Next: "quality_gate", Config: map[string]any{"tool": "suggest_improvements"}},
			{
				Name: "quality_gate",
				Type: graph.NodeTypeConditional,
				Config: map[string]any{
					"key": "quality_score", "op": ">=", "value": 0.8, "on_false": "refine",
				},
			},
			{Name: "refine", Type: graph.NodeTypeTool, Next: "quality_gate", Config: map[string]any{"tool": "refine_suggestions"}},
		},
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func stringValue(state map[string]any, key string) string {
	s, _ := state[key].(string)
	return s
}

// floatValue tolerates the numeric types JSON and YAML decoding produce.
func floatValue(state map[string]any, key string, def float64) float64 {
	switch v := state[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return def
	}
}

func stringSlice(state map[string]any, key string) []string {
	switch v := state[key].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func hasIssue(state map[string]any, issueType string) bool {
	switch issues := state["issues"].(type) {
	case []map[string]any:
		for _, issue := range issues {
			if issue["type"] == issueType {
				return true
			}
		}
	case []any:
		for _, item := range issues {
			if issue, ok := item.(map[string]any); ok && issue["type"] == issueType {
				return true
			}
		}
	}
	return false
}
