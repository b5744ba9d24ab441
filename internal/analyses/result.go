package analyses

import (
	"encoding/json"
	"fmt"

	"labelscan-backend/internal/llm"
	"labelscan-backend/internal/rules"
)

// Risk levels the model may assign to a table row.
const (
	RiskLow     = "low"
	RiskMedium  = "medium"
	RiskHigh    = "high"
	RiskUnknown = "unknown"
)

// scoreDimensions is the fixed enumeration of score-breakdown keys; anything
// else the model invents is dropped.
var scoreDimensions = []string{"additives", "sugar", "fat", "sodium", "natural"}

// TableRow describes one ingredient in the per-ingredient table.
type TableRow struct {
	Ingredient string `json:"ingredient"`
	Category   string `json:"category"`
	Function   string `json:"function"`
	Risk       string `json:"risk"`
	Note       string `json:"note"`
}

// Warning flags a group of ingredients for a shared concern.
type Warning struct {
	Type        string   `json:"type"`
	Ingredients []string `json:"ingredients"`
	Message     string   `json:"message"`
}

// Result is the LLM-derived, rule-augmented analysis output. It is
// constructed fresh per attempt and either fully replaces the previous result
// or is discarded on failure.
type Result struct {
	HealthScore           int              `json:"health_score"`
	Summary               string           `json:"summary"`
	Table                 []TableRow       `json:"table"`
	Ingredients           []string         `json:"ingredients"`
	Warnings              []Warning        `json:"warnings"`
	Overall               string           `json:"overall"`
	Recommendation        string           `json:"recommendation"`
	PreferenceSummary     string           `json:"preference_summary,omitempty"`
	PreferenceIngredients []string         `json:"preference_ingredients,omitempty"`
	ScoreBreakdown        map[string]int   `json:"score_breakdown,omitempty"`
	RuleHits              []rules.Hit      `json:"rule_hits"`
	RuleConfidence        rules.Confidence `json:"rule_confidence"`
}

// ResultParseError reports a model reply that could not be decoded into a
// Result. The retained reply is for logging only and never appears in the
// error string.
type ResultParseError struct {
	Err     error
	Content string
}

func (e *ResultParseError) Error() string {
	return fmt.Sprintf("llm output invalid: %v", e.Err)
}

func (e *ResultParseError) Unwrap() error { return e.Err }

// Snippet returns the retained reply, capped for log payloads.
func (e *ResultParseError) Snippet() string {
	return llm.Truncate(e.Content, 2000)
}

// ParseResult decodes a raw model reply into a Result, applying the fallback
// JSON extraction strategies first.
func ParseResult(content string) (*Result, error) {
	raw, err := llm.ExtractJSON(content)
	if err != nil {
		return nil, &ResultParseError{Err: err, Content: content}
	}
	var result Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, &ResultParseError{Err: err, Content: content}
	}
	return &result, nil
}

// Finalize merges the rule evaluation into the result and repairs gaps the
// model left: scores are clamped into range, unknown breakdown dimensions are
// dropped, and an empty summary or table is synthesized from the ingredient
// list.
func (r *Result) Finalize(eval rules.RuleEvaluation) {
	r.HealthScore = clampScore(r.HealthScore)

	for i := range r.Table {
		r.Table[i].Risk = normalizeRowRisk(r.Table[i].Risk)
	}

	if len(r.ScoreBreakdown) > 0 {
		cleaned := make(map[string]int, len(scoreDimensions))
		for _, dim := range scoreDimensions {
			if v, ok := r.ScoreBreakdown[dim]; ok {
				cleaned[dim] = clampScore(v)
			}
		}
		r.ScoreBreakdown = cleaned
	}

	if r.Summary == "" {
		r.Summary = fmt.Sprintf("Identified %d ingredient(s) from the label.", len(r.Ingredients))
	}
	if len(r.Table) == 0 {
		for _, ing := range r.Ingredients {
			r.Table = append(r.Table, TableRow{Ingredient: ing, Risk: RiskUnknown})
		}
	}

	r.RuleHits = eval.Hits
	r.RuleConfidence = eval.Confidence
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func normalizeRowRisk(risk string) string {
	switch risk {
	case RiskLow, RiskMedium, RiskHigh:
		return risk
	default:
		return RiskUnknown
	}
}
