package rules

import "strings"

// Risk levels for curated ingredients, ordered low < medium < high.
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// Confidence levels describing how much the rule engine's own evidence backs
// the final assessment.
const (
	ConfidenceLow    = "low"
	ConfidenceMedium = "medium"
	ConfidenceHigh   = "high"
)

// RuleItem is one curated ingredient record. The whole set is immutable after
// load.
type RuleItem struct {
	Name        string   `json:"name"`
	Aliases     []string `json:"aliases,omitempty"`
	Category    string   `json:"category"`
	Risk        string   `json:"risk"`
	Groups      []string `json:"groups,omitempty"`
	Description string   `json:"description,omitempty"`
}

// Hit is a single rule match with the preference-adjusted risk level.
type Hit struct {
	Name        string `json:"name"`
	Category    string `json:"category"`
	Risk        string `json:"risk"`
	Description string `json:"description,omitempty"`
}

// Confidence pairs a coarse level with human-readable reasons.
type Confidence struct {
	Level   string   `json:"level"`
	Reasons []string `json:"reasons,omitempty"`
}

// RuleEvaluation is the transient output of Evaluate; it is never persisted
// on its own.
type RuleEvaluation struct {
	Hits       []Hit      `json:"hits"`
	Confidence Confidence `json:"confidence"`
}

// NormalizeRisk maps unknown risk strings to medium.
func NormalizeRisk(risk string) string {
	switch strings.ToLower(strings.TrimSpace(risk)) {
	case RiskLow:
		return RiskLow
	case RiskHigh:
		return RiskHigh
	default:
		return RiskMedium
	}
}

// BumpRisk escalates a risk level one step, capped at high.
func BumpRisk(risk string) string {
	switch NormalizeRisk(risk) {
	case RiskLow:
		return RiskMedium
	default:
		return RiskHigh
	}
}
