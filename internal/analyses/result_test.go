package analyses

import (
	"errors"
	"strings"
	"testing"

	"labelscan-backend/internal/rules"
)

func TestParseResultFromFencedReply(t *testing.T) {
	content := "Sure! Here is the analysis:\n```json\n{\"health_score\": 65, \"summary\": \"含添加糖和防腐剂\", \"ingredients\": [\"水\", \"白砂糖\", \"山梨酸钾\"]}\n```"
	result, err := ParseResult(content)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if result.HealthScore != 65 {
		t.Fatalf("unexpected score %d", result.HealthScore)
	}
	if len(result.Ingredients) != 3 {
		t.Fatalf("unexpected ingredients %v", result.Ingredients)
	}
}

func TestParseResultProseOnly(t *testing.T) {
	_, err := ParseResult("The label looks mostly harmless to me.")
	if err == nil {
		t.Fatal("expected an error")
	}
	var parseErr *ResultParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected *ResultParseError, got %T", err)
	}
	if strings.Contains(err.Error(), "harmless") {
		t.Fatal("raw reply must not leak into the error string")
	}
	if !strings.Contains(parseErr.Snippet(), "harmless") {
		t.Fatal("raw reply must be retained for diagnostics")
	}
}

func TestParseResultSchemaMismatch(t *testing.T) {
	_, err := ParseResult(`{"health_score": "very good"}`)
	if err == nil {
		t.Fatal("expected an error for a mistyped field")
	}
	var parseErr *ResultParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected *ResultParseError, got %T", err)
	}
}

func TestFinalizeClampsScores(t *testing.T) {
	result := &Result{
		HealthScore: 140,
		Summary:     "s",
		ScoreBreakdown: map[string]int{
			"sugar":    -5,
			"sodium":   250,
			"invented": 50,
		},
	}
	result.Finalize(rules.RuleEvaluation{})

	if result.HealthScore != 100 {
		t.Fatalf("expected clamped score 100, got %d", result.HealthScore)
	}
	if got := result.ScoreBreakdown["sugar"]; got != 0 {
		t.Fatalf("expected sugar clamped to 0, got %d", got)
	}
	if got := result.ScoreBreakdown["sodium"]; got != 100 {
		t.Fatalf("expected sodium clamped to 100, got %d", got)
	}
	if _, ok := result.ScoreBreakdown["invented"]; ok {
		t.Fatal("unknown breakdown dimensions must be dropped")
	}
}

func TestFinalizeNormalizesRowRisk(t *testing.T) {
	result := &Result{
		Summary: "s",
		Table: []TableRow{
			{Ingredient: "水", Risk: "low"},
			{Ingredient: "白砂糖", Risk: "severe"},
		},
	}
	result.Finalize(rules.RuleEvaluation{})

	if result.Table[0].Risk != RiskLow {
		t.Fatalf("valid risk must be kept, got %s", result.Table[0].Risk)
	}
	if result.Table[1].Risk != RiskUnknown {
		t.Fatalf("invalid risk must map to unknown, got %s", result.Table[1].Risk)
	}
}

func TestFinalizeBackfillsSummaryAndTable(t *testing.T) {
	result := &Result{
		Ingredients: []string{"水", "白砂糖"},
	}
	result.Finalize(rules.RuleEvaluation{})

	if result.Summary == "" {
		t.Fatal("summary must be backfilled from the ingredient list")
	}
	if len(result.Table) != 2 {
		t.Fatalf("table must be backfilled, got %d rows", len(result.Table))
	}
	for _, row := range result.Table {
		if row.Risk != RiskUnknown {
			t.Fatalf("backfilled rows carry unknown risk, got %s", row.Risk)
		}
	}
}

func TestFinalizeMergesRuleEvaluation(t *testing.T) {
	eval := rules.RuleEvaluation{
		Hits: []rules.Hit{{Name: "白砂糖", Category: "甜味剂", Risk: rules.RiskMedium}},
		Confidence: rules.Confidence{
			Level:   rules.ConfidenceHigh,
			Reasons: []string{"1 curated ingredient rule(s) matched"},
		},
	}
	result := &Result{HealthScore: 50, Summary: "s"}
	result.Finalize(eval)

	if len(result.RuleHits) != 1 || result.RuleHits[0].Name != "白砂糖" {
		t.Fatalf("rule hits not merged: %+v", result.RuleHits)
	}
	if result.RuleConfidence.Level != rules.ConfidenceHigh {
		t.Fatalf("rule confidence not merged: %+v", result.RuleConfidence)
	}
}
