package rules

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode"

	"labelscan-backend/internal/shared/telemetry"
)

//go:embed data/ingredients.json
var embeddedDataset []byte

type dataset struct {
	Version string     `json:"version"`
	Items   []RuleItem `json:"items"`
}

// Engine is the static ingredient matcher. It is built once at startup and
// safe for unlimited concurrent reads.
type Engine struct {
	version  string
	lookup   map[string]RuleItem
	degraded bool
}

// NewEngine loads the curated dataset from path, or the embedded copy when
// path is empty. Load failure yields a degraded engine: Evaluate keeps
// working but always reports zero hits with low confidence.
func NewEngine(path string) *Engine {
	data := embeddedDataset
	if strings.TrimSpace(path) != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return degradedEngine(fmt.Errorf("read dataset %s: %w", path, err))
		}
		data = raw
	}

	var ds dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return degradedEngine(fmt.Errorf("parse dataset: %w", err))
	}
	if len(ds.Items) == 0 {
		return degradedEngine(fmt.Errorf("dataset has no items"))
	}

	lookup := make(map[string]RuleItem, len(ds.Items)*2)
	for _, item := range ds.Items {
		if key := NormalizeToken(item.Name); key != "" {
			lookup[key] = item
		}
		for _, alias := range item.Aliases {
			if key := NormalizeToken(alias); key != "" {
				lookup[key] = item
			}
		}
	}

	telemetry.Info("rules.loaded", map[string]any{
		"version": ds.Version,
		"items":   len(ds.Items),
		"tokens":  len(lookup),
	})
	return &Engine{version: ds.Version, lookup: lookup}
}

func degradedEngine(err error) *Engine {
	telemetry.Error("rules.load_failed", map[string]any{"error": err.Error()})
	return &Engine{degraded: true}
}

// Degraded reports whether the engine failed to load its dataset.
func (e *Engine) Degraded() bool { return e.degraded }

// Version returns the loaded dataset version, or "" when degraded.
func (e *Engine) Version() string { return e.version }

// Evaluate matches the label text against the curated rules. preference is
// one of allergy|kids|weight_loss|health|fitness|none; when it matches a
// rule's group tags the rule's risk is escalated one step. Pure function over
// immutable state.
func (e *Engine) Evaluate(text, preference string) RuleEvaluation {
	if e.degraded {
		return RuleEvaluation{
			Hits: []Hit{},
			Confidence: Confidence{
				Level:   ConfidenceLow,
				Reasons: []string{"ingredient rule data unavailable; assessment relies on model output only"},
			},
		}
	}

	preference = strings.ToLower(strings.TrimSpace(preference))
	hits := make([]Hit, 0, 8)
	seen := make(map[string]bool)
	for _, token := range SplitIngredients(text) {
		key := NormalizeToken(token)
		if key == "" {
			continue
		}
		item, ok := e.lookup[key]
		if !ok || seen[item.Name] {
			continue
		}
		seen[item.Name] = true

		risk := NormalizeRisk(item.Risk)
		if preferenceMatches(preference, item.Groups) {
			risk = BumpRisk(risk)
		}
		hits = append(hits, Hit{
			Name:        item.Name,
			Category:    item.Category,
			Risk:        risk,
			Description: item.Description,
		})
	}

	if len(hits) == 0 {
		return RuleEvaluation{
			Hits: hits,
			Confidence: Confidence{
				Level:   ConfidenceMedium,
				Reasons: []string{"no curated ingredient rule matched; assessment relies on model output only"},
			},
		}
	}
	return RuleEvaluation{
		Hits: hits,
		Confidence: Confidence{
			Level:   ConfidenceHigh,
			Reasons: []string{fmt.Sprintf("%d curated ingredient rule(s) matched", len(hits))},
		},
	}
}

var (
	headerRe     = regexp.MustCompile(`(?i)(配料表|配料|ingredients)\s*[:：]?`)
	separatorSet = "，,、;；/|\n\r"
)

// SplitIngredients strips label header phrases, normalizes the full-width
// colon, and splits the text on the usual ingredient separators.
func SplitIngredients(text string) []string {
	text = headerRe.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "：", ":")
	return strings.FieldsFunc(text, func(r rune) bool {
		return strings.ContainsRune(separatorSet, r)
	})
}

// NormalizeToken case-folds, strips all whitespace, and maps full-width
// parentheses to half-width. It is idempotent.
func NormalizeToken(token string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(token) {
		switch {
		case unicode.IsSpace(r):
			continue
		case r == '（':
			b.WriteRune('(')
		case r == '）':
			b.WriteRune(')')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func preferenceMatches(preference string, groups []string) bool {
	if preference == "" || preference == "none" {
		return false
	}
	for _, g := range groups {
		if strings.EqualFold(g, preference) {
			return true
		}
	}
	return false
}
