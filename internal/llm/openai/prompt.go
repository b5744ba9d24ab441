package openai

import (
	"strings"
)

// Message represents a chat message.
type Message struct {
	Role    string
	Content string
}

const systemPrompt = "You are a food ingredient safety analyst. Respond with JSON only. No markdown. Never omit keys. Output must match the schema exactly."

const promptTemplate = `Analyze the packaged-food ingredient list below and produce a health assessment.

Active user preference: {{PREFERENCE}}
{{FOCUS}}

Reply with a single JSON object matching this schema exactly:
{
  "health_score": integer 0-100,
  "summary": "one-paragraph plain-language summary",
  "table": [
    {"ingredient": "string", "category": "string", "function": "string", "risk": "low|medium|high|unknown", "note": "string"}
  ],
  "ingredients": ["every ingredient found in the text"],
  "warnings": [
    {"type": "string", "ingredients": ["string"], "message": "string"}
  ],
  "overall": "overall assessment",
  "recommendation": "actionable advice",
  "preference_summary": "summary focused on the active preference, or empty string",
  "preference_ingredients": ["ingredients most relevant to the preference"],
  "score_breakdown": {"additives": 0-100, "sugar": 0-100, "fat": 0-100, "sodium": 0-100, "natural": 0-100}
}

Ingredient list text:
{{LABEL_TEXT}}`

// preferenceFocus steers which health dimensions the analysis emphasizes.
var preferenceFocus = map[string]string{
	"none":        "Focus instruction: give a balanced general-purpose assessment with no special emphasis.",
	"allergy":     "Focus instruction: emphasize identifying potential allergens (milk, soy, peanut, wheat, egg, sulfites, artificial colorants) and give explicit avoidance advice.",
	"kids":        "Focus instruction: emphasize suitability for children: added sugars, sweeteners, artificial colorants, caffeine, and preservatives children should limit.",
	"weight_loss": "Focus instruction: emphasize added sugar, total fat, refined carbohydrates, and calorie density; frame advice around weight management.",
	"health":      "Focus instruction: emphasize overall healthfulness: additive load, sodium, trans fats, and degree of processing.",
	"fitness":     "Focus instruction: emphasize protein quality, sodium, added sugar, and ingredients relevant to training and recovery.",
	"diabetes":    "Focus instruction: emphasize sugars, syrups, refined starches, and glycemic impact; flag ingredients that spike blood glucose.",
	"pregnancy":   "Focus instruction: emphasize caffeine, alcohol traces, certain additives, and ingredients pregnant women are advised to limit.",
	"elderly":     "Focus instruction: emphasize sodium, added sugar, and additives relevant to common chronic conditions in older adults.",
}

// BuildPrompt creates the chat messages for a label analysis request.
// Unknown preferences fall back to the general-purpose instruction.
func BuildPrompt(labelText, preference string) []Message {
	preference = strings.ToLower(strings.TrimSpace(preference))
	focus, ok := preferenceFocus[preference]
	if !ok {
		preference = "none"
		focus = preferenceFocus["none"]
	}

	replacer := strings.NewReplacer(
		"{{PREFERENCE}}", preference,
		"{{FOCUS}}", focus,
		"{{LABEL_TEXT}}", labelText,
	)
	return []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: replacer.Replace(promptTemplate)},
	}
}
