package main

// Exercise the rule engine against label text without the HTTP stack:
//   go run ./cmd/ruletest -text "配料：水，白砂糖，山梨酸钾" -preference kids

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"labelscan-backend/internal/rules"
	"labelscan-backend/internal/shared/config"
)

func main() {
	cfg := config.Load()

	text := flag.String("text", "", "Label text to evaluate")
	filePath := flag.String("file", "", "Path to a file containing label text")
	preference := flag.String("preference", "none", "Dietary preference dimension")
	asJSON := flag.Bool("json", false, "Print the evaluation as JSON")
	flag.Parse()

	labelText := strings.TrimSpace(*text)
	if labelText == "" && strings.TrimSpace(*filePath) != "" {
		data, err := os.ReadFile(*filePath)
		if err != nil {
			exitErr(fmt.Sprintf("read file: %v", err))
		}
		labelText = strings.TrimSpace(string(data))
	}
	if labelText == "" {
		exitErr("label text is required (use -text or -file)")
	}

	engine := rules.NewEngine(cfg.RulesPath)
	if engine.Degraded() {
		fmt.Fprintln(os.Stderr, "warning: rule dataset unavailable, matching degraded")
	}

	eval := engine.Evaluate(labelText, *preference)

	if *asJSON {
		out, err := json.MarshalIndent(eval, "", "  ")
		if err != nil {
			exitErr(fmt.Sprintf("marshal evaluation: %v", err))
		}
		fmt.Println(string(out))
		return
	}

	fmt.Printf("dataset version: %s\n", engine.Version())
	fmt.Printf("ingredients: %s\n", strings.Join(rules.SplitIngredients(labelText), ", "))
	fmt.Printf("hits: %d\n", len(eval.Hits))
	for _, hit := range eval.Hits {
		fmt.Printf("  %-12s %-10s %-8s %s\n", hit.Name, hit.Category, hit.Risk, hit.Description)
	}
	fmt.Printf("confidence: %s", eval.Confidence.Level)
	if len(eval.Confidence.Reasons) > 0 {
		fmt.Printf(" (%s)", strings.Join(eval.Confidence.Reasons, "; "))
	}
	fmt.Println()
}

func exitErr(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
