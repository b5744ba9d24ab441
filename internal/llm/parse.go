package llm

import (
	"encoding/json"
	"strings"
)

const parseErrorSnippet = 2000

// ParseError reports that no extraction strategy produced valid JSON. It
// keeps a truncated copy of the original reply for operator diagnosis; the
// raw text never appears in the error string, which may be user-facing.
type ParseError struct {
	Content string
}

func (e *ParseError) Error() string {
	return "no JSON object found in model reply"
}

// Snippet returns the retained reply, capped for log payloads.
func (e *ParseError) Snippet() string {
	return Truncate(e.Content, parseErrorSnippet)
}

// ExtractJSON recovers a JSON object from a model reply. Strategies are tried
// in order, first success wins: the raw content as-is, the content with a
// surrounding code fence stripped, and the substring between the first '{'
// and the last '}'.
func ExtractJSON(content string) (json.RawMessage, error) {
	for _, strategy := range strategies {
		if raw, ok := strategy(content); ok {
			return raw, nil
		}
	}
	return nil, &ParseError{Content: content}
}

// Each strategy is pure: it either yields a valid JSON object or misses.
var strategies = []func(string) (json.RawMessage, bool){
	parseDirect,
	parseFenced,
	parseBraces,
}

func parseDirect(content string) (json.RawMessage, bool) {
	trimmed := strings.TrimSpace(content)
	if json.Valid([]byte(trimmed)) && strings.HasPrefix(trimmed, "{") {
		return json.RawMessage(trimmed), true
	}
	return nil, false
}

func parseFenced(content string) (json.RawMessage, bool) {
	lines := strings.Split(content, "\n")
	start := -1
	end := -1
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			if start == -1 {
				start = i
			} else {
				end = i
				break
			}
		}
	}
	if start == -1 || end == -1 || end <= start+1 {
		return nil, false
	}
	return parseDirect(strings.Join(lines[start+1:end], "\n"))
}

func parseBraces(content string) (json.RawMessage, bool) {
	first := strings.Index(content, "{")
	last := strings.LastIndex(content, "}")
	if first == -1 || last <= first {
		return nil, false
	}
	return parseDirect(content[first : last+1])
}

// Truncate caps s at max bytes for log and error payloads.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
