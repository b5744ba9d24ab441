package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"labelscan-backend/internal/llm"
)

func TestAnalyzeLabelSuccess(t *testing.T) {
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": `{"health_score": 60}`}},
			},
			"usage": map[string]int{"prompt_tokens": 100, "completion_tokens": 50, "total_tokens": 150},
		})
	}))
	defer srv.Close()

	client, err := NewClient("test-key", srv.URL, "test-model", time.Second)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	content, err := client.AnalyzeLabel(context.Background(), llm.AnalyzeInput{
		LabelText:  "配料：水，白砂糖",
		Preference: "kids",
	})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if content != `{"health_score": 60}` {
		t.Fatalf("unexpected content: %s", content)
	}

	if gotReq.Model != "test-model" {
		t.Fatalf("unexpected model: %s", gotReq.Model)
	}
	if gotReq.Temperature == nil || *gotReq.Temperature != 0.1 {
		t.Fatalf("expected temperature 0.1, got %v", gotReq.Temperature)
	}
	if len(gotReq.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(gotReq.Messages))
	}
	if !strings.Contains(gotReq.Messages[1].Content, "配料：水，白砂糖") {
		t.Fatal("label text missing from request")
	}
}

func TestAnalyzeLabelHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream overloaded", http.StatusBadGateway)
	}))
	defer srv.Close()

	client, err := NewClient("test-key", srv.URL, "test-model", time.Second)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = client.AnalyzeLabel(context.Background(), llm.AnalyzeInput{LabelText: "水"})
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "llm http status 502") {
		t.Fatalf("expected status in error, got %v", err)
	}
	if !strings.Contains(err.Error(), "upstream overloaded") {
		t.Fatalf("expected body snippet in error, got %v", err)
	}
}

func TestAnalyzeLabelTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client, err := NewClient("test-key", srv.URL, "test-model", 50*time.Millisecond)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = client.AnalyzeLabel(context.Background(), llm.AnalyzeInput{LabelText: "水"})
	if err == nil {
		t.Fatal("expected a timeout error")
	}
	if !strings.Contains(err.Error(), "llm request timeout") {
		t.Fatalf("expected timeout wrap, got %v", err)
	}
}

func TestAnalyzeLabelEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	client, err := NewClient("test-key", srv.URL, "test-model", time.Second)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = client.AnalyzeLabel(context.Background(), llm.AnalyzeInput{LabelText: "水"})
	if err == nil || !strings.Contains(err.Error(), "missing choices") {
		t.Fatalf("expected missing choices error, got %v", err)
	}
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient("", "http://x", "m", time.Second); err == nil {
		t.Fatal("expected error for missing api key")
	}
	if _, err := NewClient("k", "http://x", "", time.Second); err == nil {
		t.Fatal("expected error for missing model")
	}
}
