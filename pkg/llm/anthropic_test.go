package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAnthropicTransform(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"content":[{"text":"tidy sentence"}]}`))
	}))
	defer server.Close()

	a := &Anthropic{apiKey: "test-key", url: server.URL, model: "claude-3-5-sonnet-20241022", template: DefaultPromptTemplate, client: http.DefaultClient}
	result, err := a.Transform(context.Background(), "raw transcript")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.OutputText != "tidy sentence" {
		t.Errorf("expected 'tidy sentence', got %q", result.OutputText)
	}
	if a.Name() != "anthropic" {
		t.Errorf("expected name 'anthropic', got %q", a.Name())
	}
}

func TestAnthropicNoContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"content":[]}`))
	}))
	defer server.Close()

	a := &Anthropic{apiKey: "test-key", url: server.URL, model: "x", template: DefaultPromptTemplate, client: http.DefaultClient}
	if _, err := a.Transform(context.Background(), "hi"); err == nil {
		t.Fatal("expected error for empty content")
	}
}
