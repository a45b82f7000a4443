package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestChatCompletionsTransform(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"clean rewrite"}}]}`))
	}))
	defer server.Close()

	c := NewChatCompletions("openai", server.URL, "test-key", "gpt-4o", "")
	result, err := c.Transform(context.Background(), "um so like hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.OutputText != "clean rewrite" {
		t.Errorf("expected 'clean rewrite', got %q", result.OutputText)
	}
	if result.InputText != "um so like hello" {
		t.Errorf("expected input text preserved, got %q", result.InputText)
	}
	if c.Name() != "openai" {
		t.Errorf("expected name 'openai', got %q", c.Name())
	}
}

func TestChatCompletionsNoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	c := NewChatCompletions("groq", server.URL, "test-key", "", "")
	if _, err := c.Transform(context.Background(), "hi"); err == nil {
		t.Fatal("expected error for empty choices")
	}
}
