package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGoogleTransform(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"rewritten"}]}}]}`))
	}))
	defer server.Close()

	g := &Google{apiKey: "test-key", url: server.URL, template: DefaultPromptTemplate, client: http.DefaultClient}
	result, err := g.Transform(context.Background(), "raw")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.OutputText != "rewritten" {
		t.Errorf("expected 'rewritten', got %q", result.OutputText)
	}
	if g.Name() != "google" {
		t.Errorf("expected name 'google', got %q", g.Name())
	}
}

func TestGoogleNoCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer server.Close()

	g := &Google{apiKey: "test-key", url: server.URL, template: DefaultPromptTemplate, client: http.DefaultClient}
	if _, err := g.Transform(context.Background(), "hi"); err == nil {
		t.Fatal("expected error for empty candidates")
	}
}
