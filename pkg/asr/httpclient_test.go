package asr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTTPClient_TranscribePCM(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); !strings.HasPrefix(ct, "multipart/form-data") {
			t.Errorf("expected multipart content type, got %q", ct)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("expected Authorization header, got %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"text": "hello world",
			"segments": []map[string]any{
				{"text": "hello world", "start": 0.0, "end": 1.2},
			},
		})
	}))
	defer srv.Close()

	c := NewHTTPClient("test-backend", srv.URL, "test-key", "whisper-large-v3")
	result, err := c.TranscribePCM(context.Background(), make([]byte, 3200), 16000)
	if err != nil {
		t.Fatalf("TranscribePCM: %v", err)
	}
	if result.Text != "hello world" {
		t.Fatalf("expected text 'hello world', got %q", result.Text)
	}
	if len(result.Segments) != 1 || result.Segments[0].EndTimeS != 1.2 {
		t.Fatalf("expected one segment ending at 1.2s, got %+v", result.Segments)
	}
}

func TestHTTPClient_NonOKStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]any{"error": "boom"})
	}))
	defer srv.Close()

	c := NewHTTPClient("test-backend", srv.URL, "", "")
	_, err := c.TranscribePCM(context.Background(), make([]byte, 10), 16000)
	if err == nil {
		t.Fatal("expected an error for a non-200 response")
	}
}

func TestHTTPClient_Name(t *testing.T) {
	c := NewHTTPClient("groq-stt", "https://example.invalid", "", "")
	if c.Name() != "groq-stt" {
		t.Fatalf("expected Name() == 'groq-stt', got %q", c.Name())
	}
}
