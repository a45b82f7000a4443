package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Google is a single-shot rewrite backend against the Gemini
// generateContent API.
type Google struct {
	apiKey   string
	url      string
	template string
	client   *http.Client
}

// NewGoogle builds a Google Gemini backend. template defaults to
// DefaultPromptTemplate when empty.
func NewGoogle(apiKey, model, template string) *Google {
	if model == "" {
		model = "gemini-1.5-flash"
	}
	if template == "" {
		template = DefaultPromptTemplate
	}
	url := "https://generativelanguage.googleapis.com/v1beta/models/" + model + ":generateContent"
	return &Google{apiKey: apiKey, url: url, template: template, client: http.DefaultClient}
}

func (g *Google) Name() string { return "google" }

func (g *Google) Transform(ctx context.Context, text string) (Result, error) {
	payload := map[string]any{
		"contents": []map[string]any{
			{
				"role": "user",
				"parts": []map[string]string{
					{"text": fmt.Sprintf(g.template, text)},
				},
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url+"?key="+g.apiKey, bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("llm: google error (status %d): %s", resp.StatusCode, raw)
	}

	var decoded struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return Result{}, fmt.Errorf("llm: decode google response: %w", err)
	}
	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return Result{}, fmt.Errorf("llm: google returned no candidates")
	}
	return Result{InputText: text, OutputText: decoded.Candidates[0].Content.Parts[0].Text, Raw: string(raw)}, nil
}

var _ Provider = (*Google)(nil)
