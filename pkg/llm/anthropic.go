package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Anthropic is a single-shot rewrite backend against the Messages API.
type Anthropic struct {
	apiKey   string
	url      string
	model    string
	template string
	client   *http.Client
}

// NewAnthropic builds an Anthropic backend. template defaults to
// DefaultPromptTemplate when empty.
func NewAnthropic(apiKey, model, template string) *Anthropic {
	if model == "" {
		model = "claude-3-5-sonnet-20241022"
	}
	if template == "" {
		template = DefaultPromptTemplate
	}
	return &Anthropic{apiKey: apiKey, url: "https://api.anthropic.com/v1/messages", model: model, template: template, client: http.DefaultClient}
}

func (a *Anthropic) Name() string { return "anthropic" }

func (a *Anthropic) Transform(ctx context.Context, text string) (Result, error) {
	payload := map[string]any{
		"model":      a.model,
		"max_tokens": 1024,
		"messages": []chatMessage{
			{Role: "user", Content: fmt.Sprintf(a.template, text)},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := a.client.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("llm: anthropic error (status %d): %s", resp.StatusCode, raw)
	}

	var decoded struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return Result{}, fmt.Errorf("llm: decode anthropic response: %w", err)
	}
	if len(decoded.Content) == 0 {
		return Result{}, fmt.Errorf("llm: anthropic returned no content")
	}
	return Result{InputText: text, OutputText: decoded.Content[0].Text, Raw: string(raw)}, nil
}

var _ Provider = (*Anthropic)(nil)
