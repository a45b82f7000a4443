package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"

	"github.com/gradi/mediation/pkg/audio"
)

// HTTPClient is a multipart-upload whisper-style ASR backend: it wraps raw
// PCM as a WAV file and posts it to an OpenAI-compatible transcription
// endpoint (Groq, OpenAI, or a self-hosted whisper server all speak this
// shape). Adapted from the teacher's per-vendor STT clients into one
// configurable backend.
type HTTPClient struct {
	name    string
	url     string
	apiKey  string
	model   string
	client  *http.Client
	headers map[string]string
}

// NewHTTPClient builds a multipart ASR backend. name is used only for
// Provider.Name(); url/apiKey/model select the vendor.
func NewHTTPClient(name, url, apiKey, model string) *HTTPClient {
	return &HTTPClient{
		name:   name,
		url:    url,
		apiKey: apiKey,
		model:  model,
		client: http.DefaultClient,
	}
}

func (c *HTTPClient) Name() string { return c.name }

func (c *HTTPClient) TranscribePCM(ctx context.Context, pcm []byte, sampleRate int) (Result, error) {
	wavData := audio.NewWavBuffer(pcm, sampleRate)
	return c.upload(ctx, "audio.wav", bytes.NewReader(wavData))
}

func (c *HTTPClient) TranscribeFile(ctx context.Context, path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("asr: open %s: %w", path, err)
	}
	defer f.Close()
	return c.upload(ctx, path, f)
}

func (c *HTTPClient) upload(ctx context.Context, filename string, r io.Reader) (Result, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if c.model != "" {
		if err := writer.WriteField("model", c.model); err != nil {
			return Result{}, err
		}
	}
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return Result{}, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return Result{}, err
	}
	if err := writer.Close(); err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errBody any
		json.NewDecoder(resp.Body).Decode(&errBody)
		return Result{}, fmt.Errorf("asr: %s error (status %d): %v", c.name, resp.StatusCode, errBody)
	}

	var decoded struct {
		Text     string `json:"text"`
		Segments []struct {
			Text  string  `json:"text"`
			Start float64 `json:"start"`
			End   float64 `json:"end"`
		} `json:"segments"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Result{}, fmt.Errorf("asr: decode response: %w", err)
	}

	result := Result{Text: decoded.Text}
	for _, seg := range decoded.Segments {
		result.Segments = append(result.Segments, Segment{Text: seg.Text, StartTimeS: seg.Start, EndTimeS: seg.End})
	}
	return result, nil
}

var _ Provider = (*HTTPClient)(nil)
