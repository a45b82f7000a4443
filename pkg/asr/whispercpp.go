package asr

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/gradi/mediation/pkg/audio"
)

// WhisperCPP is an offline backend that shells out to a whisper.cpp
// `main`/`whisper-cli` binary. It writes PCM to a temp WAV file and parses
// the tool's `--output-json` file, matching the CLI-wrapper shape named in
// spec §9 ("three back-ends: offline CLI, local model, accelerated
// in-process").
type WhisperCPP struct {
	BinaryPath string
	ModelPath  string
	Language   string
}

// NewWhisperCPP builds a CLI-wrapper backend bound to a whisper.cpp binary
// and GGML model file.
func NewWhisperCPP(binaryPath, modelPath string) *WhisperCPP {
	return &WhisperCPP{BinaryPath: binaryPath, ModelPath: modelPath}
}

func (w *WhisperCPP) Name() string { return "whispercpp" }

func (w *WhisperCPP) TranscribePCM(ctx context.Context, pcm []byte, sampleRate int) (Result, error) {
	tmp, err := os.CreateTemp("", "gradi-asr-*.wav")
	if err != nil {
		return Result{}, fmt.Errorf("asr: temp wav: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(audio.NewWavBuffer(pcm, sampleRate)); err != nil {
		tmp.Close()
		return Result{}, fmt.Errorf("asr: write temp wav: %w", err)
	}
	tmp.Close()

	result, err := w.TranscribeFile(ctx, tmp.Name())
	result.AudioPath = "" // the temp file is removed on return; callers that need persistence use a real path
	return result, err
}

func (w *WhisperCPP) TranscribeFile(ctx context.Context, path string) (Result, error) {
	outPrefix := path // whisper.cpp writes path+".json" with --output-json
	args := []string{
		"-m", w.ModelPath,
		"-f", path,
		"--output-json",
		"--output-file", outPrefix,
		"--no-prints",
	}
	if w.Language != "" {
		args = append(args, "-l", w.Language)
	}

	cmd := exec.CommandContext(ctx, w.BinaryPath, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return Result{}, fmt.Errorf("asr: whisper.cpp run failed: %w (%s)", err, string(out))
	}

	jsonPath := outPrefix + ".json"
	defer os.Remove(jsonPath)

	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return Result{}, fmt.Errorf("asr: read whisper.cpp output %s: %w", jsonPath, err)
	}

	var decoded struct {
		Transcription []struct {
			Text    string `json:"text"`
			Offsets struct {
				From int `json:"from"`
				To   int `json:"to"`
			} `json:"offsets"`
		} `json:"transcription"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return Result{}, fmt.Errorf("asr: parse whisper.cpp json: %w", err)
	}

	result := Result{AudioPath: filepath.Clean(path)}
	for _, seg := range decoded.Transcription {
		result.Text += seg.Text
		result.Segments = append(result.Segments, Segment{
			Text:       seg.Text,
			StartTimeS: float64(seg.Offsets.From) / 1000.0,
			EndTimeS:   float64(seg.Offsets.To) / 1000.0,
		})
	}
	return result, nil
}

var _ Provider = (*WhisperCPP)(nil)
