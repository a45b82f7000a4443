package asr

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	vosk "github.com/alphacep/vosk-api/go"
)

// Vosk runs a Kaldi-based model in-process via cgo, the "local model"
// back-end named in spec §9. One Recognizer is not safe for concurrent
// use, so calls are serialized; the turn controller only ever has one
// segment in flight anyway (spec §5).
type Vosk struct {
	mu         sync.Mutex
	model      *vosk.VoskModel
	sampleRate float64
}

// NewVosk loads a Vosk model directory. sampleRate must match the PCM the
// controller will feed it (normally the capture sample rate).
func NewVosk(modelPath string, sampleRate int) (*Vosk, error) {
	model, err := vosk.NewModel(modelPath)
	if err != nil {
		return nil, fmt.Errorf("asr: load vosk model %s: %w", modelPath, err)
	}
	return &Vosk{model: model, sampleRate: float64(sampleRate)}, nil
}

func (v *Vosk) Name() string { return "vosk" }

func (v *Vosk) TranscribePCM(ctx context.Context, pcm []byte, sampleRate int) (Result, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	rate := v.sampleRate
	if sampleRate > 0 {
		rate = float64(sampleRate)
	}
	rec, err := vosk.NewRecognizer(v.model, rate)
	if err != nil {
		return Result{}, fmt.Errorf("asr: new vosk recognizer: %w", err)
	}
	defer rec.Free()

	rec.AcceptWaveform(pcm)
	raw := rec.FinalResult()

	var decoded struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return Result{}, fmt.Errorf("asr: parse vosk result: %w", err)
	}
	return Result{Text: decoded.Text}, nil
}

func (v *Vosk) TranscribeFile(ctx context.Context, path string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("asr: read %s: %w", path, err)
	}
	return v.TranscribePCM(ctx, data, int(v.sampleRate))
}

func (v *Vosk) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.model.Free()
	return nil
}

var _ Provider = (*Vosk)(nil)
