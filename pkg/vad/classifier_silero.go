//go:build silero

package vad

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// SileroClassifier runs the Silero VAD ONNX model in-process via
// onnxruntime_go. It is built only with `-tags silero`, matching the
// native/stub split used by the Silero VAD adapter in the example pack
// (internal/engine/native_silero.go): a project that doesn't need the
// onnxruntime shared library around can link the stub build instead.
type SileroClassifier struct {
	mu        sync.Mutex
	session   *ort.AdvancedSession
	input     *ort.Tensor[float32]
	output    *ort.Tensor[float32]
	threshold float32
}

// NativeAvailable reports whether the Silero ONNX classifier is linked in.
func NativeAvailable() bool { return true }

// NewSileroClassifier loads the ONNX model at modelPath and prepares a
// reusable inference session.
func NewSileroClassifier(modelPath string, threshold float32) (*SileroClassifier, error) {
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("vad: onnxruntime init: %w", err)
		}
	}

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1), []int64{1, 1})
	if err != nil {
		return nil, fmt.Errorf("vad: input tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1), []int64{1, 1})
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("vad: output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"input"}, []string{"output"},
		[]ort.ArbitraryTensor{input}, []ort.ArbitraryTensor{output}, nil)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("vad: create session: %w", err)
	}

	return &SileroClassifier{session: session, input: input, output: output, threshold: threshold}, nil
}

// IsSpeech implements Classifier by running one forward pass per frame.
func (s *SileroClassifier) IsSpeech(frame []byte, sampleRate int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	samples := samplesFromPCM(frame)
	data := s.input.GetData()
	if len(data) != len(samples) {
		// Model input shape is frame-size dependent; recreate the tensor
		// lazily the first time we see a given frame length.
		s.input.Destroy()
		newInput, err := ort.NewTensor(ort.NewShape(1, int64(len(samples))), samples)
		if err != nil {
			return false
		}
		s.input = newInput
	} else {
		copy(data, samples)
	}

	if err := s.session.Run(); err != nil {
		return false
	}
	return s.output.GetData()[0] > s.threshold
}

// Close releases the ONNX Runtime session and tensors.
func (s *SileroClassifier) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil {
		s.session.Destroy()
	}
	s.input.Destroy()
	s.output.Destroy()
	return nil
}

func samplesFromPCM(frame []byte) []float32 {
	out := make([]float32, len(frame)/2)
	for i := range out {
		sample := int16(uint16(frame[2*i]) | uint16(frame[2*i+1])<<8)
		out[i] = float32(sample) / 32768.0
	}
	return out
}
