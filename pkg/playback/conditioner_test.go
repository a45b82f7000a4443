package playback

import (
	"bytes"
	"testing"
)

func TestInferSampleRate_HeaderWins(t *testing.T) {
	rate, ok := InferSampleRate(map[string]string{"X-Audio-Sample-Rate": "24000"}, "audio/pcm")
	if !ok || rate != 24000 {
		t.Fatalf("expected 24000/true, got %d/%v", rate, ok)
	}
}

func TestInferSampleRate_ContentTypeFallback(t *testing.T) {
	rate, ok := InferSampleRate(nil, "audio/pcm; rate=22050")
	if !ok || rate != 22050 {
		t.Fatalf("expected 22050/true, got %d/%v", rate, ok)
	}
}

func TestInferSampleRate_NoneFound(t *testing.T) {
	_, ok := InferSampleRate(map[string]string{"content-length": "100"}, "audio/pcm")
	if ok {
		t.Fatal("expected ok=false when no rate is present")
	}
}

func TestResample_NoOpWhenRatesEqual(t *testing.T) {
	pcm := []byte{1, 2, 3, 4, 5, 6}
	out, rate, err := Resample(pcm, 16000, 16000)
	if err != nil {
		t.Fatalf("Resample: %v", err)
	}
	if rate != 16000 || !bytes.Equal(out, pcm) {
		t.Fatalf("expected no-op passthrough, got rate=%d out=%v", rate, out)
	}
}

func TestResample_RejectsUpsampling(t *testing.T) {
	_, _, err := Resample([]byte{1, 2, 3, 4}, 16000, 24000)
	if err != ErrUpsampleUnsupported {
		t.Fatalf("expected ErrUpsampleUnsupported, got %v", err)
	}
}

func TestResample_DownsampleScalesLength(t *testing.T) {
	// 24000 -> 16000: N samples become N*16000/24000.
	n := 300
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(i % 100)
	}
	pcm := pcmFromSamples(samples)

	out, rate, err := Resample(pcm, 24000, 16000)
	if err != nil {
		t.Fatalf("Resample: %v", err)
	}
	if rate != 16000 {
		t.Fatalf("expected target rate 16000, got %d", rate)
	}
	wantLen := n * 16000 / 24000
	gotLen := len(out) / 2
	if gotLen != wantLen {
		t.Fatalf("expected %d output samples, got %d", wantLen, gotLen)
	}
}

func TestResample_Deterministic(t *testing.T) {
	samples := make([]int16, 100)
	for i := range samples {
		samples[i] = int16(i * 37 % 1000)
	}
	pcm := pcmFromSamples(samples)

	out1, _, _ := Resample(pcm, 48000, 16000)
	out2, _, _ := Resample(pcm, 48000, 16000)
	if !bytes.Equal(out1, out2) {
		t.Fatal("expected deterministic resampling output across identical calls")
	}
}

func TestApplyGain_ZeroDBIsNoOp(t *testing.T) {
	pcm := []byte{1, 2, 3, 4}
	out := ApplyGain(pcm, 0)
	if !bytes.Equal(out, pcm) {
		t.Fatalf("expected 0dB gain to be a no-op, got %v", out)
	}
}

func TestApplyGain_SaturatesAtInt16Bounds(t *testing.T) {
	samples := []int16{30000, -30000}
	pcm := pcmFromSamples(samples)

	out := ApplyGain(pcm, 12) // factor ~3.98, would overflow without clamping
	outSamples := samplesFromPCM(out)
	if outSamples[0] != 32767 {
		t.Fatalf("expected positive saturation at 32767, got %d", outSamples[0])
	}
	if outSamples[1] != -32768 {
		t.Fatalf("expected negative saturation at -32768, got %d", outSamples[1])
	}
}

func TestApplyGain_EmptyPCMIsNoOp(t *testing.T) {
	out := ApplyGain(nil, 6)
	if len(out) != 0 {
		t.Fatalf("expected empty output for empty input, got %v", out)
	}
}
