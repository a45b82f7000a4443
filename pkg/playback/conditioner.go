// Package playback conditions synthesized PCM before it is handed to the
// serial bridge: sample-rate inference from TTS response headers, a
// downsample-only resampler, and saturating gain (spec §4.4, §6).
package playback

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// headerRateKeys are checked in order; the first present and parseable
// wins.
var headerRateKeys = []string{
	"x-audio-sample-rate",
	"x-sample-rate",
	"sample-rate",
	"samplerate",
}

// contentTypeRateParams names the content-type parameters that carry a
// sample rate when no header does.
var contentTypeRateParams = map[string]bool{"rate": true, "samplerate": true}

// InferSampleRate looks for a sample rate in headers (case-insensitive
// keys) and falls back to content-type parameters. It returns ok=false if
// neither source yields a rate, in which case the caller applies its
// configured default.
func InferSampleRate(headers map[string]string, contentType string) (rate int, ok bool) {
	lower := make(map[string]string, len(headers))
	for k, v := range headers {
		lower[strings.ToLower(k)] = v
	}
	for _, key := range headerRateKeys {
		if v, present := lower[key]; present {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				return n, true
			}
		}
	}
	for _, part := range strings.Split(contentType, ";") {
		name, value, found := strings.Cut(part, "=")
		if !found {
			continue
		}
		if contentTypeRateParams[strings.ToLower(strings.TrimSpace(name))] {
			if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

// ErrUpsampleUnsupported is returned by Resample when targetRate exceeds
// srcRate; playback never upsamples (spec §9).
var ErrUpsampleUnsupported = errors.New("playback: upsampling is not supported")

// Resample converts mono 16-bit PCM from srcRate to targetRate by linear
// interpolation. targetRate <= 0 or equal to srcRate is a no-op. It never
// upsamples.
func Resample(pcm []byte, srcRate, targetRate int) ([]byte, int, error) {
	if targetRate <= 0 || targetRate == srcRate {
		return pcm, srcRate, nil
	}
	if targetRate > srcRate {
		return nil, 0, ErrUpsampleUnsupported
	}

	samples := samplesFromPCM(pcm)
	ratio := float64(srcRate) / float64(targetRate)
	targetLen := int(float64(len(samples)) / ratio)
	if targetLen < 1 {
		targetLen = 1
	}
	out := make([]int16, targetLen)
	for i := range out {
		srcIndex := float64(i) * ratio
		left := int(math.Floor(srcIndex))
		right := left + 1
		if right > len(samples)-1 {
			right = len(samples) - 1
		}
		frac := srcIndex - float64(left)
		if right == left || len(samples) == 0 {
			if left < len(samples) {
				out[i] = samples[left]
			}
			continue
		}
		value := float64(samples[left]) + (float64(samples[right])-float64(samples[left]))*frac
		out[i] = clampInt16(math.Round(value))
	}
	return pcmFromSamples(out), targetRate, nil
}

// ApplyGain scales pcm by 10^(gainDB/20) with int16 saturation. gainDB ==
// 0 and empty pcm are no-ops.
func ApplyGain(pcm []byte, gainDB float64) []byte {
	if len(pcm) == 0 || gainDB == 0 {
		return pcm
	}
	factor := math.Pow(10.0, gainDB/20.0)
	samples := samplesFromPCM(pcm)
	out := make([]int16, len(samples))
	for i, s := range samples {
		out[i] = clampInt16(math.Round(float64(s) * factor))
	}
	return pcmFromSamples(out)
}

func clampInt16(v float64) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

func samplesFromPCM(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(uint16(pcm[2*i]) | uint16(pcm[2*i+1])<<8)
	}
	return out
}

func pcmFromSamples(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[2*i] = byte(uint16(s))
		out[2*i+1] = byte(uint16(s) >> 8)
	}
	return out
}
