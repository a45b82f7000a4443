// Package turncontroller implements the top-level turn state machine
// described in spec §4.4: it consumes serial-bridge and VAD events,
// invokes ASR/LLM/TTS, enforces timeouts and guardrails, and drives the
// half-duplex capture/playback interlock.
package turncontroller

import (
	"fmt"
	"time"

	"github.com/gradi/mediation/pkg/vad"
)

// Config is a validated configuration record. Start from DefaultConfig;
// New checks it with Validate. The zero value is not usable (spec §9
// "Frozen configuration records").
type Config struct {
	SampleRate         int
	PlaybackSampleRate int
	PlaybackGainDB     float64

	VAD vad.Config

	MaxCaptureSeconds    float64 // 0 disables the timeout guard
	MinSegmentDuration   float64
	MinMeanAbsAmplitude  float64
	CaptureResumeDelay   time.Duration
	ApplyPlaybackHighPass bool

	ASRTimeout           time.Duration
	LLMTimeout           time.Duration
	TTSFirstChunkTimeout time.Duration
	PlaybackTimeout      time.Duration

	TTSExpectedSampleRate int
	RewritePromptTemplate string // not read by the controller; LLM backends take their template at construction

	ReadTimeout time.Duration // per-iteration serial read timeout (spec §4.4 step 4, ~500ms)
	LogPath     string
}

// DefaultConfig returns the defaults named throughout spec §4, §6 with the
// given sample rate, VAD config, and log path plugged in.
func DefaultConfig(sampleRate int, vadCfg vad.Config, logPath string) Config {
	return Config{
		SampleRate:            sampleRate,
		PlaybackSampleRate:    sampleRate,
		PlaybackGainDB:        0,
		VAD:                   vadCfg,
		MaxCaptureSeconds:     0,
		MinSegmentDuration:    0.3,
		MinMeanAbsAmplitude:   200,
		CaptureResumeDelay:    750 * time.Millisecond,
		ApplyPlaybackHighPass: true,
		ASRTimeout:            15 * time.Second,
		LLMTimeout:            20 * time.Second,
		TTSFirstChunkTimeout:  5 * time.Second,
		PlaybackTimeout:       20 * time.Second,
		TTSExpectedSampleRate: 24000,
		ReadTimeout:           500 * time.Millisecond,
		LogPath:               logPath,
	}
}

// Validate rejects out-of-range construction input (spec §7 ConfigError).
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("turncontroller: %w: sample_rate must be positive", ErrConfig)
	}
	if c.PlaybackSampleRate <= 0 {
		return fmt.Errorf("turncontroller: %w: playback_sample_rate must be positive", ErrConfig)
	}
	if c.MinSegmentDuration < 0 {
		return fmt.Errorf("turncontroller: %w: min_segment_duration must be >= 0", ErrConfig)
	}
	if c.MinMeanAbsAmplitude < 0 {
		return fmt.Errorf("turncontroller: %w: min_mean_abs_amplitude must be >= 0", ErrConfig)
	}
	if c.ASRTimeout <= 0 || c.LLMTimeout <= 0 || c.TTSFirstChunkTimeout <= 0 || c.PlaybackTimeout <= 0 {
		return fmt.Errorf("turncontroller: %w: stage timeouts must be positive", ErrConfig)
	}
	if c.TTSExpectedSampleRate <= 0 {
		return fmt.Errorf("turncontroller: %w: tts_expected_sample_rate must be positive", ErrConfig)
	}
	return nil
}
