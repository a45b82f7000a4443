// Package vad implements the incremental, frame-aligned voice-activity
// detector described in spec §4.3: a rolling PCM buffer that turns a
// continuous audio stream into SpeechStart/SpeechSegment events.
package vad

import (
	"fmt"
)

const bytesPerSample = 2

// allowed mirrors the sample rates and frame durations the detector
// supports; anything else is a construction-time ConfigError.
var allowedSampleRates = map[int]bool{8000: true, 16000: true, 32000: true, 48000: true}
var allowedFrameMS = map[int]bool{10: true, 20: true, 30: true}

// Config is an immutable, validated configuration record for a Stream.
// Construct it via NewConfig; the zero value is not usable.
type Config struct {
	SampleRate        int
	FrameMS           int
	Aggressiveness    int // 0 (permissive) .. 3 (strict)
	StartTriggerFrame int // consecutive speech frames required to open a segment
	StopTriggerFrame  int // consecutive silence frames required to close a segment
	PrerollFrames     int // frames backdated onto a segment's start

	frameBytes int
}

// NewConfig validates and freezes a Stream configuration.
func NewConfig(sampleRate, frameMS, aggressiveness, startTrigger, stopTrigger, preroll int) (Config, error) {
	if !allowedSampleRates[sampleRate] {
		return Config{}, fmt.Errorf("vad: unsupported sample rate %d", sampleRate)
	}
	if !allowedFrameMS[frameMS] {
		return Config{}, fmt.Errorf("vad: unsupported frame duration %dms", frameMS)
	}
	if aggressiveness < 0 || aggressiveness > 3 {
		return Config{}, fmt.Errorf("vad: aggressiveness must be in [0,3], got %d", aggressiveness)
	}
	if startTrigger < 1 {
		return Config{}, fmt.Errorf("vad: start_trigger_frames must be >= 1, got %d", startTrigger)
	}
	if stopTrigger < 1 {
		return Config{}, fmt.Errorf("vad: stop_trigger_frames must be >= 1, got %d", stopTrigger)
	}
	if preroll < 0 {
		preroll = 0
	}
	frameBytes := sampleRate * frameMS / 1000 * bytesPerSample
	return Config{
		SampleRate:        sampleRate,
		FrameMS:           frameMS,
		Aggressiveness:    aggressiveness,
		StartTriggerFrame: startTrigger,
		StopTriggerFrame:  stopTrigger,
		PrerollFrames:     preroll,
		frameBytes:        frameBytes,
	}, nil
}

// maxBufferFrames bounds the rolling buffer during long silence (spec §3).
const maxBufferFrames = 100

// SpeechStart is emitted when the detector latches onto speech.
type SpeechStart struct {
	StartTimeS float64
	StartByte  int64
}

// Segment is a completed speech segment sliced from the rolling buffer.
type Segment struct {
	StartTimeS float64
	EndTimeS   float64
	PCM        []byte
}

// Classifier decides whether a single frame contains speech. Production
// code plugs in a real detector (energy-based, WebRTC-style, or a learned
// model); tests use a scripted classifier.
type Classifier interface {
	IsSpeech(frame []byte, sampleRate int) bool
}

// Stream is a stateful incremental VAD over a continuous byte stream. It is
// not safe for concurrent use; the turn controller owns it exclusively
// (spec §5).
type Stream struct {
	cfg        Config
	classifier Classifier

	buffer        []byte
	processedByte int64 // processedBytes watermark; see spec §3 invariant
	cursor        int   // next unprocessed offset within buffer

	active     bool
	startFrame int64
	speechRun  int
	silenceRun int
}

// NewStream creates a Stream bound to cfg and classifier.
func NewStream(cfg Config, classifier Classifier) *Stream {
	return &Stream{cfg: cfg, classifier: classifier}
}

// Event is the sum type produced by AddAudio: exactly one of Start or
// Segment is non-nil.
type Event struct {
	Start   *SpeechStart
	Segment *Segment
}

// AddAudio feeds newly-received PCM bytes into the rolling buffer and
// returns every speech event produced by the frames that became complete
// as a result. Frame k always maps to absolute byte offset k*frameBytes,
// per the invariant in spec §3.
func (s *Stream) AddAudio(pcm []byte) []Event {
	if len(pcm) == 0 {
		return nil
	}
	s.buffer = append(s.buffer, pcm...)

	var events []Event
	frameBytes := s.cfg.frameBytes

	for s.cursor+frameBytes <= len(s.buffer) {
		frame := s.buffer[s.cursor : s.cursor+frameBytes]
		frameIndex := (s.processedByte + int64(s.cursor)) / int64(frameBytes)

		isSpeech := s.classifier.IsSpeech(frame, s.cfg.SampleRate)
		if isSpeech {
			s.speechRun++
			s.silenceRun = 0
		} else {
			s.speechRun = 0
			s.silenceRun++
		}

		if !s.active {
			if isSpeech && s.speechRun >= s.cfg.StartTriggerFrame {
				s.active = true
				tentativeStart := frameIndex - int64(s.cfg.StartTriggerFrame) + 1
				start := tentativeStart - int64(s.cfg.PrerollFrames)
				if start < 0 {
					start = 0
				}
				s.startFrame = start
				startByte := start * int64(frameBytes)
				startTime := float64(start) * float64(s.cfg.FrameMS) / 1000.0
				events = append(events, Event{Start: &SpeechStart{StartTimeS: startTime, StartByte: startByte}})
			}
		} else if !isSpeech && s.silenceRun >= s.cfg.StopTriggerFrame {
			endFrame := frameIndex - int64(s.cfg.StopTriggerFrame) + 1
			if endFrame < s.startFrame {
				endFrame = frameIndex
			}
			startByte := s.startFrame * int64(frameBytes)
			endByte := endFrame * int64(frameBytes)
			seg := s.sliceSegment(startByte, endByte)
			events = append(events, Event{Segment: &seg})
			s.resetAfterSegment(endByte)
		}

		s.cursor += frameBytes
	}

	s.pruneIfNeeded()
	return events
}

// ForceClose terminates an in-progress segment at the current frame,
// emitting it immediately (used when max_capture_seconds is exceeded).
// Returns nil if no segment was active.
func (s *Stream) ForceClose() *Segment {
	if !s.active {
		return nil
	}
	frameBytes := s.cfg.frameBytes
	currentFrame := (s.processedByte + int64(s.cursor)) / int64(frameBytes)
	startByte := s.startFrame * int64(frameBytes)
	endByte := currentFrame * int64(frameBytes)
	if endByte < startByte {
		endByte = startByte
	}
	seg := s.sliceSegment(startByte, endByte)
	s.resetAfterSegment(endByte)
	return &seg
}

// Reset clears all detector state, discarding any in-progress segment.
func (s *Stream) Reset() {
	s.buffer = nil
	s.processedByte = 0
	s.cursor = 0
	s.active = false
	s.startFrame = 0
	s.speechRun = 0
	s.silenceRun = 0
}

func (s *Stream) sliceSegment(startByte, endByte int64) Segment {
	startRel := startByte - s.processedByte
	endRel := endByte - s.processedByte
	if startRel < 0 {
		startRel = 0
	}
	if endRel > int64(len(s.buffer)) {
		endRel = int64(len(s.buffer))
	}
	pcm := make([]byte, endRel-startRel)
	copy(pcm, s.buffer[startRel:endRel])

	samplesPerSec := float64(s.cfg.SampleRate)
	startTime := float64(startByte/bytesPerSample) / samplesPerSec
	endTime := float64(endByte/bytesPerSample) / samplesPerSec
	return Segment{StartTimeS: startTime, EndTimeS: endTime, PCM: pcm}
}

func (s *Stream) resetAfterSegment(endByte int64) {
	endRel := endByte - s.processedByte
	if endRel < 0 {
		endRel = 0
	}
	if endRel > int64(len(s.buffer)) {
		endRel = int64(len(s.buffer))
	}
	s.buffer = s.buffer[endRel:]
	s.processedByte += endRel
	s.cursor -= int(endRel)
	if s.cursor < 0 {
		s.cursor = 0
	}
	s.active = false
	s.speechRun = 0
	s.silenceRun = 0
	s.startFrame = 0
}

// pruneIfNeeded bounds the buffer to maxBufferFrames during long silence,
// advancing processedByte without reprocessing already-seen frames.
func (s *Stream) pruneIfNeeded() {
	maxBuf := s.cfg.frameBytes * maxBufferFrames
	if len(s.buffer) <= maxBuf {
		return
	}
	trim := len(s.buffer) - maxBuf
	s.buffer = s.buffer[trim:]
	s.processedByte += int64(trim)
	s.cursor -= trim
	if s.cursor < 0 {
		s.cursor = 0
	}
}

// FrameBytes returns the byte length of a single frame under this config.
func (c Config) FrameBytes() int { return c.frameBytes }
