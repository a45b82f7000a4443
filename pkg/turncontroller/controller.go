package turncontroller

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gradi/mediation/pkg/asr"
	"github.com/gradi/mediation/pkg/journal"
	"github.com/gradi/mediation/pkg/llm"
	"github.com/gradi/mediation/pkg/playback"
	"github.com/gradi/mediation/pkg/serialbridge"
	"github.com/gradi/mediation/pkg/tts"
	"github.com/gradi/mediation/pkg/vad"
)

// Bridge is the subset of *serialbridge.Bridge the controller depends on;
// tests substitute a fake.
type Bridge interface {
	Presence() serialbridge.Presence
	ReadAudioChunk(timeout time.Duration) ([]byte, error)
	Pause() error
	Resume() error
	FlushInput()
	PlayPCM(pcm []byte, sampleRate int, applyHighPass bool) error
}

// Controller is the turn-based state machine of spec §4.4: a
// single-threaded cooperative loop that demultiplexes the serial bridge,
// drives the VAD, and sequences ASR -> LLM -> TTS -> Playback for each
// speech segment.
type Controller struct {
	bridge Bridge
	vad    *vad.Stream
	asr    asr.Provider
	llm    llm.Provider
	tts    tts.Provider
	jrnl   *journal.Sink
	log    journal.Logger
	cfg    Config

	state                 State
	currentTurn           *turn
	captureSuspendedUntil time.Time

	stopped atomic.Bool
	events  chan Event
}

// New builds a Controller. cfg is validated; an invalid cfg returns
// ErrConfig (spec §7 ConfigError).
func New(bridge Bridge, vadStream *vad.Stream, asrP asr.Provider, llmP llm.Provider, ttsP tts.Provider, jrnl *journal.Sink, log journal.Logger, cfg Config) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if bridge == nil || vadStream == nil || asrP == nil || llmP == nil || ttsP == nil {
		return nil, fmt.Errorf("turncontroller: %w: bridge/vad/asr/llm/tts must all be non-nil", ErrConfig)
	}
	if log == nil {
		log = &journal.NoOpLogger{}
	}
	return &Controller{
		bridge: bridge,
		vad:    vadStream,
		asr:    asrP,
		llm:    llmP,
		tts:    ttsP,
		jrnl:   jrnl,
		log:    log,
		cfg:    cfg,
		state:  StateIdle,
		events: make(chan Event, 1024),
	}, nil
}

// Events returns the controller's observability fan-out. Sends are
// non-blocking; a slow or absent consumer never stalls the loop.
func (c *Controller) Events() <-chan Event { return c.events }

// State returns the controller's current top-level state.
func (c *Controller) State() State { return c.state }

// Stop requests the loop to exit at its next safe point (spec §5
// "Cancellation": the in-flight turn still runs to completion).
func (c *Controller) Stop() { c.stopped.Store(true) }

// Run drives the main loop until Stop is called, ctx is cancelled, or a
// fatal error occurs (spec §4.4 "Main loop").
func (c *Controller) Run(ctx context.Context) error {
	for {
		if c.stopped.Load() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if c.cfg.MaxCaptureSeconds > 0 && c.state == StateCaptureRequested && c.currentTurn != nil {
			if time.Since(c.currentTurn.CaptureStartedAt).Seconds() > c.cfg.MaxCaptureSeconds {
				if seg := c.vad.ForceClose(); seg != nil {
					c.runSegmentPipeline(ctx, *seg, true)
				}
				c.toIdle()
				continue
			}
		}

		if c.bridge.Presence() == serialbridge.PresenceIdle {
			if _, err := c.bridge.ReadAudioChunk(c.cfg.ReadTimeout); err != nil && !errors.Is(err, serialbridge.ErrTimeout) {
				if isMalformedHeader(err) {
					return c.fatal(fmt.Errorf("%w: %v", ErrMalformedAudioHeader, err))
				}
				return c.fatal(err)
			}
			c.vad.Reset()
			c.transition(StatePresenceIdle, nil)
			continue
		}

		chunk, err := c.bridge.ReadAudioChunk(c.cfg.ReadTimeout)
		if err != nil {
			if errors.Is(err, serialbridge.ErrTimeout) {
				continue
			}
			if isMalformedHeader(err) {
				return c.fatal(fmt.Errorf("%w: %v", ErrMalformedAudioHeader, err))
			}
			return c.fatal(err)
		}

		if time.Now().Before(c.captureSuspendedUntil) {
			continue // post-playback guard: drop trailing device audio
		}

		for _, ev := range c.vad.AddAudio(chunk) {
			switch {
			case ev.Start != nil:
				c.currentTurn = &turn{ID: newTurnID(), CaptureStartedAt: time.Now()}
				c.transition(StateCaptureRequested, map[string]any{
					"start_time_s": ev.Start.StartTimeS,
				})
			case ev.Segment != nil:
				c.runSegmentPipeline(ctx, *ev.Segment, false)
				c.toIdle()
			}
		}
	}
}

func isMalformedHeader(err error) bool {
	return errors.Is(err, serialbridge.ErrMalformedAudioHeader)
}

func (c *Controller) fatal(err error) error {
	c.transition(StateFatalError, map[string]any{"error": err.Error()})
	return err
}

func (c *Controller) toIdle() {
	c.transition(StateIdle, nil)
	c.currentTurn = nil
}

// transition records a state change to the journal and fans it out on
// Events (spec §4.4 "Transitions and journal").
func (c *Controller) transition(state State, metadata map[string]any) {
	c.state = state
	turnID := ""
	if c.currentTurn != nil {
		turnID = c.currentTurn.ID
	}
	if c.jrnl != nil {
		c.jrnl.Record(journal.Transition{State: string(state), SessionID: turnID, Metadata: metadata})
	}
	select {
	case c.events <- Event{State: state, TurnID: turnID, Metadata: metadata}:
	default:
		c.log.Warn("turncontroller: events channel full, dropping", "state", state)
	}
}

// runSegmentPipeline runs the segment validation, ASR -> LLM -> TTS ->
// Playback sequence for one completed speech segment (spec §4.4 "Segment
// pipeline"). allowTimeoutSegment marks a segment force-closed by the
// max_capture_seconds guard, which skips the over-long-duration guardrail.
func (c *Controller) runSegmentPipeline(ctx context.Context, seg vad.Segment, allowTimeoutSegment bool) {
	duration := seg.EndTimeS - seg.StartTimeS

	if duration < c.cfg.MinSegmentDuration {
		c.discard("too_short", map[string]any{"duration_s": duration})
		return
	}
	if !allowTimeoutSegment && c.cfg.MaxCaptureSeconds > 0 && duration > c.cfg.MaxCaptureSeconds {
		c.discard("too_long", map[string]any{"duration_s": duration})
		return
	}
	mean := meanAbsAmplitude(seg.PCM)
	if mean < c.cfg.MinMeanAbsAmplitude {
		c.discard("low_energy", map[string]any{"mean_abs_amplitude": mean})
		return
	}

	transcript, err := c.callASR(ctx, seg.PCM)
	if err != nil {
		c.stageFailure("asr", err)
		return
	}
	if isBlankOrNoiseTranscript(transcript.Text) {
		c.discard("blank_transcript", map[string]any{"transcript_preview": truncate(transcript.Text, 120)})
		return
	}

	rewrite, err := c.callLLM(ctx, transcript.Text)
	if err != nil {
		c.stageFailure("llm", err)
		return
	}
	if isDiagnosticLLMOutput(rewrite.OutputText) {
		c.discard("llm_diagnostic", map[string]any{"output_preview": truncate(rewrite.OutputText, 120)})
		return
	}

	pcm, final, err := c.callTTS(ctx, rewrite.OutputText)
	if err != nil {
		c.stageFailure("tts", err)
		return
	}

	rate, ok := playback.InferSampleRate(final.Headers, final.ContentType)
	if !ok {
		rate = c.cfg.TTSExpectedSampleRate
	}
	pcm, rate, err = playback.Resample(pcm, rate, c.cfg.PlaybackSampleRate)
	if err != nil {
		c.stageFailure("playback_condition", err)
		return
	}
	pcm = playback.ApplyGain(pcm, c.cfg.PlaybackGainDB)

	c.playAndResume(ctx, pcm, rate)
}

func (c *Controller) discard(reason string, meta map[string]any) {
	if meta == nil {
		meta = map[string]any{}
	}
	meta["reason"] = reason
	journal.SegmentsDiscarded.WithLabelValues(reason).Inc()
	c.transition(StateReturnToIdle, meta)
}

func (c *Controller) stageFailure(stage string, err error) {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrStageTimeout) {
		c.transition(StateErrorTimeout, map[string]any{"stage": stage, "error": err.Error()})
		return
	}
	c.transition(StateReturnToIdle, map[string]any{"stage": stage, "error": err.Error(), "reason": "stage_error"})
}

func (c *Controller) callASR(ctx context.Context, pcm []byte) (asr.Result, error) {
	c.transition(StateASR, nil)
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ASRTimeout)
	defer cancel()
	start := time.Now()
	result, err := c.asr.TranscribePCM(ctx, pcm, c.cfg.SampleRate)
	journal.StageLatency.WithLabelValues("asr").Observe(time.Since(start).Seconds())
	if err != nil {
		return asr.Result{}, fmt.Errorf("%w: %w", ErrStageError, err)
	}
	return result, nil
}

func (c *Controller) callLLM(ctx context.Context, text string) (llm.Result, error) {
	c.transition(StateLLMTransform, map[string]any{"input_preview": truncate(text, 120)})
	ctx, cancel := context.WithTimeout(ctx, c.cfg.LLMTimeout)
	defer cancel()
	start := time.Now()
	result, err := c.llm.Transform(ctx, text)
	journal.StageLatency.WithLabelValues("llm").Observe(time.Since(start).Seconds())
	if err != nil {
		return llm.Result{}, fmt.Errorf("%w: %w", ErrStageError, err)
	}
	return result, nil
}

// callTTS streams synthesis, enforcing the first-chunk timeout in §4.4
// while letting the remainder of the stream run to completion inline
// (spec §5: "TTS streaming yields chunks incrementally; the loop reads
// them inline").
func (c *Controller) callTTS(ctx context.Context, text string) ([]byte, tts.Chunk, error) {
	c.transition(StateTTSSynthesis, map[string]any{"input_preview": truncate(text, 120)})
	start := time.Now()

	chunks := make(chan tts.Chunk, 16)
	streamErr := make(chan error, 1)
	go func() {
		err := c.tts.StreamSynthesize(ctx, text, func(ch tts.Chunk) error {
			select {
			case chunks <- ch:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		close(chunks)
		streamErr <- err
	}()

	var pcm []byte
	var final tts.Chunk
	first := true
	timer := time.NewTimer(c.cfg.TTSFirstChunkTimeout)
	defer timer.Stop()

	for {
		select {
		case ch, ok := <-chunks:
			if !ok {
				journal.StageLatency.WithLabelValues("tts").Observe(time.Since(start).Seconds())
				return pcm, final, <-streamErr
			}
			if first {
				if !timer.Stop() {
					<-timer.C
				}
				first = false
			}
			if ch.IsLast {
				final = ch
				continue
			}
			pcm = append(pcm, ch.Data...)
		case <-timer.C:
			return nil, tts.Chunk{}, fmt.Errorf("%w: tts first chunk", ErrStageTimeout)
		case <-ctx.Done():
			return nil, tts.Chunk{}, ctx.Err()
		}
	}
}

// playAndResume drives the half-duplex interlock of spec §4.4 Playback:
// pause capture, flush stale input, stream PCM, resume capture, then gate
// trailing device audio until the device rebalances.
func (c *Controller) playAndResume(ctx context.Context, pcm []byte, sampleRate int) {
	c.transition(StatePlayback, map[string]any{"sample_rate": sampleRate, "bytes": len(pcm)})

	if err := c.bridge.Pause(); err != nil {
		c.stageFailure("playback", fmt.Errorf("%w: %v", ErrStageError, err))
		return
	}
	c.bridge.FlushInput()

	done := make(chan error, 1)
	start := time.Now()
	go func() { done <- c.bridge.PlayPCM(pcm, sampleRate, c.cfg.ApplyPlaybackHighPass) }()

	var playErr error
	select {
	case playErr = <-done:
	case <-time.After(c.cfg.PlaybackTimeout):
		playErr = fmt.Errorf("%w: playback", ErrStageTimeout)
	case <-ctx.Done():
		playErr = ctx.Err()
	}
	journal.StageLatency.WithLabelValues("playback").Observe(time.Since(start).Seconds())

	if err := c.bridge.Resume(); err != nil && playErr == nil {
		playErr = err
	}
	c.captureSuspendedUntil = time.Now().Add(c.cfg.CaptureResumeDelay)
	c.vad.Reset()

	if playErr != nil {
		c.stageFailure("playback", playErr)
		return
	}
	c.transition(StateReturnToIdle, map[string]any{"reason": "played"})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
