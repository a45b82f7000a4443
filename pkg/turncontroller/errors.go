package turncontroller

import "errors"

// Sentinel errors for the turn controller's failure taxonomy (spec §7).
var (
	// ErrSerialTimeout mirrors serialbridge's read timeout; callers decide
	// whether to retry.
	ErrSerialTimeout = errors.New("turncontroller: serial read timeout")

	// ErrMalformedAudioHeader is fatal: continued operation risks
	// desyncing the frame stream into audio payloads.
	ErrMalformedAudioHeader = errors.New("turncontroller: malformed audio header")

	// ErrStageTimeout is returned when the TTS first chunk or playback
	// exceeds its configured budget. An ASR/LLM timeout surfaces as
	// context.DeadlineExceeded wrapped in ErrStageError; both end the turn
	// in StateErrorTimeout.
	ErrStageTimeout = errors.New("turncontroller: stage timeout")

	// ErrStageError wraps a failure raised by an upstream ASR/LLM/TTS
	// backend.
	ErrStageError = errors.New("turncontroller: stage error")

	// ErrDiscardedSegment is a soft outcome: blank, too short, low
	// energy, or an LLM diagnostic. The turn ends without playback.
	ErrDiscardedSegment = errors.New("turncontroller: segment discarded")

	// ErrConfig is returned by Config.Validate / New for
	// invalid constructor input.
	ErrConfig = errors.New("turncontroller: invalid configuration")
)
