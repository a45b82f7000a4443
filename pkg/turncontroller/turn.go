package turncontroller

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// State is one of the turn controller's top-level states (spec §4.4).
type State string

const (
	StateIdle             State = "idle"
	StateCaptureRequested  State = "capture_requested"
	StateASR               State = "asr"
	StateLLMTransform      State = "llm_transform"
	StateTTSSynthesis      State = "tts_synthesis"
	StatePlayback          State = "playback"
	StateReturnToIdle      State = "return_to_idle"
	StatePresenceIdle      State = "presence_idle"
	StatePresenceActive    State = "presence_active"
	StateErrorTimeout      State = "error_timeout"
	StateFatalError        State = "fatal_error"
)

// turn is an in-flight processing unit, owned exclusively by the
// controller for its lifetime (spec §3).
type turn struct {
	ID               string
	CaptureStartedAt time.Time
}

// newTurnID mints the 8-hex-digit random token spec §3 names, drawing
// randomness from a UUIDv4 rather than hand-rolling a PRNG call.
func newTurnID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Event is one observable controller event, fanned out to any external
// subscriber in addition to the journal (spec §9 "process-wide singleton
// journal" note: the core takes a sink by reference, never touches global
// state; Events gives callers the same transitions without coupling them
// to the journal's file format).
type Event struct {
	State     State
	TurnID    string
	Metadata  map[string]any
}
