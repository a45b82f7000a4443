// Package llm defines the rewrite capability the turn controller depends
// on: a single-shot text-to-text transform (spec §6, §9 Open Question b —
// the prompt is a configuration choice, not part of the core contract).
package llm

import "context"

// DefaultPromptTemplate is used when a backend is built without an
// explicit template. %s is replaced with the raw transcript.
const DefaultPromptTemplate = "Rewrite the following speech-to-text transcript into a single clean, " +
	"natural sentence. Fix obvious transcription errors but preserve meaning. " +
	"Reply with only the rewritten text and nothing else.\n\nTranscript: %s"

// Result is what a Transform call returns.
type Result struct {
	InputText  string
	OutputText string
	Raw        string // the backend's raw, undecoded response body
}

// Provider is the capability set every LLM backend implements: rewrite one
// transcript into one output line.
type Provider interface {
	Transform(ctx context.Context, text string) (Result, error)
	Name() string
}
