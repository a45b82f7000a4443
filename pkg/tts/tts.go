// Package tts defines the speech synthesis capability the turn controller
// depends on: a lazy, finite, non-restartable stream of PCM chunks whose
// final sentinel carries totals (spec §3, §6, §9).
package tts

import "context"

// Chunk is one unit of a synthesis stream. Exactly one chunk in a stream
// has IsLast set, and it carries TotalBytes; Headers/ContentType are used
// by pkg/playback to infer the sample rate the PCM was rendered at.
type Chunk struct {
	Sequence          int
	Data              []byte
	IsLast            bool
	TotalBytes        int
	FirstChunkLatency float64 // seconds from request to first Data chunk, repeated on every Data chunk; 0 on the IsLast chunk
	Elapsed           float64 // seconds from request to this chunk; only meaningful on IsLast
	ContentType       string
	Headers           map[string]string
}

// Provider is the capability set every TTS backend implements: stream
// synthesis of one line of text, invoking onChunk once per chunk in order.
type Provider interface {
	StreamSynthesize(ctx context.Context, text string, onChunk func(Chunk) error) error
	Name() string
}
