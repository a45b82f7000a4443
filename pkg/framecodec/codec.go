// Package framecodec parses the interleaved text/binary serial framing used
// by the embedded microphone/speaker device (see spec §4.1).
package framecodec

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// AudioMagic is the little-endian magic ("AUD0") that opens a binary audio
// frame header.
const AudioMagic uint32 = 0x30445541

const (
	audioHeaderLen = 12
	audioVersion   = 1
	audioTypeAudio = 1

	// MaxAudioPayload bounds a single frame's payload so a corrupt length
	// field can never make the bridge allocate an unbounded buffer.
	MaxAudioPayload = 4_000_000
)

// ErrMalformedAudioHeader is returned when a candidate AUD0 header has a bad
// version or an out-of-range payload length. The caller must drop 4 bytes
// and resume parsing; see spec §4.1 step 2.
var ErrMalformedAudioHeader = errors.New("framecodec: malformed audio header")

// FrameType distinguishes the two frame shapes on the wire.
type FrameType int

const (
	// FrameNone indicates no complete frame is available yet.
	FrameNone FrameType = iota
	// FrameText is a newline-terminated ASCII line.
	FrameText
	// FrameAudio is a binary AUD0 frame.
	FrameAudio
)

// Frame is one decoded unit from the wire.
type Frame struct {
	Type    FrameType
	Text    string // set when Type == FrameText (newline stripped)
	Payload []byte // set when Type == FrameAudio
}

// Next inspects buf (the bridge's append-only receive buffer) and returns
// the next decoded frame plus the number of bytes consumed from buf's
// front. When Type is FrameNone, consumed bytes (zero while waiting, one
// for a resync step, four alongside ErrMalformedAudioHeader) must still be
// dropped by the caller before the next read.
//
// The parser follows the four-way decision in spec §4.1 exactly: a
// complete text line is preferred UNLESS buf starts with the AUD0 magic
// and holds at least a full 12-byte header, so a log line is never
// misparsed as audio and a framed audio payload is never truncated by an
// embedded newline. A newline that arrives while fewer than 12 bytes are
// buffered ends a text line even if those bytes begin with the magic.
func Next(buf []byte) (frame Frame, consumed int, err error) {
	newlineAt := indexByte(buf, '\n')
	hasMagic := len(buf) >= 4 && binary.LittleEndian.Uint32(buf[:4]) == AudioMagic

	if newlineAt >= 0 && (len(buf) < audioHeaderLen || !hasMagic) {
		text := string(buf[:newlineAt])
		return Frame{Type: FrameText, Text: trimCR(text)}, newlineAt + 1, nil
	}

	if hasMagic && len(buf) >= audioHeaderLen {
		version := buf[4]
		frameType := buf[5]
		payloadLen := binary.LittleEndian.Uint32(buf[8:12])

		if version != audioVersion || frameType != audioTypeAudio || payloadLen > MaxAudioPayload {
			return Frame{}, 4, fmt.Errorf("%w: version=%d type=%d len=%d", ErrMalformedAudioHeader, version, frameType, payloadLen)
		}

		total := audioHeaderLen + int(payloadLen)
		if len(buf) < total {
			// Header is valid but payload hasn't fully arrived yet.
			return Frame{}, 0, nil
		}

		payload := make([]byte, payloadLen)
		copy(payload, buf[audioHeaderLen:total])
		return Frame{Type: FrameAudio, Payload: payload}, total, nil
	}

	if len(buf) < 4 {
		// Too few bytes buffered to know whether this is the start of an
		// AUD0 header or an ordinary line (e.g. a partial serial read
		// delivered "REA" of "READY\n"); wait for more input rather than
		// guessing a resync.
		return Frame{}, 0, nil
	}

	if !hasMagic && newlineAt < 0 {
		// No newline, no magic, and enough bytes to be sure: resynchronize
		// by dropping a single byte. This guarantees forward progress on a
		// corrupt stream.
		return Frame{}, 1, nil
	}

	// hasMagic but buffer too short for a full header, and no newline to
	// fall back on: wait for more input.
	return Frame{}, 0, nil
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

func trimCR(s string) string {
	if len(s) > 0 && s[len(s)-1] == '\r' {
		return s[:len(s)-1]
	}
	return s
}

// EncodeAudioFrame renders an AUD0 frame for a payload. Used by tests and
// by any component that needs to emit the wire format (the real device is
// the only production sender, but a simulator or test harness needs this).
func EncodeAudioFrame(payload []byte) []byte {
	out := make([]byte, audioHeaderLen+len(payload))
	binary.LittleEndian.PutUint32(out[0:4], AudioMagic)
	out[4] = audioVersion
	out[5] = audioTypeAudio
	binary.LittleEndian.PutUint32(out[8:12], uint32(len(payload)))
	copy(out[audioHeaderLen:], payload)
	return out
}
