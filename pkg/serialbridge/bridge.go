// Package serialbridge owns the serial link to the embedded
// microphone/speaker device: the startup handshake, reading audio chunks
// through the frame codec, presence telemetry, and paced PCM playback
// (spec §4.2).
package serialbridge

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/tarm/serial"

	"github.com/gradi/mediation/pkg/framecodec"
	"github.com/gradi/mediation/pkg/journal"
)

// DefaultBaud matches the embedded firmware's fixed baud rate.
const DefaultBaud = 921_600

const (
	readyBannerTimeout    = 5 * time.Second
	presenceTimeout       = 1500 * time.Millisecond
	streamChunkBytes      = 1024
	bytesPerSample        = 2
	highPassCutoffHz      = 250.0
)

// ErrMalformedAudioHeader is re-exported for callers that only import
// serialbridge; it is the same sentinel framecodec.Next returns.
var ErrMalformedAudioHeader = framecodec.ErrMalformedAudioHeader

// Presence is the tri-state telemetry reported by the device.
type Presence int

const (
	PresenceUnknown Presence = iota
	PresenceActive
	PresenceIdle
)

func (p Presence) String() string {
	switch p {
	case PresenceActive:
		return "active"
	case PresenceIdle:
		return "idle"
	default:
		return "unknown"
	}
}

// Port is the subset of github.com/tarm/serial's *Port used here. Tests
// substitute an in-memory implementation.
type Port interface {
	io.ReadWriteCloser
	Flush() error
}

// Bridge wraps a Port with the line/frame protocol used by the device.
type Bridge struct {
	port   Port
	log    journal.Logger
	mu     sync.Mutex
	buf    []byte
	closed bool

	capturePaused bool
	presence      Presence

	filter highPassFilter
}

// Open opens the named serial port at DefaultBaud with the configured read
// timeout and runs the startup handshake: wait (briefly, optionally) for a
// READY banner, then PAUSE -> flush -> PRESENCE? -> RESUME.
func Open(name string, log journal.Logger) (*Bridge, error) {
	if log == nil {
		log = &journal.NoOpLogger{}
	}
	cfg := &serial.Config{Name: name, Baud: DefaultBaud, ReadTimeout: 200 * time.Millisecond}
	port, err := serial.OpenPort(cfg)
	if err != nil {
		return nil, fmt.Errorf("serialbridge: open %s: %w", name, err)
	}
	b := newBridge(port, log)
	if err := b.handshake(); err != nil {
		port.Close()
		return nil, err
	}
	return b, nil
}

func newBridge(port Port, log journal.Logger) *Bridge {
	return &Bridge{port: port, log: log, presence: PresenceUnknown}
}

func (b *Bridge) handshake() error {
	b.waitForReady(readyBannerTimeout)

	if err := b.Pause(); err != nil {
		return err
	}
	b.FlushInput()
	if err := b.writeLine("PRESENCE?"); err != nil {
		return err
	}
	b.pollPresence(presenceTimeout)
	return b.Resume()
}

// waitForReady drains text lines until "READY" is seen or the deadline
// passes; the banner is optional, so a timeout here is not an error.
func (b *Bridge) waitForReady(timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		frame, err := b.readFrame(100 * time.Millisecond)
		if err != nil {
			return
		}
		if frame.Type == framecodec.FrameText && strings.TrimSpace(frame.Text) == "READY" {
			return
		}
		if frame.Type == framecodec.FrameNone {
			continue
		}
	}
}

func (b *Bridge) pollPresence(timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if _, err := b.ReadAudioChunk(50 * time.Millisecond); err != nil {
			return
		}
		if b.Presence() != PresenceUnknown {
			return
		}
	}
}

// Presence returns the last known presence state.
func (b *Bridge) Presence() Presence {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.presence
}

// Pause sends PAUSE unless already paused (spec §4.2: no-op when already
// in that state).
func (b *Bridge) Pause() error {
	b.mu.Lock()
	alreadyPaused := b.capturePaused
	b.mu.Unlock()
	if alreadyPaused {
		return nil
	}
	if err := b.writeLine("PAUSE"); err != nil {
		return err
	}
	b.mu.Lock()
	b.capturePaused = true
	b.mu.Unlock()
	return nil
}

// Resume sends RESUME unless already resumed.
func (b *Bridge) Resume() error {
	b.mu.Lock()
	alreadyResumed := !b.capturePaused
	b.mu.Unlock()
	if alreadyResumed {
		return nil
	}
	if err := b.writeLine("RESUME"); err != nil {
		return err
	}
	b.mu.Lock()
	b.capturePaused = false
	b.mu.Unlock()
	return nil
}

// FlushInput discards buffered input, both the port's and our own
// unparsed receive buffer.
func (b *Bridge) FlushInput() {
	b.mu.Lock()
	b.buf = b.buf[:0]
	b.mu.Unlock()
	_ = b.port.Flush()
}

// ErrTimeout is returned by ReadAudioChunk when no audio frame arrives
// within the requested timeout.
var ErrTimeout = errors.New("serialbridge: read timeout")

// ReadAudioChunk returns the next audio payload within timeout. Non-audio
// frames seen while waiting are consumed for their side effects (presence
// updates, logging) and do not satisfy the read, matching spec §4.2's read
// contract.
func (b *Bridge) ReadAudioChunk(timeout time.Duration) ([]byte, error) {
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, ErrTimeout
		}
		frame, err := b.readFrame(remaining)
		if err != nil {
			return nil, err
		}
		switch frame.Type {
		case framecodec.FrameAudio:
			return frame.Payload, nil
		case framecodec.FrameText:
			b.handleControlLine(frame.Text)
		case framecodec.FrameNone:
			// resync byte or buffer exhausted; loop until deadline.
		}
	}
}

func (b *Bridge) handleControlLine(text string) {
	text = strings.TrimSpace(text)
	switch text {
	case "PRESENCE ON":
		b.mu.Lock()
		b.presence = PresenceActive
		b.mu.Unlock()
	case "PRESENCE OFF":
		b.mu.Lock()
		b.presence = PresenceIdle
		b.mu.Unlock()
	case "":
		// ignore
	default:
		b.log.Debug("serialbridge: device line", "text", text)
	}
}

// readFrame pulls bytes from the port into buf until framecodec.Next
// either yields a frame or needs more data, bounded by timeout.
func (b *Bridge) readFrame(timeout time.Duration) (framecodec.Frame, error) {
	deadline := time.Now().Add(timeout)
	readBuf := make([]byte, 4096)
	for {
		b.mu.Lock()
		frame, n, err := framecodec.Next(b.buf)
		if n > 0 {
			b.buf = b.buf[n:]
		}
		b.mu.Unlock()
		if err != nil {
			if errors.Is(err, framecodec.ErrMalformedAudioHeader) {
				return framecodec.Frame{}, err
			}
			return framecodec.Frame{}, err
		}
		if frame.Type != framecodec.FrameNone {
			return frame, nil
		}
		if n > 0 {
			// resync progress made; keep trying without blocking again.
			continue
		}
		if time.Now().After(deadline) {
			return framecodec.Frame{}, nil
		}
		nread, rerr := b.port.Read(readBuf)
		if nread > 0 {
			b.mu.Lock()
			b.buf = append(b.buf, readBuf[:nread]...)
			b.mu.Unlock()
		}
		if rerr != nil && rerr != io.EOF {
			if isTimeoutErr(rerr) {
				continue
			}
			return framecodec.Frame{}, fmt.Errorf("serialbridge: read: %w", rerr)
		}
	}
}

func isTimeoutErr(err error) bool {
	type timeouter interface{ Timeout() bool }
	var t timeouter
	if errors.As(err, &t) {
		return t.Timeout()
	}
	return false
}

func (b *Bridge) writeLine(line string) error {
	b.log.Debug("serialbridge: write line", "line", line)
	_, err := b.port.Write([]byte(line + "\n"))
	return err
}

// PlayPCM streams mono 16-bit PCM to the device per spec §4.2: a START
// control line, real-time-paced chunks (optionally DC-blocked), and a
// terminating END line.
func (b *Bridge) PlayPCM(pcm []byte, sampleRate int, applyHighPass bool) error {
	if sampleRate <= 0 {
		return fmt.Errorf("serialbridge: sample_rate must be positive, got %d", sampleRate)
	}
	sampleCount := len(pcm) / bytesPerSample
	if err := b.writeLine(fmt.Sprintf("START %d 1 16 %d", sampleRate, sampleCount)); err != nil {
		return err
	}

	b.filter.reset(sampleRate)
	bytesPerSec := sampleRate * bytesPerSample
	nextDeadline := time.Now()
	for start := 0; start < len(pcm); start += streamChunkBytes {
		end := start + streamChunkBytes
		if end > len(pcm) {
			end = len(pcm)
		}
		chunk := make([]byte, end-start)
		copy(chunk, pcm[start:end])
		if applyHighPass {
			b.filter.apply(chunk)
		}
		n, err := b.port.Write(chunk)
		if err != nil {
			return fmt.Errorf("serialbridge: write: %w", err)
		}
		if n != len(chunk) {
			return fmt.Errorf("serialbridge: short write streaming pcm (%d/%d bytes)", n, len(chunk))
		}
		nextDeadline = nextDeadline.Add(time.Duration(float64(len(chunk)) / float64(bytesPerSec) * float64(time.Second)))
		if sleep := time.Until(nextDeadline); sleep > 0 {
			time.Sleep(sleep)
		} else {
			nextDeadline = time.Now()
		}
	}
	return b.writeLine("END")
}

// Close releases the underlying port. Safe to call once.
func (b *Bridge) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()
	return b.port.Close()
}
