package serialbridge

import (
	"bytes"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/gradi/mediation/pkg/framecodec"
	"github.com/gradi/mediation/pkg/journal"
)

// fakePort is an in-memory Port: writes go to a buffer the test can
// inspect, reads are served from a queue of byte slices fed by the test
// (each Read call returns one queued slice, or blocks-then-times-out when
// the queue is empty).
type fakePort struct {
	mu      sync.Mutex
	written bytes.Buffer
	inbox   [][]byte
	closed  bool
}

type fakeTimeout struct{}

func (fakeTimeout) Error() string   { return "fake: i/o timeout" }
func (fakeTimeout) Timeout() bool   { return true }
func (fakeTimeout) Temporary() bool { return true }

func (p *fakePort) push(b []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inbox = append(p.inbox, b)
}

func (p *fakePort) Read(buf []byte) (int, error) {
	p.mu.Lock()
	if len(p.inbox) == 0 {
		p.mu.Unlock()
		time.Sleep(time.Millisecond)
		return 0, fakeTimeout{}
	}
	next := p.inbox[0]
	p.inbox = p.inbox[1:]
	p.mu.Unlock()
	n := copy(buf, next)
	return n, nil
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.Write(b)
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePort) Flush() error { return nil }

func (p *fakePort) writtenString() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.String()
}

func TestBridge_HandshakeSequence(t *testing.T) {
	port := &fakePort{}
	port.push([]byte("READY\n"))
	port.push([]byte("PRESENCE ON\n"))

	b := newBridge(port, &journal.NoOpLogger{})
	if err := b.handshake(); err != nil {
		t.Fatalf("handshake: %v", err)
	}

	got := port.writtenString()
	for _, want := range []string{"PAUSE\n", "PRESENCE?\n", "RESUME\n"} {
		if !bytes.Contains([]byte(got), []byte(want)) {
			t.Fatalf("expected handshake to send %q, got %q", want, got)
		}
	}
	if b.Presence() != PresenceActive {
		t.Fatalf("expected presence active after handshake, got %v", b.Presence())
	}
}

func TestBridge_PauseResumeAreIdempotent(t *testing.T) {
	port := &fakePort{}
	b := newBridge(port, &journal.NoOpLogger{})

	if err := b.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if err := b.Pause(); err != nil {
		t.Fatalf("second Pause: %v", err)
	}
	count := bytes.Count([]byte(port.writtenString()), []byte("PAUSE\n"))
	if count != 1 {
		t.Fatalf("expected exactly one PAUSE line sent, got %d in %q", count, port.writtenString())
	}

	if err := b.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if err := b.Resume(); err != nil {
		t.Fatalf("second Resume: %v", err)
	}
	count = bytes.Count([]byte(port.writtenString()), []byte("RESUME\n"))
	if count != 1 {
		t.Fatalf("expected exactly one RESUME line sent, got %d", count)
	}
}

func TestBridge_ReadAudioChunkConsumesControlLinesAsSideEffects(t *testing.T) {
	port := &fakePort{}
	port.push([]byte("PRESENCE OFF\n"))
	port.push(framecodec.EncodeAudioFrame([]byte{1, 2, 3, 4}))

	b := newBridge(port, &journal.NoOpLogger{})
	chunk, err := b.ReadAudioChunk(2 * time.Second)
	if err != nil {
		t.Fatalf("ReadAudioChunk: %v", err)
	}
	if !bytes.Equal(chunk, []byte{1, 2, 3, 4}) {
		t.Fatalf("expected payload [1 2 3 4], got %v", chunk)
	}
	if b.Presence() != PresenceIdle {
		t.Fatalf("expected presence idle from control line consumed en route, got %v", b.Presence())
	}
}

func TestBridge_ReadAudioChunkTimesOutWithoutData(t *testing.T) {
	port := &fakePort{}
	b := newBridge(port, &journal.NoOpLogger{})

	_, err := b.ReadAudioChunk(30 * time.Millisecond)
	if err != ErrTimeout {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestBridge_ReadAudioChunkPropagatesMalformedHeader(t *testing.T) {
	port := &fakePort{}
	bad := framecodec.EncodeAudioFrame([]byte{1, 2, 3, 4})
	bad[4] = 0x02 // corrupt version byte
	port.push(bad)

	b := newBridge(port, &journal.NoOpLogger{})
	_, err := b.ReadAudioChunk(time.Second)
	if err == nil {
		t.Fatal("expected an error for a malformed audio header")
	}
}

func TestBridge_PlayPCMFramesStartAndEnd(t *testing.T) {
	port := &fakePort{}
	b := newBridge(port, &journal.NoOpLogger{})

	pcm := make([]byte, 40) // 20 samples
	if err := b.PlayPCM(pcm, 16000, false); err != nil {
		t.Fatalf("PlayPCM: %v", err)
	}

	got := port.writtenString()
	wantStart := "START 16000 1 16 20\n"
	if !bytes.Contains([]byte(got), []byte(wantStart)) {
		t.Fatalf("expected %q in output, got %q", wantStart, got)
	}
	if !bytes.HasSuffix([]byte(got), []byte("END\n")) {
		t.Fatalf("expected output to end with END, got %q", got)
	}
}

func TestBridge_PlayPCMRejectsNonPositiveSampleRate(t *testing.T) {
	port := &fakePort{}
	b := newBridge(port, &journal.NoOpLogger{})
	if err := b.PlayPCM(make([]byte, 10), 0, false); err == nil {
		t.Fatal("expected an error for sample_rate <= 0")
	}
}

func TestBridge_CloseIsIdempotent(t *testing.T) {
	port := &fakePort{}
	b := newBridge(port, &journal.NoOpLogger{})
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if !port.closed {
		t.Fatal("expected underlying port closed")
	}
}

var _ io.ReadWriteCloser = (*fakePort)(nil)
