package vad

import "testing"

// scriptedClassifier returns IsSpeech per a fixed per-frame script, looping
// the last value if AddAudio is fed more frames than the script covers.
type scriptedClassifier struct {
	script []bool
	calls  int
}

func (c *scriptedClassifier) IsSpeech(frame []byte, sampleRate int) bool {
	idx := c.calls
	c.calls++
	if idx >= len(c.script) {
		return c.script[len(c.script)-1]
	}
	return c.script[idx]
}

func mustConfig(t *testing.T, start, stop, preroll int) Config {
	t.Helper()
	cfg, err := NewConfig(16000, 20, 2, start, stop, preroll)
	if err != nil {
		t.Fatalf("NewConfig: %v", err)
	}
	return cfg
}

func framesOf(cfg Config, n int) []byte {
	return make([]byte, cfg.FrameBytes()*n)
}

func TestStream_OneBurstYieldsOneSegment(t *testing.T) {
	cfg := mustConfig(t, 3, 3, 0)
	// 2 silence, 3 speech (start triggers on 3rd), 3 silence (stop triggers on 3rd).
	script := []bool{false, false, true, true, true, false, false, false}
	clf := &scriptedClassifier{script: script}
	s := NewStream(cfg, clf)

	events := s.AddAudio(framesOf(cfg, len(script)))

	var starts, segments int
	for _, ev := range events {
		if ev.Start != nil {
			starts++
		}
		if ev.Segment != nil {
			segments++
		}
	}
	if starts != 1 || segments != 1 {
		t.Fatalf("expected exactly one start and one segment, got starts=%d segments=%d (%+v)", starts, segments, events)
	}
}

func TestStream_PrerollClampedAtZero(t *testing.T) {
	cfg := mustConfig(t, 2, 2, 5) // preroll exceeds frames available before start
	script := []bool{true, true, false, false}
	clf := &scriptedClassifier{script: script}
	s := NewStream(cfg, clf)

	events := s.AddAudio(framesOf(cfg, len(script)))
	if len(events) == 0 || events[0].Start == nil {
		t.Fatalf("expected a start event, got %+v", events)
	}
	if events[0].Start.StartByte != 0 {
		t.Fatalf("expected preroll clamped to byte 0, got %d", events[0].Start.StartByte)
	}
}

func TestStream_PrerollBackdatesStart(t *testing.T) {
	cfg := mustConfig(t, 2, 2, 1)
	// frame0 silence, frame1-2 speech: start triggers at frame index 2
	// (tentative start frame 1), backdated one frame by preroll to frame 0.
	script := []bool{false, true, true, false, false}
	clf := &scriptedClassifier{script: script}
	s := NewStream(cfg, clf)

	events := s.AddAudio(framesOf(cfg, len(script)))
	if len(events) == 0 || events[0].Start == nil {
		t.Fatalf("expected a start event, got %+v", events)
	}
	wantByte := int64(0) // frame 0, since tentativeStart(frame1) - preroll(1) = frame0
	if events[0].Start.StartByte != wantByte {
		t.Fatalf("expected preroll-backdated start at byte %d, got %d", wantByte, events[0].Start.StartByte)
	}
}

func TestStream_ForceCloseOnTimeout(t *testing.T) {
	cfg := mustConfig(t, 2, 100, 0) // stop trigger unreachably high within this test
	script := []bool{true, true, true, true}
	clf := &scriptedClassifier{script: script}
	s := NewStream(cfg, clf)

	events := s.AddAudio(framesOf(cfg, len(script)))
	for _, ev := range events {
		if ev.Segment != nil {
			t.Fatalf("did not expect a natural segment close, got %+v", ev)
		}
	}

	seg := s.ForceClose()
	if seg == nil {
		t.Fatal("expected ForceClose to yield a segment for an active capture")
	}
	if len(seg.PCM) == 0 {
		t.Fatal("expected non-empty forced segment PCM")
	}

	if s.ForceClose() != nil {
		t.Fatal("expected a second ForceClose with nothing active to return nil")
	}
}

func TestStream_BufferPruningBound(t *testing.T) {
	cfg := mustConfig(t, 1000, 100, 0) // start trigger effectively unreachable
	clf := &scriptedClassifier{script: []bool{false}}
	s := NewStream(cfg, clf)

	// Feed far more silent frames than maxBufferFrames; nothing ever goes
	// active, so the buffer must stay pruned to the bound.
	s.AddAudio(framesOf(cfg, maxBufferFrames*3))

	maxBuf := cfg.FrameBytes() * maxBufferFrames
	if len(s.buffer) > maxBuf {
		t.Fatalf("expected buffer pruned to at most %d bytes, got %d", maxBuf, len(s.buffer))
	}
}

func TestStream_ProcessedBytesInvariant(t *testing.T) {
	cfg := mustConfig(t, 1, 2, 2)
	script := []bool{false, true, true, false, false, true, true, false, false}
	clf := &scriptedClassifier{script: script}
	s := NewStream(cfg, clf)

	total := int64(0)
	for i := 0; i < len(script); i++ {
		chunk := framesOf(cfg, 1)
		total += int64(len(chunk))
		s.AddAudio(chunk)
		if s.processedByte+int64(len(s.buffer)) != total {
			t.Fatalf("processedBytes invariant violated at step %d: processed=%d buffered=%d total=%d",
				i, s.processedByte, len(s.buffer), total)
		}
	}
}

func TestStream_ResetClearsState(t *testing.T) {
	cfg := mustConfig(t, 2, 100, 0)
	clf := &scriptedClassifier{script: []bool{true, true, true}}
	s := NewStream(cfg, clf)
	s.AddAudio(framesOf(cfg, 3))

	s.Reset()

	if s.active || s.cursor != 0 || s.processedByte != 0 || len(s.buffer) != 0 {
		t.Fatalf("expected fully cleared state after Reset, got %+v", s)
	}
	if s.ForceClose() != nil {
		t.Fatal("expected no segment to close immediately after Reset")
	}
}
