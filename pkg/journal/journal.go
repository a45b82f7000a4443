// Package journal provides the structured logger interface shared across
// the module and the append-only JSONL state-transition journal described
// in spec §4.4/§6 ("Persisted state").
package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Logger is the structured-logging surface used throughout the module,
// matching the shape the orchestrator's providers were already written
// against.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// NoOpLogger discards everything.
type NoOpLogger struct{}

func (*NoOpLogger) Debug(string, ...interface{}) {}
func (*NoOpLogger) Info(string, ...interface{})  {}
func (*NoOpLogger) Warn(string, ...interface{})  {}
func (*NoOpLogger) Error(string, ...interface{}) {}

// Transition is one state-machine transition record. Metadata carries
// whatever the caller supplies (reason, duration, cycle count, ...); it is
// flattened into the JSON line alongside the fixed fields.
type Transition struct {
	State     string
	SessionID string
	Metadata  map[string]any
}

// Sink is an append-only JSONL writer for turn-controller transitions. One
// JSON object per line, flushed on every write so a crash never loses a
// transition that was already logged (spec §6: "Persisted state").
type Sink struct {
	mu   sync.Mutex
	file *os.File
	log  Logger
}

// Open creates (or appends to) the journal file at path. If path is empty,
// the sink logs transitions only through log and writes nothing to disk.
func Open(path string, log Logger) (*Sink, error) {
	if log == nil {
		log = &NoOpLogger{}
	}
	s := &Sink{log: log}
	if path == "" {
		return s, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	s.file = f
	return s, nil
}

// Record appends one transition, JSON-encoded on a single line.
func (s *Sink) Record(t Transition) error {
	payload := map[string]any{
		"ts":    time.Now().UTC().Format(time.RFC3339Nano),
		"state": t.State,
	}
	if t.SessionID != "" {
		payload["session"] = t.SessionID
	}
	for k, v := range t.Metadata {
		payload[k] = v
	}
	line, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("journal: marshal transition: %w", err)
	}

	s.log.Info(string(line))

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	if _, err := s.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("journal: write: %w", err)
	}
	return s.file.Sync()
}

// Close releases the underlying file, if any.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	return s.file.Close()
}
