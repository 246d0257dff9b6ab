// Package player implements the autonomous AI stylist: one Run plans an
// outfit for a theme, gathers garments from the closet and remote
// search, renders try-ons, and picks a winner, streaming every step as
// ordered ndjson events.
//
// Information Hiding:
// - Sequence numbering and write serialization hidden in Emitter
// - Phase internals (quotas, pools, fallbacks) hidden behind Run
package player

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"
)

// Phase tags one segment of the run lifecycle.
type Phase string

const (
	PhaseInit   Phase = "INIT"
	PhasePlan   Phase = "PLAN"
	PhaseGather Phase = "GATHER"
	PhaseTryOn  Phase = "TRYON"
	PhasePick   Phase = "PICK"
	PhaseDone   Phase = "DONE"
)

// EventType classifies a stream event.
type EventType string

const (
	EventThought     EventType = "thought"
	EventToolStart   EventType = "tool:start"
	EventToolResult  EventType = "tool:result"
	EventToolError   EventType = "tool:error"
	EventPhaseStart  EventType = "phase:start"
	EventPhaseResult EventType = "phase:result"
	EventPhaseError  EventType = "phase:error"
	EventSystem      EventType = "system"
)

// ToolRef names the tool a tool:* event refers to.
type ToolRef struct {
	Name string `json:"name"`
}

// EventError carries a captured error message.
type EventError struct {
	Message string `json:"message"`
}

// StreamEvent is one ndjson record on the run's output stream. RunID,
// Seq and Timestamp are filled in by the Emitter; callers supply the
// rest.
type StreamEvent struct {
	RunID      string         `json:"runId"`
	Seq        int            `json:"seq"`
	Timestamp  string         `json:"timestamp"`
	Phase      Phase          `json:"phase"`
	Type       EventType      `json:"eventType"`
	Message    string         `json:"message"`
	Tool       *ToolRef       `json:"tool,omitempty"`
	DurationMs int64          `json:"durationMs,omitempty"`
	Context    map[string]any `json:"context,omitempty"`
	Error      *EventError    `json:"error,omitempty"`
}

// Emitter serializes stream events onto a single writer. Sequence
// numbers are gapless and start at 1. Concurrent phase work may emit
// from multiple goroutines; the mutex guarantees one physical write at
// a time so records never interleave mid-line.
type Emitter struct {
	runID string

	mu   sync.Mutex
	seq  int
	out  io.Writer
	once sync.Once
}

// NewEmitter creates an emitter for one run writing ndjson to out.
func NewEmitter(runID string, out io.Writer) *Emitter {
	return &Emitter{runID: runID, out: out}
}

// RunID returns the run this emitter belongs to.
func (e *Emitter) RunID() string {
	return e.runID
}

// Emit enriches the event with run id, the next sequence number and an
// ISO timestamp, then writes it as one ndjson line. The caller does not
// proceed until the write has completed.
func (e *Emitter) Emit(event StreamEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	event.RunID = e.runID
	event.Seq = e.seq + 1
	event.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)

	// Claim the sequence number only once the record is known to be
	// writable, or a marshal failure would leave a gap in the stream.
	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	e.seq++
	line = append(line, '\n')
	if _, err := e.out.Write(line); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

// Close closes the underlying writer if it is closable. Safe to call
// more than once; only the first call takes effect.
func (e *Emitter) Close() error {
	var err error
	e.once.Do(func() {
		if closer, ok := e.out.(io.Closer); ok {
			err = closer.Close()
		}
	})
	return err
}

// ReadEvents consumes an ndjson event stream until EOF. Malformed
// lines are skipped rather than failing the whole stream; a consumer
// must stay alive through one bad record.
func ReadEvents(r io.Reader) ([]StreamEvent, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var events []StreamEvent
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var event StreamEvent
		if err := json.Unmarshal(line, &event); err != nil {
			continue
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return events, fmt.Errorf("read events: %w", err)
	}
	return events, nil
}
