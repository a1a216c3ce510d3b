// Package trace records dataflow pipeline events for offline inspection.
// Tracing is an injected collaborator: pipelines hold a Tracer value and
// emit events through it, with Nop as the default.
package trace

import (
	"fmt"
	"io"
	"sync"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Kind labels a pipeline event.
type Kind string

const (
	KindRead    Kind = "read"
	KindWrite   Kind = "write"
	KindBarrier Kind = "barrier"
	KindReserve Kind = "reserve"
	KindPush    Kind = "push"
	KindWait    Kind = "wait"
	KindPop     Kind = "pop"
)

// Event is one pipeline action. Tile and Words are meaningful for transfer
// kinds; Slots for staging kinds.
type Event struct {
	Run     string `json:"run"`
	Stage   string `json:"stage"`
	Kind    Kind   `json:"kind"`
	Operand string `json:"operand,omitempty"`
	Tile    uint32 `json:"tile,omitempty"`
	Words   int    `json:"words,omitempty"`
	Slots   int    `json:"slots,omitempty"`
	Batch   int    `json:"batch"`
	Block   int    `json:"block"`
}

// Tracer receives pipeline events. Implementations must be safe for use
// from the worker goroutines of the transfer engine.
type Tracer interface {
	Event(ev Event)
}

// Nop discards all events.
type Nop struct{}

func (Nop) Event(Event) {}

// Writer encodes events as JSON lines.
type Writer struct {
	mu  sync.Mutex
	w   io.Writer
	run string
	err error
}

// NewWriter returns a Writer tagging every event with a fresh run id.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, run: uuid.NewString()}
}

// Run returns the id stamped on this writer's events.
func (t *Writer) Run() string { return t.run }

func (t *Writer) Event(ev Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return
	}
	ev.Run = t.run
	line, err := json.Marshal(ev)
	if err != nil {
		t.err = err
		return
	}
	line = append(line, '\n')
	if _, err := t.w.Write(line); err != nil {
		t.err = err
	}
}

// Err reports the first encode or write failure, if any.
func (t *Writer) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return fmt.Errorf("trace: %w", t.err)
	}
	return nil
}
