package trace

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

func TestWriterEmitsJSONLines(t *testing.T) {
	var buf bytes.Buffer
	tr := NewWriter(&buf)

	tr.Event(Event{Stage: "reader", Kind: KindRead, Operand: "in0", Tile: 7, Words: 64})
	tr.Event(Event{Stage: "reader", Kind: KindBarrier, Block: 1})
	if err := tr.Err(); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}

	var ev Event
	if err := json.Unmarshal([]byte(lines[0]), &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Kind != KindRead || ev.Tile != 7 || ev.Words != 64 {
		t.Errorf("unexpected event %+v", ev)
	}
	if ev.Run == "" || ev.Run != tr.Run() {
		t.Errorf("event run id %q, want %q", ev.Run, tr.Run())
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("sink closed") }

func TestWriterReportsSinkFailure(t *testing.T) {
	tr := NewWriter(failingWriter{})
	tr.Event(Event{Kind: KindRead})
	if err := tr.Err(); err == nil {
		t.Error("expected error from failing sink")
	}
	// Later events are dropped without panicking.
	tr.Event(Event{Kind: KindWrite})
}

func TestNopDiscards(t *testing.T) {
	var tr Tracer = Nop{}
	tr.Event(Event{Kind: KindBarrier})
}
