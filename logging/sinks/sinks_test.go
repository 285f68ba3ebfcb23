package sinks

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"routesim/server/logging"
)

func sampleEvent() logging.Event {
	return logging.Event{
		Type:     "playback.started",
		Time:     time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Actor:    logging.SessionRef("abc"),
		Targets:  []logging.EntityRef{logging.RoomRef("route-1")},
		Severity: logging.SeverityWarn,
		Category: "playback",
		Payload:  map[string]any{"index": 2},
	}
}

func TestConsoleWithoutColor(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsole(&buf, logging.ConsoleConfig{})
	if err := sink.Write(sampleEvent()); err != nil {
		t.Fatalf("write: %v", err)
	}
	line := buf.String()
	for _, want := range []string{"WARN", "[playback.started]", "actor=session:abc", "targets=room:route-1", `payload={"index":2}`} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %q", want, line)
		}
	}
	if !strings.HasSuffix(line, "\n") {
		t.Fatalf("expected trailing newline")
	}
}

func TestJSONAutoFlush(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSON(&buf, 0)
	if err := sink.Write(sampleEvent()); err != nil {
		t.Fatalf("write: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	if decoded["type"] != "playback.started" || decoded["severity"] != "warn" {
		t.Fatalf("unexpected record %+v", decoded)
	}
	if err := sink.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestJSONBufferedUntilClose(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSON(&buf, time.Hour)
	_ = sink.Write(sampleEvent())
	if buf.Len() != 0 {
		t.Fatalf("expected buffered output before close")
	}
	_ = sink.Close(context.Background())
	if buf.Len() == 0 {
		t.Fatalf("expected flush on close")
	}
}

func TestMemoryOfType(t *testing.T) {
	sink := NewMemory()
	_ = sink.Write(sampleEvent())
	_ = sink.Write(logging.Event{Type: "room.created"})
	if got := sink.OfType("room.created"); len(got) != 1 {
		t.Fatalf("expected 1 room.created event, got %d", len(got))
	}
	sink.Reset()
	if len(sink.Events()) != 0 {
		t.Fatalf("expected reset")
	}
}
