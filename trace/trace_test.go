package trace

import "testing"

func TestMemorySinkPreservesOrder(t *testing.T) {
	s := NewMemorySink()
	s.Append(Event{Timestamp: 10, From: "a", To: "b", Payload: 1, Kind: KindSend})
	s.Append(Event{Timestamp: 10, From: "a", To: "b", Payload: 2, Kind: KindCast})
	s.Append(Event{Timestamp: 20, From: Unknown, To: "b", Payload: 3, Kind: KindCall})

	events := s.Events()
	if len(events) != 3 {
		t.Fatalf("Events returned %d records, want 3", len(events))
	}
	for i, ev := range events {
		if ev.Payload.(int) != i+1 {
			t.Fatalf("event[%d].Payload = %v, want %d", i, ev.Payload, i+1)
		}
	}
	if events[2].From != Unknown {
		t.Fatalf("boundary event From = %q, want %q", events[2].From, Unknown)
	}
	if s.Len() != 3 {
		t.Fatalf("Len = %d, want 3", s.Len())
	}
}

func TestMemorySinkEventsAreACopy(t *testing.T) {
	s := NewMemorySink()
	s.Append(Event{Payload: "original"})

	events := s.Events()
	events[0].Payload = "mutated"

	if got := s.Events()[0].Payload; got != "original" {
		t.Fatalf("sink contents changed through the returned slice: %v", got)
	}
}

func TestTeeFansOut(t *testing.T) {
	a := NewMemorySink()
	b := NewMemorySink()
	tee := Tee{a, nil, b}

	tee.Append(Event{Payload: "x"})

	if a.Len() != 1 || b.Len() != 1 {
		t.Fatalf("tee delivered to %d/%d sinks, want both", a.Len(), b.Len())
	}
}
