package vclock

import "testing"

func TestQueue_PopDueOrdersByDeadline(t *testing.T) {
	q := newEventQueue()
	q.insert(300, "c", "third")
	q.insert(100, "a", "first")
	q.insert(200, "b", "second")

	var got []string
	for {
		_, events, ok := q.popDue(1000)
		if !ok {
			break
		}
		for _, ev := range events {
			got = append(got, ev.Payload.(string))
		}
	}

	want := []string{"first", "second", "third"}
	if len(got) != len(want) {
		t.Fatalf("popped %d events, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("pop order[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestQueue_FIFOWithinDeadline(t *testing.T) {
	q := newEventQueue()
	q.insert(100, "a", 1)
	q.insert(100, "a", 2)
	q.insert(100, "b", 3)

	at, events, ok := q.popDue(100)
	if !ok {
		t.Fatalf("popDue returned no events")
	}
	if at != 100 {
		t.Fatalf("popDue time = %d, want 100", at)
	}
	if len(events) != 3 {
		t.Fatalf("popDue returned %d events, want 3", len(events))
	}
	for i, ev := range events {
		if ev.Payload.(int) != i+1 {
			t.Fatalf("event[%d] payload = %v, want %d (insertion order)", i, ev.Payload, i+1)
		}
	}
}

func TestQueue_PopDueRespectsCutoff(t *testing.T) {
	q := newEventQueue()
	q.insert(500, "a", "late")

	if _, _, ok := q.popDue(499); ok {
		t.Fatalf("popDue(499) returned an event with deadline 500")
	}
	if _, _, ok := q.popDue(500); !ok {
		t.Fatalf("popDue(500) missed an event with deadline 500")
	}
}

func TestQueue_CountUntil(t *testing.T) {
	q := newEventQueue()
	q.insert(100, "a", nil)
	q.insert(100, "a", nil)
	q.insert(200, "b", nil)
	q.insert(300, "c", nil)

	if n := q.countUntil(50); n != 0 {
		t.Fatalf("countUntil(50) = %d, want 0", n)
	}
	if n := q.countUntil(100); n != 2 {
		t.Fatalf("countUntil(100) = %d, want 2", n)
	}
	if n := q.countUntil(300); n != 4 {
		t.Fatalf("countUntil(300) = %d, want 4", n)
	}
}

func TestQueue_CancelRemovesExactlyOne(t *testing.T) {
	q := newEventQueue()
	q.insert(100, "a", "keep")
	h := q.insert(100, "a", "drop")

	if !q.cancel(h) {
		t.Fatalf("cancel returned false for a live handle")
	}
	if q.cancel(h) {
		t.Fatalf("cancel returned true for an already-cancelled handle")
	}
	if q.len() != 1 {
		t.Fatalf("queue length = %d after cancel, want 1", q.len())
	}

	_, events, ok := q.popDue(100)
	if !ok || len(events) != 1 || events[0].Payload.(string) != "keep" {
		t.Fatalf("popDue after cancel = %v, want the single kept event", events)
	}
}

func TestQueue_CancelPrunesEmptyDeadline(t *testing.T) {
	q := newEventQueue()
	h := q.insert(100, "a", nil)
	q.insert(200, "b", nil)

	if !q.cancel(h) {
		t.Fatalf("cancel returned false")
	}

	next, ok := q.nextDeadline()
	if !ok || next != 200 {
		t.Fatalf("nextDeadline after pruning = %d (ok=%v), want 200", next, ok)
	}
}

func TestQueue_CancelUnknownHandle(t *testing.T) {
	q := newEventQueue()
	if q.cancel(Handle("nope")) {
		t.Fatalf("cancel of unknown handle returned true")
	}
}

func TestQueue_ReinsertAfterCancelSameDeadline(t *testing.T) {
	q := newEventQueue()
	h := q.insert(100, "a", "old")
	q.cancel(h)
	q.insert(100, "a", "new")

	at, events, ok := q.popDue(100)
	if !ok || at != 100 || len(events) != 1 {
		t.Fatalf("popDue = (%d, %d events, %v), want one event at 100", at, len(events), ok)
	}
	if events[0].Payload.(string) != "new" {
		t.Fatalf("payload = %v, want \"new\"", events[0].Payload)
	}
	if _, _, ok := q.popDue(1000); ok {
		t.Fatalf("stale heap entry produced a second batch")
	}
}
