package vclock

import "container/heap"

// eventQueue is an ordered multimap from deadline to events. Events with
// the same deadline keep their insertion order, so equal-time events
// dispatch in the order they were scheduled. The queue is not safe for
// concurrent use; the clock owns it exclusively and serialises access.
type eventQueue struct {
	buckets map[Time]*bucket
	order   timeHeap
	handles map[Handle]Time
	size    int
}

// bucket holds every queued event sharing one deadline, in FIFO order.
type bucket struct {
	at     Time
	events []Event
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		buckets: make(map[Time]*bucket),
		handles: make(map[Handle]Time),
	}
}

// insert places an event at the given deadline and returns its handle.
// Deadline validation against the current time happens in the clock.
func (q *eventQueue) insert(deadline Time, dest string, payload any) Handle {
	h := newHandle()
	b, ok := q.buckets[deadline]
	if !ok {
		b = &bucket{at: deadline}
		q.buckets[deadline] = b
		heap.Push(&q.order, deadline)
	}
	b.events = append(b.events, Event{
		Deadline: deadline,
		Dest:     dest,
		Payload:  payload,
		Handle:   h,
	})
	q.handles[h] = deadline
	q.size++
	return h
}

// popDue removes and returns all events at the smallest deadline t with
// t <= cutoff. It reports false when the queue is empty or the next
// deadline exceeds the cutoff.
func (q *eventQueue) popDue(cutoff Time) (Time, []Event, bool) {
	for q.order.Len() > 0 {
		at := q.order[0]
		b, ok := q.buckets[at]
		if !ok {
			// Stale heap entry left behind by a cancellation.
			heap.Pop(&q.order)
			continue
		}
		if at > cutoff {
			return 0, nil, false
		}
		heap.Pop(&q.order)
		delete(q.buckets, at)
		for _, ev := range b.events {
			delete(q.handles, ev.Handle)
		}
		q.size -= len(b.events)
		return at, b.events, true
	}
	return 0, nil, false
}

// nextDeadline reports the smallest deadline without removing anything.
func (q *eventQueue) nextDeadline() (Time, bool) {
	for q.order.Len() > 0 {
		at := q.order[0]
		if _, ok := q.buckets[at]; !ok {
			heap.Pop(&q.order)
			continue
		}
		return at, true
	}
	return 0, false
}

// countUntil counts events with deadline <= cutoff without removal.
func (q *eventQueue) countUntil(cutoff Time) int {
	n := 0
	for at, b := range q.buckets {
		if at <= cutoff {
			n += len(b.events)
		}
	}
	return n
}

// cancel removes exactly one event by handle, pruning the deadline slot
// when it empties. It reports whether the handle was found.
func (q *eventQueue) cancel(h Handle) bool {
	at, ok := q.handles[h]
	if !ok {
		return false
	}
	delete(q.handles, h)
	b := q.buckets[at]
	for i, ev := range b.events {
		if ev.Handle == h {
			b.events = append(b.events[:i], b.events[i+1:]...)
			break
		}
	}
	if len(b.events) == 0 {
		// The heap entry stays behind; popDue and nextDeadline skip it.
		delete(q.buckets, at)
	}
	q.size--
	return true
}

func (q *eventQueue) len() int {
	return q.size
}

// timeHeap is a min-heap of deadlines with pending buckets.
type timeHeap []Time

func (h timeHeap) Len() int            { return len(h) }
func (h timeHeap) Less(i, j int) bool  { return h[i] < h[j] }
func (h timeHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *timeHeap) Push(x interface{}) { *h = append(*h, x.(Time)) }
func (h *timeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
