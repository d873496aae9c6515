package actor

import "sync"

// Stats tracks one actor's message flow. The actor is the single writer;
// the coordinator reads a Snapshot after the run settles. A nil *Stats
// is a valid no-op tracker.
type Stats struct {
	mu          sync.Mutex
	sent        int
	received    int
	failures    int
	sentLog     []any
	receivedLog []any
}

// StatsSnapshot is a point-in-time copy of an actor's counters. Logs
// retain insertion order and contain the raw payloads.
type StatsSnapshot struct {
	Sent        int
	Received    int
	Failures    int
	SentLog     []any
	ReceivedLog []any
}

// RecordSent counts one outgoing payload.
func (s *Stats) RecordSent(payload any) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.sent++
	s.sentLog = append(s.sentLog, payload)
	s.mu.Unlock()
}

// RecordReceived counts one payload that reached the behavior.
func (s *Stats) RecordReceived(payload any) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.received++
	s.receivedLog = append(s.receivedLog, payload)
	s.mu.Unlock()
}

// RecordFailure counts one recovered handler failure.
func (s *Stats) RecordFailure() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.failures++
	s.mu.Unlock()
}

// Snapshot copies the current counters and logs.
func (s *Stats) Snapshot() StatsSnapshot {
	if s == nil {
		return StatsSnapshot{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := StatsSnapshot{
		Sent:        s.sent,
		Received:    s.received,
		Failures:    s.failures,
		SentLog:     make([]any, len(s.sentLog)),
		ReceivedLog: make([]any, len(s.receivedLog)),
	}
	copy(snap.SentLog, s.sentLog)
	copy(snap.ReceivedLog, s.receivedLog)
	return snap
}
