package actor

import (
	"fmt"

	"github.com/signalsfoundry/virtualtime-simulator/vclock"
)

type patternKind int

const (
	patternPeriodic patternKind = iota
	patternBurst
	patternSelfMessage
)

// Pattern is a declarative description of message generation. The host
// drives it with internal pump ticks on the virtual clock; the ticks
// themselves are bookkeeping and never appear in stats or traces.
type Pattern struct {
	kind     patternKind
	interval vclock.Time
	count    int
	msg      any
}

// Periodic emits one msg every interval ticks to each target, starting
// interval after the actor begins sending.
func Periodic(interval vclock.Time, msg any) *Pattern {
	return &Pattern{kind: patternPeriodic, interval: interval, count: 1, msg: msg}
}

// Rate emits one msg every 1000/perSecond ticks, with integer division,
// so it yields exactly perSecond messages per 1000 ticks only when
// perSecond divides 1000. perSecond must be positive.
func Rate(perSecond int, msg any) *Pattern {
	var interval vclock.Time
	if perSecond > 0 {
		interval = vclock.Time(1000 / perSecond)
	}
	return &Pattern{kind: patternPeriodic, interval: interval, count: 1, msg: msg}
}

// Burst emits count copies of msg to each target, in order, every
// interval ticks.
func Burst(count int, interval vclock.Time, msg any) *Pattern {
	return &Pattern{kind: patternBurst, interval: interval, count: count, msg: msg}
}

// SelfMessage delivers a single msg to the actor itself after delay
// ticks.
func SelfMessage(delay vclock.Time, msg any) *Pattern {
	return &Pattern{kind: patternSelfMessage, interval: delay, count: 1, msg: msg}
}

// Validate rejects non-positive intervals and counts. A Rate built from
// perSecond <= 0 fails here with a zero interval.
func (p *Pattern) Validate() error {
	if p == nil {
		return nil
	}
	switch p.kind {
	case patternSelfMessage:
		if p.interval < 0 {
			return fmt.Errorf("self message delay %d: %w", p.interval, vclock.ErrInvalidArgument)
		}
	default:
		if p.interval <= 0 {
			return fmt.Errorf("pattern interval %d: %w", p.interval, vclock.ErrInvalidArgument)
		}
		if p.count <= 0 {
			return fmt.Errorf("pattern count %d: %w", p.count, vclock.ErrInvalidArgument)
		}
	}
	return nil
}

// firstDelay is the offset of the first pump tick from the moment the
// actor begins sending.
func (p *Pattern) firstDelay() vclock.Time {
	return p.interval
}
