package vclock

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/signalsfoundry/virtualtime-simulator/internal/logging"
	"github.com/signalsfoundry/virtualtime-simulator/internal/observability"
)

// Mode selects how dispatched events synchronise with the clock. The
// choice is fixed at construction and both modes satisfy the same
// ordering and quiescence contract.
type Mode int

const (
	// ModeFeedback runs actors concurrently with the clock. Every
	// delivered event carries an acknowledgement obligation and the
	// clock does not move past a time point until all acknowledgements
	// for it have arrived. This is the default and the deterministic
	// choice.
	ModeFeedback Mode = iota
	// ModeCooperative interleaves actors and the clock by yielding.
	// Quiescence is observed by watching the queue and the in-flight
	// reaction count settle across a bounded number of yield rounds.
	ModeCooperative
)

func (m Mode) String() string {
	switch m {
	case ModeFeedback:
		return "feedback"
	case ModeCooperative:
		return "cooperative"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Cooperative quiescence tuning. The clock declares a time point quiet
// once the due-event count and the in-flight reaction count have stayed
// zero for quiescenceStableRounds consecutive observations, each
// separated by quiescenceYields scheduler yields. quiescenceMaxRounds is
// the hard ceiling on the wait: past it the point is declared quiet
// regardless, so a pathological handler that keeps re-scheduling at the
// current tick cannot wedge the clock forever.
const (
	quiescenceYields       = 32
	quiescenceStableRounds = 3
	quiescenceMaxRounds    = 100000
)

// Router delivers dispatched events to their destinations. The
// simulation coordinator's actor registry implements it.
type Router interface {
	// Route hands an event to its destination actor. It returns false
	// when no actor of that name is registered; the event is then
	// dropped silently.
	Route(ev Event) bool
	// Inflight reports how many reactions are currently executing or
	// queued in actor inboxes. The cooperative model polls it.
	Inflight() int
}

// Config assembles a Clock. Router is required; everything else has a
// usable zero value.
type Config struct {
	Mode    Mode
	Router  Router
	Start   Time
	Logger  logging.Logger
	Metrics *observability.KernelCollector
}

// Clock is the single coordinator of the logical timeline. It owns the
// event queue and serves the schedule / cancel / advance protocol.
type Clock struct {
	mode    Mode
	router  Router
	log     logging.Logger
	metrics *observability.KernelCollector

	// advanceMu serialises Advance and AdvanceToNext; a second caller
	// blocks until the first returns.
	advanceMu sync.Mutex

	mu           sync.Mutex
	ackCond      *sync.Cond
	now          Time
	queue        *eventQueue
	pending      map[string]int
	pendingTotal int
}

// New constructs a clock at cfg.Start with an empty queue.
func New(cfg Config) (*Clock, error) {
	if cfg.Router == nil {
		return nil, fmt.Errorf("new clock: router is nil")
	}
	log := cfg.Logger
	if log == nil {
		log = logging.Noop()
	}
	c := &Clock{
		mode:    cfg.Mode,
		router:  cfg.Router,
		log:     log,
		metrics: cfg.Metrics,
		now:     cfg.Start,
		queue:   newEventQueue(),
		pending: make(map[string]int),
	}
	c.ackCond = sync.NewCond(&c.mu)
	return c, nil
}

// Mode reports the dispatch model the clock was built with.
func (c *Clock) Mode() Mode {
	return c.mode
}

// Now returns the current logical time.
func (c *Clock) Now() Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Schedule inserts an event firing at now + delay and returns its
// cancellation handle. A negative delay fails with ErrInvalidArgument.
// Schedule is safe to call from inside a reaction; the event lands in
// the queue immediately and participates in an in-progress advance when
// its deadline falls inside the advance window.
func (c *Clock) Schedule(dest string, payload any, delay Time) (Handle, error) {
	if delay < 0 {
		return "", fmt.Errorf("schedule for %q with delay %d: %w", dest, delay, ErrInvalidArgument)
	}
	c.mu.Lock()
	h := c.queue.insert(c.now+delay, dest, payload)
	depth := c.queue.len()
	c.mu.Unlock()
	c.metrics.IncEventsScheduled()
	c.metrics.SetQueueDepth(depth)
	return h, nil
}

// Cancel removes a queued event by handle. It reports false for a stale
// or unknown handle; cancellation after dispatch is a no-op.
func (c *Clock) Cancel(h Handle) bool {
	c.mu.Lock()
	found := c.queue.cancel(h)
	depth := c.queue.len()
	c.mu.Unlock()
	if found {
		c.metrics.IncEventsCancelled()
		c.metrics.SetQueueDepth(depth)
	}
	return found
}

// CountUntil counts queued events with deadline <= t.
func (c *Clock) CountUntil(t Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.countUntil(t)
}

// Len reports the total number of queued events.
func (c *Clock) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.len()
}

// Advance moves logical time forward by amount, dispatching every event
// whose deadline falls in the window and returning once time has reached
// the target with the event set quiescent up to it. A negative amount
// fails with ErrInvalidArgument. Concurrent advances are serialised.
func (c *Clock) Advance(amount Time) (Time, error) {
	if amount < 0 {
		return 0, fmt.Errorf("advance by %d: %w", amount, ErrInvalidArgument)
	}
	c.advanceMu.Lock()
	defer c.advanceMu.Unlock()

	started := time.Now()
	c.mu.Lock()
	target := c.now + amount
	c.mu.Unlock()

	for {
		if c.step(target) {
			continue
		}
		c.mu.Lock()
		c.now = target
		c.mu.Unlock()
		if c.quiescent(target) {
			break
		}
	}

	c.metrics.ObserveAdvance(time.Since(started))
	c.metrics.SetQueueDepth(c.Len())
	return target, nil
}

// AdvanceToNext runs until exactly one batch of events has been
// dispatched, returning how many ticks the clock moved. It returns 0
// with no error when the queue is empty.
func (c *Clock) AdvanceToNext() (Time, error) {
	c.advanceMu.Lock()
	defer c.advanceMu.Unlock()

	c.mu.Lock()
	before := c.now
	next, ok := c.queue.nextDeadline()
	c.mu.Unlock()
	if !ok {
		return 0, nil
	}
	c.step(next)
	return next - before, nil
}

// step pops the earliest batch due at or before target, dispatches it in
// FIFO order, and waits for the reacting actors to complete at that time
// point. It reports false when nothing is due.
func (c *Clock) step(target Time) bool {
	c.mu.Lock()
	at, events, ok := c.queue.popDue(target)
	if !ok {
		c.mu.Unlock()
		return false
	}
	c.now = at
	c.mu.Unlock()

	for _, ev := range events {
		if !c.router.Route(ev) {
			c.log.Debug(context.Background(), "dropped event for unknown destination",
				logging.String("dest", ev.Dest),
				logging.Int("deadline", int(ev.Deadline)),
			)
			continue
		}
		c.metrics.IncEventsDispatched()
	}

	c.waitBatch()
	return true
}

// waitBatch blocks until every reaction triggered by the current batch
// has completed, so re-entrant schedules are in the queue before the
// clock reads it again.
func (c *Clock) waitBatch() {
	if c.mode == ModeFeedback {
		c.mu.Lock()
		for c.pendingTotal > 0 {
			c.ackCond.Wait()
		}
		c.mu.Unlock()
		return
	}
	for rounds := 0; c.router.Inflight() > 0; rounds++ {
		if rounds >= quiescenceMaxRounds {
			c.log.Warn(context.Background(), "cooperative batch wait ceiling reached",
				logging.Int("inflight", c.router.Inflight()),
			)
			return
		}
		yield()
	}
}

// quiescent reports whether the interval up to target is fully settled:
// no queued event at or before target and no actor mid-reaction.
func (c *Clock) quiescent(target Time) bool {
	if c.mode == ModeFeedback {
		c.mu.Lock()
		for c.pendingTotal > 0 {
			c.ackCond.Wait()
		}
		quiet := c.queue.countUntil(target) == 0
		c.mu.Unlock()
		return quiet
	}

	stable := 0
	for rounds := 0; stable < quiescenceStableRounds; rounds++ {
		if rounds >= quiescenceMaxRounds {
			c.log.Warn(context.Background(), "cooperative quiescence ceiling reached",
				logging.Int("target", int(target)),
			)
			return true
		}
		yield()
		c.mu.Lock()
		due := c.queue.countUntil(target)
		c.mu.Unlock()
		if due > 0 {
			return false
		}
		if c.router.Inflight() > 0 {
			stable = 0
			continue
		}
		stable++
	}
	return true
}

// AddPending records that dest has received a dispatched event it has
// not yet acknowledged. The registry calls it before handing the event
// to the actor, so the obligation exists before the reaction can run.
func (c *Clock) AddPending(dest string) {
	c.mu.Lock()
	c.pending[dest]++
	c.pendingTotal++
	c.mu.Unlock()
}

// Done signals that dest finished reacting to one dispatched event,
// after any schedules the reaction performed were accepted into the
// queue.
func (c *Clock) Done(dest string) {
	c.mu.Lock()
	if c.pending[dest] > 0 {
		c.pending[dest]--
		if c.pending[dest] == 0 {
			delete(c.pending, dest)
		}
		c.pendingTotal--
		if c.pendingTotal == 0 {
			c.ackCond.Broadcast()
		}
	}
	c.mu.Unlock()
}

// Fail removes every outstanding acknowledgement for dest. The failure
// transition of a crashed handler calls it so the advance proceeds.
func (c *Clock) Fail(dest string) {
	c.mu.Lock()
	if n := c.pending[dest]; n > 0 {
		delete(c.pending, dest)
		c.pendingTotal -= n
		if c.pendingTotal == 0 {
			c.ackCond.Broadcast()
		}
	}
	c.mu.Unlock()
}

func yield() {
	for i := 0; i < quiescenceYields; i++ {
		runtime.Gosched()
	}
	time.Sleep(time.Microsecond)
}
