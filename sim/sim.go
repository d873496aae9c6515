// Package sim assembles actor topologies, drives the virtual clock, and
// collects statistics and traces.
package sim

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/signalsfoundry/virtualtime-simulator/actor"
	"github.com/signalsfoundry/virtualtime-simulator/internal/logging"
	"github.com/signalsfoundry/virtualtime-simulator/internal/observability"
	"github.com/signalsfoundry/virtualtime-simulator/trace"
	"github.com/signalsfoundry/virtualtime-simulator/vclock"
)

// ErrStopped reports an operation on a terminated simulation.
var ErrStopped = errors.New("simulation stopped")

// Options configures a simulation.
type Options struct {
	// Trace enables in-memory trace collection for the run.
	Trace bool
	// Mode selects the clock's dispatch model; the default is feedback.
	Mode vclock.Mode
	// Sink receives trace events in addition to the in-memory stream,
	// e.g. a trace.OTelSink.
	Sink    trace.Sink
	Logger  logging.Logger
	Metrics *observability.KernelCollector
}

// Simulation owns one clock, the set of registered actors, and the
// collected results of driving them.
type Simulation struct {
	mu sync.Mutex

	clock   *vclock.Clock
	reg     *registry
	log     logging.Logger
	metrics *observability.KernelCollector
	mem     *trace.MemorySink
	sink    trace.Sink

	sendersStarted bool
	stopped        bool
	elapsed        vclock.Time
	lastStats      *Stats
}

// New creates a simulation with a fresh clock at time zero.
func New(opts Options) (*Simulation, error) {
	log := opts.Logger
	if log == nil {
		log = logging.Noop()
	}
	log, _ = logging.WithRunLogger(log)

	reg := newRegistry(opts.Mode == vclock.ModeFeedback)
	clock, err := vclock.New(vclock.Config{
		Mode:    opts.Mode,
		Router:  reg,
		Logger:  log,
		Metrics: opts.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("new simulation: %w", err)
	}
	reg.clock = clock

	s := &Simulation{
		clock:   clock,
		reg:     reg,
		log:     log,
		metrics: opts.Metrics,
		sink:    opts.Sink,
	}
	if opts.Trace {
		s.mem = trace.NewMemorySink()
	}
	return s, nil
}

// Clock exposes the simulation's virtual clock.
func (s *Simulation) Clock() *vclock.Clock { return s.clock }

// Actor returns the registered actor of that name, or nil.
func (s *Simulation) Actor(name string) *actor.Host {
	return s.reg.Lookup(name)
}

// AddActor registers and starts a declarative actor under the clock.
// Stats tracking defaults to on: the coordinator exists to collect them.
func (s *Simulation) AddActor(name string, opts actor.Options) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return fmt.Errorf("add actor %q: %w", name, ErrStopped)
	}
	if opts.Stats == actor.StatsInherit {
		opts.Stats = actor.StatsOn
	}
	if opts.TraceSink == nil {
		opts.TraceSink = s.traceSink()
	}
	if opts.Logger == nil {
		opts.Logger = s.log
	}
	if opts.Metrics == nil {
		opts.Metrics = s.metrics
	}
	h, err := actor.New(name, s.clock, s.reg, opts)
	if err != nil {
		return err
	}
	if err := s.reg.Register(h); err != nil {
		return err
	}
	if err := h.Start(); err != nil {
		s.reg.remove(name)
		return err
	}
	return nil
}

// AddProcess registers a user-supplied event-loop actor. Its internal
// timers run on the simulation's virtual clock.
func (s *Simulation) AddProcess(name string, srv actor.Server, args any) error {
	return s.AddActor(name, actor.Options{Server: srv, ServerArgs: args})
}

func (s *Simulation) traceSink() trace.Sink {
	switch {
	case s.mem != nil && s.sink != nil:
		return trace.Tee{s.mem, s.sink}
	case s.mem != nil:
		return s.mem
	case s.sink != nil:
		return s.sink
	default:
		return nil
	}
}

// Run starts the pattern-driven senders on the first call, advances the
// clock by duration, and returns the collected stats. On a terminated
// simulation it returns the last snapshot unchanged.
func (s *Simulation) Run(duration vclock.Time) (*Stats, error) {
	s.mu.Lock()
	if s.stopped {
		last := s.lastStats
		s.mu.Unlock()
		return last, nil
	}
	if duration < 0 {
		s.mu.Unlock()
		return nil, fmt.Errorf("run for %d: %w", duration, vclock.ErrInvalidArgument)
	}
	if !s.sendersStarted {
		for _, h := range s.reg.all() {
			if err := h.StartSending(); err != nil {
				s.mu.Unlock()
				return nil, fmt.Errorf("start sending for %q: %w", h.Name(), err)
			}
		}
		s.sendersStarted = true
	}
	s.mu.Unlock()

	if _, err := s.clock.Advance(duration); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.elapsed += duration
	stats := s.snapshotLocked()
	s.lastStats = stats
	s.mu.Unlock()
	return stats, nil
}

// GetStats returns the aggregate snapshot: per-actor counts and rates,
// total messages, and elapsed virtual duration.
func (s *Simulation) GetStats() *Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return s.lastStats
	}
	return s.snapshotLocked()
}

// Trace returns the recorded trace stream, nil when tracing is off.
func (s *Simulation) Trace() []trace.Event {
	if s.mem == nil {
		return nil
	}
	return s.mem.Events()
}

// Stop terminates every actor and freezes the last stats snapshot.
func (s *Simulation) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.lastStats = s.snapshotLocked()
	s.stopped = true
	hosts := s.reg.all()
	s.mu.Unlock()

	for _, h := range hosts {
		h.Stop()
	}
	return nil
}

func (s *Simulation) snapshotLocked() *Stats {
	stats := &Stats{
		Actors:     make(map[string]ActorStats),
		DurationMS: int64(s.elapsed),
	}
	for _, h := range s.reg.all() {
		snap := h.Stats().Snapshot()
		stats.Actors[h.Name()] = ActorStats{
			Sent:         snap.Sent,
			Received:     snap.Received,
			Failures:     snap.Failures,
			SentRate:     perSecond(snap.Sent, s.elapsed),
			ReceivedRate: perSecond(snap.Received, s.elapsed),
		}
		stats.TotalMessages += snap.Sent
	}
	return stats
}

func perSecond(n int, elapsed vclock.Time) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(n) * 1000 / float64(elapsed)
}

// registry maps actor names to hosts. Targeting is by name, resolved at
// send time, so the actor graph stays lookup-based and free of ownership
// cycles. It implements both vclock.Router and actor.Directory.
type registry struct {
	mu       sync.RWMutex
	actors   map[string]*actor.Host
	order    []string
	inflight atomic.Int64
	feedback bool
	clock    *vclock.Clock
}

func newRegistry(feedback bool) *registry {
	return &registry{
		actors:   make(map[string]*actor.Host),
		feedback: feedback,
	}
}

// Register implements actor.Directory.
func (r *registry) Register(h *actor.Host) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.actors[h.Name()]; exists {
		return fmt.Errorf("actor %q already registered", h.Name())
	}
	r.actors[h.Name()] = h
	r.order = append(r.order, h.Name())
	return nil
}

// Lookup implements actor.Directory.
func (r *registry) Lookup(name string) *actor.Host {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.actors[name]
}

func (r *registry) remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.actors, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

func (r *registry) all() []*actor.Host {
	r.mu.RLock()
	defer r.mu.RUnlock()
	hosts := make([]*actor.Host, 0, len(r.order))
	for _, name := range r.order {
		hosts = append(hosts, r.actors[name])
	}
	return hosts
}

// Route implements vclock.Router: resolve the destination, record the
// completion obligation, hand the event over.
func (r *registry) Route(ev vclock.Event) bool {
	h := r.Lookup(ev.Dest)
	if h == nil {
		return false
	}
	r.Track(ev.Dest)
	h.Deliver(ev)
	return true
}

// Inflight implements vclock.Router.
func (r *registry) Inflight() int {
	return int(r.inflight.Load())
}

// Track implements actor.Directory. The obligation exists before the
// message enters the inbox, so the clock can never observe a quiet
// moment between delivery and reaction.
func (r *registry) Track(dest string) {
	r.inflight.Add(1)
	if r.feedback {
		r.clock.AddPending(dest)
	}
}

// ReactionDone implements actor.Directory.
func (r *registry) ReactionDone(dest string) {
	r.inflight.Add(-1)
	if r.feedback {
		r.clock.Done(dest)
	}
}
