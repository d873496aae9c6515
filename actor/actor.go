// Package actor hosts process-like simulation actors: it runs behavior
// callbacks in response to messages and exposes a uniform API for
// scheduling and sending on a virtual clock.
package actor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/signalsfoundry/virtualtime-simulator/internal/logging"
	"github.com/signalsfoundry/virtualtime-simulator/internal/observability"
	"github.com/signalsfoundry/virtualtime-simulator/trace"
	"github.com/signalsfoundry/virtualtime-simulator/vclock"
)

// CallTimeoutTicks is the policy timeout for synchronous calls, in
// virtual time. It is reported in call timeout errors; Call schedules no
// virtual-time deadline and is bounded by the real-time ceiling instead.
const CallTimeoutTicks vclock.Time = 5000

// defaultCallCeiling bounds the real-time wait for a call reply so a
// crashed recipient cannot block the caller forever.
const defaultCallCeiling = 5 * time.Second

const defaultInboxSize = 1024

// Directory resolves actor names at send time and tracks reaction
// completion obligations. The simulation coordinator's registry
// implements it.
type Directory interface {
	// Lookup returns the currently registered actor of that name, or
	// nil. Resolution happens at the moment of sending, not at
	// registration.
	Lookup(name string) *Host
	// Register adds a spawned actor under its name.
	Register(h *Host) error
	// Track records one completion obligation for dest before a message
	// enters its inbox.
	Track(dest string)
	// ReactionDone settles one completion obligation for dest.
	ReactionDone(dest string)
}

// Options configures one actor. Either the declarative fields (Pattern,
// OnReceive, OnMatch) or Server may be used, not both.
type Options struct {
	Pattern      *Pattern
	Targets      []string
	OnReceive    ReceiveFunc
	OnMatch      []MatchRule
	InitialState any

	// Server supplies an event-loop behavior instead of the declarative
	// fields; ServerArgs is passed to its Init.
	Server     Server
	ServerArgs any

	Stats         StatsOption
	TraceSink     trace.Sink
	FailurePolicy FailurePolicy
	InboxSize     int

	// CallCeiling bounds the real-time wait for call replies; zero uses
	// the default.
	CallCeiling time.Duration

	Logger  logging.Logger
	Metrics *observability.KernelCollector
}

// envelope frames one inbound message for the pump. reply is non-nil for
// synchronous calls. Bookkeeping payloads (pattern pump ticks, sleep
// wake-ups) never reach the behavior or the stats.
type envelope struct {
	payload any
	kind    trace.Kind
	reply   chan any
}

// sleepWake resumes a reaction blocked in Sleep. It is signalled
// directly, bypassing the inbox, because the pump goroutine is the one
// sleeping.
type sleepWake struct {
	ch chan struct{}
}

// patternTick drives the actor's declarative send pattern.
type patternTick struct{}

// Host owns one actor: its user state, its inbox, and its behavior. The
// clock reference, the stats choice, and the trace sink are injected at
// creation and propagate to spawned children.
type Host struct {
	name    string
	clock   *vclock.Clock
	dir     Directory
	log     logging.Logger
	metrics *observability.KernelCollector

	pattern   *Pattern
	targets   []string
	onReceive ReceiveFunc
	onMatch   []MatchRule
	server    Server
	srvArgs   any

	stats  *Stats
	sink   trace.Sink
	policy FailurePolicy

	inbox    chan envelope
	stop     chan struct{}
	pumpDone chan struct{}
	stopOnce sync.Once
	started  bool

	callCeiling time.Duration

	// Pump-goroutine state. state and failed are touched only by the
	// pump while it runs and read by the coordinator after it exits.
	state      any
	failed     bool
	inDispatch bool
}

// New builds an actor host bound to the given clock and directory. Call
// Start to begin processing.
func New(name string, clock *vclock.Clock, dir Directory, opts Options) (*Host, error) {
	if name == "" {
		return nil, fmt.Errorf("new actor: empty name")
	}
	if clock == nil {
		return nil, fmt.Errorf("new actor %q: clock is nil", name)
	}
	if dir == nil {
		return nil, fmt.Errorf("new actor %q: directory is nil", name)
	}
	if opts.Server != nil && (opts.OnReceive != nil || len(opts.OnMatch) > 0 || opts.Pattern != nil) {
		return nil, fmt.Errorf("new actor %q: server and declarative behavior are mutually exclusive", name)
	}
	if err := opts.Pattern.Validate(); err != nil {
		return nil, fmt.Errorf("new actor %q: %w", name, err)
	}
	size := opts.InboxSize
	if size <= 0 {
		size = defaultInboxSize
	}
	log := opts.Logger
	if log == nil {
		log = logging.Noop()
	}
	h := &Host{
		name:        name,
		clock:       clock,
		dir:         dir,
		log:         logging.WithActor(log, name),
		metrics:     opts.Metrics,
		pattern:     opts.Pattern,
		targets:     append([]string(nil), opts.Targets...),
		onReceive:   opts.OnReceive,
		onMatch:     append([]MatchRule(nil), opts.OnMatch...),
		server:      opts.Server,
		srvArgs:     opts.ServerArgs,
		sink:        opts.TraceSink,
		policy:      opts.FailurePolicy,
		inbox:       make(chan envelope, size),
		stop:        make(chan struct{}),
		pumpDone:    make(chan struct{}),
		callCeiling: defaultCallCeiling,
		state:       opts.InitialState,
	}
	if opts.CallCeiling > 0 {
		h.callCeiling = opts.CallCeiling
	}
	if opts.Stats == StatsOn {
		h.stats = &Stats{}
	}
	return h, nil
}

// Name returns the actor's process-wide unique identity.
func (h *Host) Name() string { return h.name }

// Clock returns the injected clock reference.
func (h *Host) Clock() *vclock.Clock { return h.clock }

// Stats returns the actor's tracker, nil when tracking is off.
func (h *Host) Stats() *Stats { return h.stats }

// Start runs the server's Init, if any, and launches the inbox pump.
func (h *Host) Start() error {
	if h.started {
		return fmt.Errorf("actor %q already started", h.name)
	}
	if h.server != nil {
		state, err := h.server.Init(&Context{h: h}, h.srvArgs)
		if err != nil {
			return fmt.Errorf("actor %q init: %w", h.name, err)
		}
		h.state = state
	}
	h.started = true
	go h.pump()
	return nil
}

// Stop terminates the pump, settles any queued obligations, and runs the
// server's Terminate hook. Stopping a never-started actor is a no-op.
func (h *Host) Stop() {
	h.stopOnce.Do(func() {
		if !h.started {
			return
		}
		close(h.stop)
		<-h.pumpDone
		if h.server != nil {
			h.server.Terminate(nil, h.state)
		}
	})
}

// StartSending schedules the first pump tick of the actor's send
// pattern. It is a no-op without a pattern.
func (h *Host) StartSending() error {
	if h.pattern == nil {
		return nil
	}
	_, err := h.clock.Schedule(h.name, patternTick{}, h.pattern.firstDelay())
	return err
}

// State returns the user state. Valid only once the pump has stopped.
func (h *Host) State() any { return h.state }

// Failed reports whether a FailureStop actor has crashed. Valid between
// advances or after Stop.
func (h *Host) Failed() bool { return h.failed }

// Deliver accepts one clock-dispatched event. The caller (the registry)
// has already recorded the completion obligation via Directory.Track.
func (h *Host) Deliver(ev vclock.Event) {
	switch p := ev.Payload.(type) {
	case sleepWake:
		// The pump goroutine itself is blocked in Sleep; resume it
		// directly instead of going through the inbox.
		p.ch <- struct{}{}
	case patternTick:
		h.enqueue(envelope{payload: p})
	case Call:
		h.enqueue(envelope{payload: p.Msg, kind: trace.KindCall, reply: make(chan any, 1)})
	case Cast:
		h.enqueue(envelope{payload: p.Msg, kind: trace.KindCast})
	default:
		h.enqueue(envelope{payload: ev.Payload, kind: trace.KindSend})
	}
}

func (h *Host) enqueue(env envelope) {
	h.inbox <- env
}

func (h *Host) pump() {
	defer close(h.pumpDone)
	for {
		select {
		case env := <-h.inbox:
			h.process(env)
		case <-h.stop:
			for {
				select {
				case <-h.inbox:
					h.dir.ReactionDone(h.name)
				default:
					return
				}
			}
		}
	}
}

// process runs one envelope through the behavior. Exactly one
// ReactionDone is issued per envelope; Sleep transfers its obligation to
// the wake-up event, which the same ReactionDone then settles.
func (h *Host) process(env envelope) {
	h.inDispatch = true
	defer func() {
		h.inDispatch = false
		if r := recover(); r != nil {
			h.recordFailure(fmt.Errorf("handler panic: %v", r))
		}
		h.dir.ReactionDone(h.name)
	}()

	if h.failed {
		return
	}
	if _, ok := env.payload.(patternTick); ok {
		h.pumpPattern()
		return
	}

	h.stats.RecordReceived(env.payload)
	h.metrics.IncReceived(h.name)

	if h.server != nil {
		h.processServer(env)
		return
	}
	h.applyReaction(h.react(env.payload), env)
}

func (h *Host) react(msg any) Reaction {
	for _, rule := range h.onMatch {
		if rule.matches(msg) {
			return rule.respond(msg, h.state)
		}
	}
	if h.onReceive != nil {
		return h.onReceive(msg, h.state)
	}
	return Ok(h.state)
}

func (h *Host) processServer(env envelope) {
	switch env.kind {
	case trace.KindCall:
		reply, state, err := h.server.HandleCall(env.payload, h.state)
		if err != nil {
			h.recordFailure(fmt.Errorf("handle_call: %w", err))
			return
		}
		h.state = state
		if env.reply != nil {
			select {
			case env.reply <- reply:
			default:
			}
		}
	case trace.KindCast:
		state, err := h.server.HandleCast(env.payload, h.state)
		if err != nil {
			h.recordFailure(fmt.Errorf("handle_cast: %w", err))
			return
		}
		h.state = state
	default:
		state, err := h.server.HandleInfo(env.payload, h.state)
		if err != nil {
			h.recordFailure(fmt.Errorf("handle_info: %w", err))
			return
		}
		h.state = state
	}
}

func (h *Host) applyReaction(rc Reaction, env envelope) {
	h.state = rc.state
	switch rc.kind {
	case reactionOk:
	case reactionReply:
		if env.reply != nil {
			select {
			case env.reply <- rc.value:
			default:
			}
		}
	case reactionSend:
		h.emit(rc.messages)
	case reactionSendAfter:
		h.emitAfter(rc.delay, rc.messages)
	}
}

// emit delivers messages immediately, resolving targets by name at the
// moment of sending. Destinations observe sends from one reaction in
// issue order.
func (h *Host) emit(messages []Outgoing) {
	for _, m := range messages {
		for _, target := range h.resolve(m.Target) {
			h.sendNow(target, m.Payload)
		}
	}
}

func (h *Host) emitAfter(delay vclock.Time, messages []Outgoing) {
	for _, m := range messages {
		for _, target := range h.resolve(m.Target) {
			h.sendAfter(target, m.Payload, delay)
		}
	}
}

func (h *Host) resolve(target string) []string {
	if target == "" {
		return h.targets
	}
	return []string{target}
}

// sendNow pushes a payload straight into the target's inbox. A missing
// target is a silent no-op and is not counted.
func (h *Host) sendNow(target string, payload any) {
	inner, kind := unwrap(payload)
	peer := h.dir.Lookup(target)
	if peer == nil {
		h.log.Debug(context.Background(), "dropped send to unknown target",
			logging.String("target", target))
		return
	}
	h.dir.Track(target)
	h.countSent(inner, target, kind)
	env := envelope{payload: inner, kind: kind}
	if kind == trace.KindCall {
		// Asynchronous dispatch of a call shape: the reply is discarded.
		env.reply = make(chan any, 1)
	}
	peer.enqueue(env)
}

// sendAfter emits through the virtual clock. The send is counted and
// traced at schedule time; a target missing at dispatch is dropped by
// the router.
func (h *Host) sendAfter(target string, payload any, delay vclock.Time) {
	inner, kind := unwrap(payload)
	if _, err := h.clock.Schedule(target, payload, delay); err != nil {
		h.log.Warn(context.Background(), "send_after rejected",
			logging.String("target", target),
			logging.Any("err", err))
		return
	}
	h.countSent(inner, target, kind)
}

// Call sends msg synchronously and waits for the recipient's Reply. The
// wait is bounded only by the real-time ceiling (Options.CallCeiling,
// default 5 s), so a crashed recipient cannot wedge the caller; no
// virtual-time deadline is scheduled, and CallTimeoutTicks appears only
// in the returned ErrCallTimeout error.
func (h *Host) Call(target string, msg any) (any, error) {
	peer := h.dir.Lookup(target)
	if peer == nil {
		return nil, fmt.Errorf("call %q: %w", target, ErrUnknownTarget)
	}
	reply := make(chan any, 1)
	h.dir.Track(target)
	h.countSent(msg, target, trace.KindCall)
	peer.enqueue(envelope{payload: msg, kind: trace.KindCall, reply: reply})
	select {
	case v := <-reply:
		return v, nil
	case <-time.After(h.callCeiling):
		return nil, fmt.Errorf("call %q after %d ticks: %w", target, CallTimeoutTicks, ErrCallTimeout)
	}
}

// Cast sends msg to target fire-and-forget.
func (h *Host) Cast(target string, msg any) {
	h.sendNow(target, Cast{Msg: msg})
}

// Send delivers a bare payload to target immediately.
func (h *Host) Send(target string, msg any) {
	h.sendNow(target, msg)
}

// SendAfter delivers a bare payload to target after delay ticks.
func (h *Host) SendAfter(target string, msg any, delay vclock.Time) {
	h.sendAfter(target, msg, delay)
}

// Sleep blocks the current reaction until delay ticks have passed on the
// virtual clock. The reaction's completion obligation transfers to the
// internally scheduled wake-up event, so the clock can keep advancing
// while the actor sleeps. Wall-clock time is not consumed.
func (h *Host) Sleep(delay vclock.Time) error {
	ch := make(chan struct{}, 1)
	if _, err := h.clock.Schedule(h.name, sleepWake{ch: ch}, delay); err != nil {
		return err
	}
	if h.inDispatch {
		h.dir.ReactionDone(h.name)
	}
	<-ch
	return nil
}

// SpawnChild creates and starts a child actor, propagating the clock
// identity, the stats choice, and the trace sink. Options set explicitly
// on the child win over the inherited context.
func (h *Host) SpawnChild(name string, opts Options) (*Host, error) {
	if opts.Stats == StatsInherit {
		if h.stats != nil {
			opts.Stats = StatsOn
		} else {
			opts.Stats = StatsOff
		}
	}
	if opts.TraceSink == nil {
		opts.TraceSink = h.sink
	}
	if opts.Logger == nil {
		opts.Logger = h.log
	}
	if opts.Metrics == nil {
		opts.Metrics = h.metrics
	}
	child, err := New(name, h.clock, h.dir, opts)
	if err != nil {
		return nil, err
	}
	if err := h.dir.Register(child); err != nil {
		return nil, err
	}
	if err := child.Start(); err != nil {
		return nil, err
	}
	return child, nil
}

// pumpPattern emits one round of the actor's send pattern and schedules
// the next pump tick.
func (h *Host) pumpPattern() {
	p := h.pattern
	if p == nil {
		return
	}
	switch p.kind {
	case patternPeriodic:
		for _, target := range h.targets {
			h.sendNow(target, p.msg)
		}
		h.reschedulePattern(p.interval)
	case patternBurst:
		for i := 0; i < p.count; i++ {
			for _, target := range h.targets {
				h.sendNow(target, p.msg)
			}
		}
		h.reschedulePattern(p.interval)
	case patternSelfMessage:
		// One-shot to self; no reschedule.
		h.sendNow(h.name, p.msg)
	}
}

func (h *Host) reschedulePattern(interval vclock.Time) {
	if _, err := h.clock.Schedule(h.name, patternTick{}, interval); err != nil {
		h.log.Warn(context.Background(), "pattern reschedule rejected", logging.Any("err", err))
	}
}

func (h *Host) countSent(payload any, target string, kind trace.Kind) {
	h.stats.RecordSent(payload)
	h.metrics.IncSent(h.name)
	if h.sink != nil {
		h.sink.Append(trace.Event{
			Timestamp: int64(h.clock.Now()),
			From:      h.name,
			To:        target,
			Payload:   payload,
			Kind:      kind,
		})
	}
}

func (h *Host) recordFailure(err error) {
	h.stats.RecordFailure()
	h.metrics.IncFailure(h.name)
	h.log.Warn(context.Background(), "handler failure", logging.Any("err", err))
	if h.policy == FailureStop {
		h.failed = true
		h.clock.Fail(h.name)
	}
}

func unwrap(payload any) (any, trace.Kind) {
	switch p := payload.(type) {
	case Call:
		return p.Msg, trace.KindCall
	case Cast:
		return p.Msg, trace.KindCast
	default:
		return payload, trace.KindSend
	}
}
