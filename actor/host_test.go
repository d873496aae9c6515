package actor_test

import (
	"errors"
	"testing"
	"time"

	"github.com/signalsfoundry/virtualtime-simulator/actor"
	"github.com/signalsfoundry/virtualtime-simulator/sim"
	"github.com/signalsfoundry/virtualtime-simulator/vclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoServer answers calls with its configured reply and remembers the
// payloads it saw.
type echoServer struct {
	reply any
	seen  []any
}

func (e *echoServer) Init(ctx *actor.Context, args any) (any, error) { return args, nil }

func (e *echoServer) HandleCall(msg, state any) (any, any, error) {
	e.seen = append(e.seen, msg)
	return e.reply, state, nil
}

func (e *echoServer) HandleCast(msg, state any) (any, error) {
	e.seen = append(e.seen, msg)
	return state, nil
}

func (e *echoServer) HandleInfo(msg, state any) (any, error) {
	e.seen = append(e.seen, msg)
	return state, nil
}

func (e *echoServer) Terminate(reason error, state any) {}

// callerServer performs a synchronous call when poked and records the
// outcome.
type callerServer struct {
	ctx    *actor.Context
	target string
	result any
	err    error
}

func (c *callerServer) Init(ctx *actor.Context, args any) (any, error) {
	c.ctx = ctx
	return nil, nil
}

func (c *callerServer) HandleCall(msg, state any) (any, any, error) { return nil, state, nil }

func (c *callerServer) HandleCast(msg, state any) (any, error) {
	c.result, c.err = c.ctx.Call(c.target, msg)
	return state, nil
}

func (c *callerServer) HandleInfo(msg, state any) (any, error) { return state, nil }

func (c *callerServer) Terminate(reason error, state any) {}

func TestHost_SynchronousCallRoundTrip(t *testing.T) {
	s, err := sim.New(sim.Options{})
	require.NoError(t, err)
	defer s.Stop()

	caller := &callerServer{target: "svc"}
	require.NoError(t, s.AddProcess("client", caller, nil))
	require.NoError(t, s.AddActor("svc", actor.Options{
		OnMatch: []actor.MatchRule{{
			Literal: "ping",
			Respond: func(msg, state any) actor.Reaction {
				return actor.Reply("pong", state)
			},
		}},
	}))

	_, err = s.Clock().Schedule("client", actor.Cast{Msg: "ping"}, 10)
	require.NoError(t, err)
	_, err = s.Clock().Advance(20)
	require.NoError(t, err)
	require.NoError(t, s.Stop())

	require.NoError(t, caller.err)
	assert.Equal(t, "pong", caller.result)

	// One send and one receive on each side; the reply is not counted.
	stats := s.GetStats()
	assert.Equal(t, 1, stats.Actors["client"].Sent)
	assert.Equal(t, 1, stats.Actors["svc"].Received)
	assert.Equal(t, 0, stats.Actors["svc"].Sent)
}

func TestHost_CallTimeoutSentinel(t *testing.T) {
	s, err := sim.New(sim.Options{})
	require.NoError(t, err)
	defer s.Stop()

	caller := &callerServer{target: "mute"}
	require.NoError(t, s.AddActor("client", actor.Options{
		Server:      caller,
		CallCeiling: 50 * time.Millisecond,
	}))
	// The recipient never replies.
	require.NoError(t, s.AddActor("mute", actor.Options{}))

	host := s.Actor("client")
	require.NotNil(t, host)

	// Call directly from outside a reaction; the pump serves it in real
	// time.
	_, err = host.Call("mute", "anyone there?")
	require.Error(t, err)
	assert.True(t, errors.Is(err, actor.ErrCallTimeout))
}

func TestHost_CallUnknownTarget(t *testing.T) {
	s, err := sim.New(sim.Options{})
	require.NoError(t, err)
	defer s.Stop()

	require.NoError(t, s.AddActor("lonely", actor.Options{}))
	_, err = s.Actor("lonely").Call("nobody", "hello")
	require.Error(t, err)
	assert.True(t, errors.Is(err, actor.ErrUnknownTarget))
}

// sleeperServer sleeps on the virtual clock and records when it woke.
type sleeperServer struct {
	ctx   *actor.Context
	delay vclock.Time
	start vclock.Time
	woke  vclock.Time
}

func (sl *sleeperServer) Init(ctx *actor.Context, args any) (any, error) {
	sl.ctx = ctx
	return nil, nil
}

func (sl *sleeperServer) HandleCall(msg, state any) (any, any, error) { return nil, state, nil }

func (sl *sleeperServer) HandleCast(msg, state any) (any, error) {
	sl.start = sl.ctx.Now()
	if err := sl.ctx.Sleep(sl.delay); err != nil {
		return state, err
	}
	sl.woke = sl.ctx.Now()
	return state, nil
}

func (sl *sleeperServer) HandleInfo(msg, state any) (any, error) { return state, nil }

func (sl *sleeperServer) Terminate(reason error, state any) {}

func TestHost_SleepAdvancesLocalTimeline(t *testing.T) {
	s, err := sim.New(sim.Options{})
	require.NoError(t, err)
	defer s.Stop()

	sleeper := &sleeperServer{delay: 100}
	require.NoError(t, s.AddProcess("sleeper", sleeper, nil))

	_, err = s.Clock().Schedule("sleeper", actor.Cast{Msg: "nap"}, 10)
	require.NoError(t, err)
	_, err = s.Clock().Advance(500)
	require.NoError(t, err)
	require.NoError(t, s.Stop())

	assert.Equal(t, vclock.Time(10), sleeper.start)
	assert.Equal(t, vclock.Time(110), sleeper.woke)
}

func TestHost_SleepCooperativeMode(t *testing.T) {
	s, err := sim.New(sim.Options{Mode: vclock.ModeCooperative})
	require.NoError(t, err)
	defer s.Stop()

	sleeper := &sleeperServer{delay: 60}
	require.NoError(t, s.AddProcess("sleeper", sleeper, nil))

	_, err = s.Clock().Schedule("sleeper", actor.Cast{Msg: "nap"}, 40)
	require.NoError(t, err)
	_, err = s.Clock().Advance(200)
	require.NoError(t, err)
	require.NoError(t, s.Stop())

	assert.Equal(t, vclock.Time(40), sleeper.start)
	assert.Equal(t, vclock.Time(100), sleeper.woke)
}

func TestHost_CallCooperativeMode(t *testing.T) {
	s, err := sim.New(sim.Options{Mode: vclock.ModeCooperative})
	require.NoError(t, err)
	defer s.Stop()

	caller := &callerServer{target: "svc"}
	require.NoError(t, s.AddProcess("client", caller, nil))
	require.NoError(t, s.AddActor("svc", actor.Options{
		OnMatch: []actor.MatchRule{{
			Literal: "ping",
			Respond: func(msg, state any) actor.Reaction {
				return actor.Reply("pong", state)
			},
		}},
	}))

	_, err = s.Clock().Schedule("client", actor.Cast{Msg: "ping"}, 10)
	require.NoError(t, err)
	_, err = s.Clock().Advance(20)
	require.NoError(t, err)
	require.NoError(t, s.Stop())

	require.NoError(t, caller.err)
	assert.Equal(t, "pong", caller.result)
}

// spawnerServer spawns a child on demand.
type spawnerServer struct {
	ctx *actor.Context
}

func (sp *spawnerServer) Init(ctx *actor.Context, args any) (any, error) {
	sp.ctx = ctx
	return nil, nil
}

func (sp *spawnerServer) HandleCall(msg, state any) (any, any, error) { return nil, state, nil }

func (sp *spawnerServer) HandleCast(msg, state any) (any, error) {
	name, _ := msg.(string)
	_, err := sp.ctx.SpawnChild(name, actor.Options{})
	return state, err
}

func (sp *spawnerServer) HandleInfo(msg, state any) (any, error) { return state, nil }

func (sp *spawnerServer) Terminate(reason error, state any) {}

func TestHost_SpawnChildPropagatesContext(t *testing.T) {
	s, err := sim.New(sim.Options{})
	require.NoError(t, err)
	defer s.Stop()

	require.NoError(t, s.AddProcess("parent", &spawnerServer{}, nil))

	_, err = s.Clock().Schedule("parent", actor.Cast{Msg: "child"}, 5)
	require.NoError(t, err)
	_, err = s.Clock().Advance(10)
	require.NoError(t, err)

	child := s.Actor("child")
	require.NotNil(t, child, "child registered under the shared directory")
	assert.Same(t, s.Clock(), child.Clock(), "clock identity propagates to children")

	// The parent has stats on (coordinator default), so the child
	// inherits tracking.
	assert.NotNil(t, child.Stats())
}

func TestHost_SelfTargetDeliversToSender(t *testing.T) {
	s, err := sim.New(sim.Options{})
	require.NoError(t, err)
	defer s.Stop()

	require.NoError(t, s.AddActor("loop", actor.Options{
		Targets: []string{"loop"},
		OnMatch: []actor.MatchRule{{
			Literal: "kick",
			Respond: func(msg, state any) actor.Reaction {
				return actor.Send([]actor.Outgoing{actor.ToAll("echo")}, state)
			},
		}},
	}))

	_, err = s.Clock().Schedule("loop", "kick", 1)
	require.NoError(t, err)
	_, err = s.Clock().Advance(10)
	require.NoError(t, err)
	require.NoError(t, s.Stop())

	stats := s.GetStats()
	assert.Equal(t, 1, stats.Actors["loop"].Sent)
	assert.Equal(t, 2, stats.Actors["loop"].Received, "kick plus the self-directed echo")
}

func TestHost_FailureStopDropsLaterPayloads(t *testing.T) {
	s, err := sim.New(sim.Options{})
	require.NoError(t, err)
	defer s.Stop()

	require.NoError(t, s.AddActor("fragile", actor.Options{
		FailurePolicy: actor.FailureStop,
		OnReceive: func(msg, state any) actor.Reaction {
			if msg == "boom" {
				panic("kaboom")
			}
			return actor.Ok(state)
		},
	}))

	_, err = s.Clock().Schedule("fragile", "boom", 10)
	require.NoError(t, err)
	_, err = s.Clock().Schedule("fragile", "noop", 20)
	require.NoError(t, err)
	_, err = s.Clock().Advance(100)
	require.NoError(t, err)
	require.NoError(t, s.Stop())

	host := s.Actor("fragile")
	assert.True(t, host.Failed())

	snap := host.Stats().Snapshot()
	assert.Equal(t, 1, snap.Failures)
	assert.Equal(t, 1, snap.Received, "the payload after the crash never reaches the behavior")
}
