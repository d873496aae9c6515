package actor

import (
	"reflect"

	"github.com/signalsfoundry/virtualtime-simulator/vclock"
)

// ReceiveFunc reacts to one inbound payload with the actor's current
// state and returns exactly one Reaction.
type ReceiveFunc func(msg any, state any) Reaction

// Outgoing is one message to emit from a reaction. An empty Target
// addresses every declared target of the sending actor.
type Outgoing struct {
	Target  string
	Payload any
}

// To addresses a single named actor.
func To(target string, payload any) Outgoing {
	return Outgoing{Target: target, Payload: payload}
}

// ToAll addresses every declared target of the sender.
func ToAll(payload any) Outgoing {
	return Outgoing{Payload: payload}
}

// Call wraps a payload for synchronous dispatch: the recipient's Reply
// is routed back to the caller. On an asynchronous dispatch the reply is
// discarded.
type Call struct {
	Msg any
}

// Cast wraps a payload for fire-and-forget dispatch.
type Cast struct {
	Msg any
}

type reactionKind int

const (
	reactionOk reactionKind = iota
	reactionReply
	reactionSend
	reactionSendAfter
)

// Reaction is the result of a behavior callback. Construct one with Ok,
// Reply, Send, or SendAfter; the host interprets it eagerly after the
// callback returns.
type Reaction struct {
	kind     reactionKind
	state    any
	value    any
	delay    vclock.Time
	messages []Outgoing
}

// Ok updates the state and emits nothing.
func Ok(state any) Reaction {
	return Reaction{kind: reactionOk, state: state}
}

// Reply answers an in-flight synchronous call and updates the state. On
// an asynchronous dispatch the value is discarded.
func Reply(value any, state any) Reaction {
	return Reaction{kind: reactionReply, state: state, value: value}
}

// Send emits the listed messages immediately and updates the state.
func Send(messages []Outgoing, state any) Reaction {
	return Reaction{kind: reactionSend, state: state, messages: messages}
}

// SendAfter emits the listed messages after delay ticks on the virtual
// clock and updates the state. It returns without blocking.
func SendAfter(delay vclock.Time, messages []Outgoing, state any) Reaction {
	return Reaction{kind: reactionSendAfter, state: state, delay: delay, messages: messages}
}

// MatchRule pairs a pattern with a response. Rules are tried in
// declaration order; the first match wins, falling through to OnReceive
// when none matches. The pattern is either a literal payload or a
// predicate; the response is either a ReceiveFunc or a bare Value
// interpreted as Send(value to all targets, state).
type MatchRule struct {
	Literal   any
	Predicate func(msg any) bool
	Respond   ReceiveFunc
	Value     any
}

func (r MatchRule) matches(msg any) bool {
	if r.Predicate != nil {
		return r.Predicate(msg)
	}
	return reflect.DeepEqual(r.Literal, msg)
}

func (r MatchRule) respond(msg any, state any) Reaction {
	if r.Respond != nil {
		return r.Respond(msg, state)
	}
	return Send([]Outgoing{ToAll(r.Value)}, state)
}

// StatsOption controls per-actor statistics tracking. The zero value
// inherits from the spawning context; tracking is off at the top level
// unless enabled, keeping production paths zero-overhead.
type StatsOption int

const (
	StatsInherit StatsOption = iota
	StatsOn
	StatsOff
)

// FailurePolicy decides what a failed actor does with later payloads.
type FailurePolicy int

const (
	// FailureContinue records the failure and keeps processing.
	FailureContinue FailurePolicy = iota
	// FailureStop marks the actor failed; later payloads are drained
	// without reaching the behavior.
	FailureStop
)
