package actor

import (
	"errors"
	"testing"

	"github.com/signalsfoundry/virtualtime-simulator/vclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchRule_LiteralAndPredicate(t *testing.T) {
	literal := MatchRule{Literal: "ping", Respond: func(msg, state any) Reaction {
		return Reply("pong", state)
	}}
	assert.True(t, literal.matches("ping"))
	assert.False(t, literal.matches("pong"))

	pred := MatchRule{Predicate: func(msg any) bool {
		n, ok := msg.(int)
		return ok && n > 10
	}}
	assert.True(t, pred.matches(11))
	assert.False(t, pred.matches(10))
	assert.False(t, pred.matches("11"))
}

func TestMatchRule_ValueResponseBecomesSend(t *testing.T) {
	rule := MatchRule{Literal: "go", Value: "went"}
	rc := rule.respond("go", "state")

	require.Equal(t, reactionSend, rc.kind)
	require.Len(t, rc.messages, 1)
	assert.Equal(t, "", rc.messages[0].Target, "value response addresses all targets")
	assert.Equal(t, "went", rc.messages[0].Payload)
	assert.Equal(t, "state", rc.state)
}

func TestReactionConstructors(t *testing.T) {
	rc := Ok(1)
	assert.Equal(t, reactionOk, rc.kind)
	assert.Equal(t, 1, rc.state)

	rc = Reply("v", 2)
	assert.Equal(t, reactionReply, rc.kind)
	assert.Equal(t, "v", rc.value)

	rc = Send([]Outgoing{To("x", "m")}, 3)
	assert.Equal(t, reactionSend, rc.kind)
	require.Len(t, rc.messages, 1)
	assert.Equal(t, "x", rc.messages[0].Target)

	rc = SendAfter(40, []Outgoing{ToAll("m")}, 4)
	assert.Equal(t, reactionSendAfter, rc.kind)
	assert.Equal(t, vclock.Time(40), rc.delay)
}

func TestPattern_Validate(t *testing.T) {
	assert.NoError(t, Periodic(100, "m").Validate())
	assert.NoError(t, Rate(4, "m").Validate())
	assert.NoError(t, Burst(5, 200, "m").Validate())
	assert.NoError(t, SelfMessage(0, "m").Validate())

	err := Rate(0, "m").Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, vclock.ErrInvalidArgument))

	assert.Error(t, Periodic(0, "m").Validate())
	assert.Error(t, Periodic(-10, "m").Validate())
	assert.Error(t, Burst(0, 100, "m").Validate())
	assert.Error(t, SelfMessage(-1, "m").Validate())
}

func TestPattern_RateInterval(t *testing.T) {
	// rate(per_second) is periodic(1000 / per_second) with integer
	// division.
	assert.Equal(t, vclock.Time(1000), Rate(1, "m").interval)
	assert.Equal(t, vclock.Time(250), Rate(4, "m").interval)
	assert.Equal(t, vclock.Time(333), Rate(3, "m").interval)
	assert.Equal(t, vclock.Time(1), Rate(1000, "m").interval)
}

func TestUnwrapSendShapes(t *testing.T) {
	inner, kind := unwrap(Call{Msg: "c"})
	assert.Equal(t, "c", inner)
	assert.Equal(t, "call", string(kind))

	inner, kind = unwrap(Cast{Msg: "k"})
	assert.Equal(t, "k", inner)
	assert.Equal(t, "cast", string(kind))

	inner, kind = unwrap("bare")
	assert.Equal(t, "bare", inner)
	assert.Equal(t, "send", string(kind))
}
