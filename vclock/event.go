package vclock

import "github.com/google/uuid"

// Time is logical simulation time, counted in abstract ticks. The
// conventional unit is one millisecond. Time never decreases.
type Time int64

// Handle is an opaque token identifying a scheduled event so it can be
// cancelled before dispatch. Handles are unique across the process.
type Handle string

func newHandle() Handle {
	return Handle(uuid.NewString())
}

// Event is a scheduled message. Once inserted into the queue an event is
// immutable; it is destroyed either by Cancel or by dispatch to its
// destination.
type Event struct {
	// Deadline is the absolute tick at which the event fires.
	Deadline Time
	// Dest names the destination actor. Destinations are resolved by
	// name at dispatch time through the Router.
	Dest string
	// Payload is delivered verbatim.
	Payload any
	// Handle cancels the event while it is still queued.
	Handle Handle
}
