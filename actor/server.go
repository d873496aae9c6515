package actor

// Server is a user-supplied event-loop behavior: a state machine with
// explicit hooks for synchronous calls, casts, and plain messages. The
// host wraps it so that its internal timers run on the virtual clock,
// reachable through the Context handed to Init.
type Server interface {
	// Init builds the initial state. ctx stays valid for the actor's
	// lifetime and is the server's handle onto the virtual clock.
	Init(ctx *Context, args any) (state any, err error)
	// HandleCall answers a synchronous call. The reply is routed back to
	// the caller's reply handle.
	HandleCall(msg any, state any) (reply any, newState any, err error)
	// HandleCast reacts to a fire-and-forget message.
	HandleCast(msg any, state any) (newState any, err error)
	// HandleInfo reacts to a bare message, including timer payloads the
	// server scheduled for itself.
	HandleInfo(msg any, state any) (newState any, err error)
	// Terminate runs once when the actor stops.
	Terminate(reason error, state any)
}
