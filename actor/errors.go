package actor

import "errors"

// ErrUnknownTarget reports a synchronous call to a name with no
// registered actor. Asynchronous sends to unknown targets are dropped
// silently instead.
var ErrUnknownTarget = errors.New("unknown target")

// ErrCallTimeout is the sentinel returned when a synchronous call
// receives no reply within the policy timeout. The caller's state update
// proceeds.
var ErrCallTimeout = errors.New("call timeout")
