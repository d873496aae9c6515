package vclock

import "errors"

// ErrInvalidArgument reports a negative delay or advance amount. The
// offending call fails and the clock state is unchanged.
var ErrInvalidArgument = errors.New("invalid argument")
