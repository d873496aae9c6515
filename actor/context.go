package actor

import "github.com/signalsfoundry/virtualtime-simulator/vclock"

// Context is the clock-facing API visible to user code running inside an
// actor. It carries the injected clock identity rather than any global
// slot, and propagates to children through SpawnChild.
type Context struct {
	h *Host
}

// Self returns the actor's own name.
func (c *Context) Self() string { return c.h.name }

// Now returns the current virtual time.
func (c *Context) Now() vclock.Time { return c.h.clock.Now() }

// Schedule places a payload for dest at now + delay on the virtual
// clock.
func (c *Context) Schedule(dest string, payload any, delay vclock.Time) (vclock.Handle, error) {
	return c.h.clock.Schedule(dest, payload, delay)
}

// Cancel removes a scheduled event by handle.
func (c *Context) Cancel(handle vclock.Handle) bool {
	return c.h.clock.Cancel(handle)
}

// Sleep advances the actor's local position in the timeline by blocking
// on an internally scheduled wake-up; wall-clock time is not consumed.
func (c *Context) Sleep(delay vclock.Time) error {
	return c.h.Sleep(delay)
}

// Call sends a synchronous message and waits for the reply.
func (c *Context) Call(target string, msg any) (any, error) {
	return c.h.Call(target, msg)
}

// Cast sends a fire-and-forget message.
func (c *Context) Cast(target string, msg any) {
	c.h.Cast(target, msg)
}

// Send delivers a bare payload immediately.
func (c *Context) Send(target string, msg any) {
	c.h.Send(target, msg)
}

// SendAfter delivers a bare payload after delay ticks.
func (c *Context) SendAfter(target string, msg any, delay vclock.Time) {
	c.h.SendAfter(target, msg, delay)
}

// SpawnChild creates and starts a child actor under the same clock,
// inheriting the stats choice and trace sink unless overridden.
func (c *Context) SpawnChild(name string, opts Options) (*Host, error) {
	return c.h.SpawnChild(name, opts)
}
