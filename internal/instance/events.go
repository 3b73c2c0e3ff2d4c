package instance

// EventKind tags what an Event from the worker goroutine reports.
type EventKind uint8

const (
	EventBreakpointHit EventKind = iota
)

// Event is one worker-to-host notification, emitted from the worker
// goroutine. A handler must only flag state, never mutate the program
// database. The host drains Events via Instance.Events, never from inside
// Run itself.
type Event struct {
	Kind       EventKind
	Breakpoint *Breakpoint
}

// Events returns the channel the worker posts Events to. Sends are
// non-blocking (hitBreakpoint drops an event rather than stalling the
// worker if nobody is listening), so a host that cares about every hit
// must keep this channel drained.
func (in *Instance) Events() <-chan Event { return in.events }
