package tubes

import "reflect"

// memoryFount is a Fount backed by an in-memory slice, standing in for a
// real upstream (a socket reader, a file scanner) in tests. It pushes items
// to its drain one at a time, stopping the moment the drain's backpressure
// pauses it and resuming exactly where it left off on unpause — the same
// contract a Siphon's fount half offers.
type memoryFount struct {
	items   []any
	drain   Drain
	paused  bool
	stopped bool
	pauser  *Pauser
	outType reflect.Type
}

func newMemoryFount(items []any) *memoryFount {
	f := &memoryFount{items: items}
	f.pauser = NewPauser(f.onFirstPause, f.onLastResume)
	return f
}

func (f *memoryFount) onFirstPause() error { f.paused = true; return nil }

func (f *memoryFount) onLastResume() error {
	f.paused = false
	f.pump()
	return nil
}

func (f *memoryFount) OutputType() reflect.Type { return f.outType }

func (f *memoryFount) peerDrain() Drain { return f.drain }

func (f *memoryFount) FlowTo(drain Drain) (Fount, error) {
	old := f.drain
	f.drain = drain
	if old != nil && old != drain {
		detachOldDrain(old, f)
	}

	var next Fount
	if drain != nil {
		var err error
		next, err = drain.FlowingFrom(f)
		if err != nil {
			return nil, err
		}
	}

	f.pump()
	return next, nil
}

func (f *memoryFount) PauseFlow() (*Pause, error) { return f.pauser.Pause() }

func (f *memoryFount) StopFlow() error {
	f.stopped = true
	return nil
}

func (f *memoryFount) pump() {
	for !f.paused && len(f.items) > 0 && f.drain != nil {
		item := f.items[0]
		f.items = f.items[1:]
		f.drain.Receive(item)
	}
}

// captureDrain is a terminal Drain that just remembers everything it was
// given.
type captureDrain struct {
	received      []any
	stopped       bool
	stoppedReason error
	fount         Fount
}

func (c *captureDrain) InputType() reflect.Type { return nil }

func (c *captureDrain) peerFount() Fount { return c.fount }

func (c *captureDrain) FlowingFrom(fount Fount) (Fount, error) {
	old := c.fount
	c.fount = fount
	if old != nil && old != fount {
		detachOldFount(old, c)
	}
	return nil, nil
}

func (c *captureDrain) Receive(item any) error {
	c.received = append(c.received, item)
	return nil
}

func (c *captureDrain) FlowStopped(reason error) error {
	c.stopped = true
	c.stoppedReason = reason
	return nil
}

// passthruTube relays every item unchanged.
type passthruTube struct{ BaseTube }

func (passthruTube) Received(item any) ([]any, error) { return []any{item}, nil }
