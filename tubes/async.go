package tubes

import "sync"

// Pending is a minimal one-shot future: a placeholder a Tube can yield in
// place of a value it doesn't have yet. Whoever produced it settles it via
// Succeed or Fail exactly once; OnSettle callbacks queued before settlement run
// synchronously at settlement time, and any registered after settlement run
// immediately. No dependency on any specific event-loop library is
// warranted here — this is the entire contract the
// engine needs from an async result.
type Pending struct {
	mu        sync.Mutex
	settled   bool
	value     any
	err       error
	callbacks []func(any, error)
}

// NewPending creates an unsettled placeholder.
func NewPending() *Pending {
	return &Pending{}
}

// Succeed settles the placeholder with a value. Calling Succeed or Fail
// more than once on the same Pending is a programmer error and is ignored
// after the first settlement.
func (p *Pending) Succeed(value any) {
	p.settle(value, nil)
}

// Fail settles the placeholder with a failure.
func (p *Pending) Fail(err error) {
	p.settle(nil, err)
}

func (p *Pending) settle(value any, err error) {
	p.mu.Lock()
	if p.settled {
		p.mu.Unlock()
		return
	}
	p.settled = true
	p.value = value
	p.err = err
	callbacks := p.callbacks
	p.callbacks = nil
	p.mu.Unlock()

	for _, cb := range callbacks {
		cb(value, err)
	}
}

// OnSettle registers cb to run once this placeholder settles: immediately,
// if it already has, or at settlement time otherwise.
func (p *Pending) OnSettle(cb func(value any, err error)) {
	p.mu.Lock()
	if p.settled {
		value, err := p.value, p.err
		p.mu.Unlock()
		cb(value, err)
		return
	}
	p.callbacks = append(p.callbacks, cb)
	p.mu.Unlock()
}
