package tubes

// Pause is a one-shot capability returned by Pauser.Pause. It must be
// consumed exactly once by Unpause; a second call fails with
// ErrAlreadyUnpaused.
type Pause struct {
	pauser      *Pauser
	alive       bool
	placeholder bool
}

// newPlaceholderPause returns a Pause that is not backed by any Pauser. It
// stands in for "we would pause our upstream, but we have none right now";
// Unpause on it is always a harmless no-op, unlike a real Pause, which
// rejects a second Unpause.
func newPlaceholderPause() *Pause {
	return &Pause{placeholder: true}
}

// Unpause releases this pause. If this was the last outstanding pause on
// the Pauser (the counter reaches zero), the Pauser's onLastResume callback
// runs before Unpause returns. Calling Unpause a second time on the same
// token returns ErrAlreadyUnpaused.
func (p *Pause) Unpause() error {
	if p.placeholder {
		return nil
	}
	if !p.alive {
		return ErrAlreadyUnpaused
	}
	p.alive = false

	p.pauser.pauses--
	if p.pauser.pauses == 0 {
		return p.pauser.onLastResume()
	}
	return nil
}

// Pauser is a reference-counted coordinator of pause tokens. Multiple
// independent parties may each want to suppress some ongoing activity; the
// Pauser tracks how many are currently interested, and invokes onFirstPause
// exactly when the count transitions 0->1 and onLastResume exactly when it
// transitions 1->0.
//
// Callbacks are expected not to fail; if they do, the error propagates to
// the caller of Pause/Unpause with no recovery attempted.
type Pauser struct {
	onFirstPause func() error
	onLastResume func() error
	pauses       int
}

// NewPauser constructs a Pauser. Either callback may be nil, in which case
// it is treated as a no-op.
func NewPauser(onFirstPause, onLastResume func() error) *Pauser {
	noop := func() error { return nil }
	if onFirstPause == nil {
		onFirstPause = noop
	}
	if onLastResume == nil {
		onLastResume = noop
	}
	return &Pauser{onFirstPause: onFirstPause, onLastResume: onLastResume}
}

// Pause acquires a new pause token, invoking onFirstPause first if the
// counter was at zero.
func (p *Pauser) Pause() (*Pause, error) {
	if p.pauses == 0 {
		if err := p.onFirstPause(); err != nil {
			return nil, err
		}
	}
	p.pauses++
	return &Pause{pauser: p, alive: true}, nil
}

// Count reports the number of outstanding, unconsumed pause tokens.
func (p *Pauser) Count() int {
	return p.pauses
}
