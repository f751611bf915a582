package tubes

import (
	"fmt"
	"log"
	"reflect"
)

// cursor is the pending iterator: the output slice from one invocation of a
// tube method, plus how far into it we've delivered.
type cursor struct {
	items []any
	pos   int
}

func (c *cursor) done() bool { return c.pos >= len(c.items) }

func (c *cursor) next() any {
	v := c.items[c.pos]
	c.pos++
	return v
}

// peerFounter is implemented by Founts that can report which Drain they
// currently consider their downstream, so the connection protocol can
// decide whether a symmetric detach is "necessary".
type peerFounter interface {
	peerDrain() Drain
}

// peerDrainer is the Drain-side counterpart of peerFounter.
type peerDrainer interface {
	peerFount() Fount
}

// detachOldDrain implements step 2 of the connection protocol: tell the
// previously-attached drain it no longer has an upstream, but only if it is
// still pointing back at fromFount — non-Siphon drains that don't expose
// peerDrainer are detached unconditionally, which is safe for every
// concrete Drain in this module.
func detachOldDrain(old Drain, fromFount Fount) {
	if old == nil {
		return
	}
	if pd, ok := old.(peerDrainer); ok {
		if pd.peerFount() != fromFount {
			return
		}
	}
	old.FlowingFrom(nil)
}

// detachOldFount is the symmetric counterpart, used from FlowingFrom (step
// 4 of the connection protocol).
func detachOldFount(old Fount, fromDrain Drain) {
	if old == nil {
		return
	}
	if pf, ok := old.(peerFounter); ok {
		if pf.peerDrain() != fromDrain {
			return
		}
	}
	old.FlowTo(nil)
}

// Option configures a Siphon at construction time.
type Option func(*Siphon)

// WithLogger redirects a Siphon's diagnostic logging (tube failures,
// settlement failures, programmer-contract violations surfaced as logs
// rather than panics) to l instead of the default logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Siphon) { s.logger = l }
}

// Siphon adapts a Tube into a connected (Drain, Fount) pair. It implements
// both interfaces directly: its drain half receives items from upstream and
// feeds the tube; its fount half delivers the tube's outputs downstream.
type Siphon struct {
	tube   Tube
	logger *log.Logger

	// non-owning back-references; the assembler that built the pipeline
	// owns the peer nodes, not this siphon.
	upstream   Fount
	downstream Drain

	pauser *Pauser

	pending *cursor

	currentlyPaused bool
	upstreamPause   *Pause
	noDrainPause    *Pause

	flowWasStopped bool

	hasStoppingReason bool
	stoppingReason    error

	everStarted bool
	unbuffering bool
}

// NewSiphon wraps tube in a Siphon, ready to be attached to an upstream
// fount and/or a downstream drain via FlowingFrom/FlowTo.
func NewSiphon(tube Tube, opts ...Option) *Siphon {
	s := &Siphon{tube: tube, logger: log.Default()}
	s.pauser = NewPauser(s.onFirstPause, s.onLastResume)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Siphon) logf(format string, args ...any) {
	s.logger.Printf(format, args...)
}

func (s *Siphon) peerDrain() Drain { return s.downstream }
func (s *Siphon) peerFount() Fount { return s.upstream }

// Paused reports whether this siphon's fount half is currently suppressing
// delivery to its downstream.
func (s *Siphon) Paused() bool { return s.currentlyPaused }

// Buffered reports how many items remain in the currently pending iterator,
// not yet delivered downstream.
func (s *Siphon) Buffered() int {
	if s.pending == nil {
		return 0
	}
	return len(s.pending.items) - s.pending.pos
}

// ---- Fount half ----

// OutputType relays the tube's declared output type tag.
func (s *Siphon) OutputType() reflect.Type { return s.tube.OutputType() }

// FlowTo implements the fount half of the connection protocol, plus the
// siphon-specific no-drain-pause release and flush.
func (s *Siphon) FlowTo(drain Drain) (Fount, error) {
	old := s.downstream
	s.downstream = drain
	if old != nil && old != drain {
		detachOldDrain(old, s)
	}

	var next Fount
	if drain != nil {
		var err error
		next, err = drain.FlowingFrom(s)
		if err != nil {
			return nil, err
		}
	}

	if s.noDrainPause != nil {
		tok := s.noDrainPause
		s.noDrainPause = nil
		if err := tok.Unpause(); err != nil {
			s.logf("tubes: releasing no-drain pause: %v", err)
		}
	}
	s.unbufferIterator()

	return next, nil
}

// PauseFlow acquires a reference-counted pause on this siphon's fount half.
func (s *Siphon) PauseFlow() (*Pause, error) {
	return s.pauser.Pause()
}

func (s *Siphon) onFirstPause() error {
	s.currentlyPaused = true
	if s.upstream != nil && s.upstreamPause == nil {
		tok, err := s.upstream.PauseFlow()
		if err != nil {
			return err
		}
		s.upstreamPause = tok
	}
	return nil
}

func (s *Siphon) onLastResume() error {
	s.currentlyPaused = false
	s.unbufferIterator()
	if !s.currentlyPaused && s.upstreamPause != nil {
		tok := s.upstreamPause
		s.upstreamPause = nil
		return tok.Unpause()
	}
	return nil
}

// StopFlow permanently stops this siphon: any buffered items are discarded,
// and the stop is propagated to the upstream fount, if any.
func (s *Siphon) StopFlow() error {
	s.flowWasStopped = true
	up := s.upstream
	s.pending = nil
	if up == nil {
		return nil
	}
	return up.StopFlow()
}

// ---- Drain half ----

// InputType relays the tube's declared input type tag.
func (s *Siphon) InputType() reflect.Type { return s.tube.InputType() }

// FlowingFrom implements the drain half of the connection protocol, plus
// the siphon-specific migration, deferred-start, and downstream-resync
// behavior.
func (s *Siphon) FlowingFrom(fount Fount) (Fount, error) {
	if fount != nil {
		outType, inType := fount.OutputType(), s.tube.InputType()
		if !Compatible(outType, inType) {
			return nil, ErrTypeMismatch{Output: outType, Input: inType}
		}
	}

	old := s.upstream
	s.upstream = fount
	if old != nil && old != fount {
		detachOldFount(old, s)
	}

	// Migrate the upstream-pause token to the new upstream so pressure
	// continues to be exerted on whoever is actually producing now. This
	// also covers the case where we became paused while no upstream was
	// attached at all.
	if s.currentlyPaused {
		prev := s.upstreamPause
		if fount == nil {
			if prev != nil {
				s.upstreamPause = newPlaceholderPause()
			}
		} else {
			tok, err := fount.PauseFlow()
			if err != nil {
				return nil, err
			}
			s.upstreamPause = tok
		}
		if prev != nil {
			if err := prev.Unpause(); err != nil {
				s.logf("tubes: releasing migrated upstream pause: %v", err)
			}
		}
	}

	if fount != nil {
		if s.flowWasStopped {
			if err := fount.StopFlow(); err != nil {
				return nil, err
			}
		}
		if !s.everStarted {
			s.everStarted = true
			s.deliverFrom(s.tube.Started)
		}
	}

	nextFount := Fount(s)
	nextDrain := s.downstream
	if nextDrain == nil {
		return nextFount, nil
	}
	return nextFount.FlowTo(nextDrain)
}

// Receive delivers item to the tube and drains whatever it yields.
func (s *Siphon) Receive(item any) error {
	s.deliverFrom(func() ([]any, error) { return s.tube.Received(item) })
	return nil
}

// FlowStopped records the stop reason and drains whatever the tube's
// Stopped yields; delivery of FlowStopped to our own downstream is
// deferred until that pending iterator runs dry.
func (s *Siphon) FlowStopped(reason error) error {
	s.hasStoppingReason = true
	s.stoppingReason = reason
	s.deliverFrom(func() ([]any, error) {
		items, err := s.tube.Stopped(reason)
		if items == nil && err == nil {
			// an empty pending iterator still carries the stop downstream
			items = []any{}
		}
		return items, err
	})
	return nil
}

// ---- shared delivery machinery ----

// deliverFrom runs source, which must return the tube's next batch of
// outputs. Calling it while a pending iterator already exists is a
// programmer-contract violation in the tube implementation — it always
// indicates a reentrant call the tube itself should never make, so we
// panic rather than return an error.
func (s *Siphon) deliverFrom(source func() ([]any, error)) {
	if s.pending != nil {
		panic(ErrPendingIteratorExists)
	}

	items, err := source()
	if err != nil {
		err = fmt.Errorf("tube %T: %w", s.tube, err)
		s.logf("tubes: %v", err)
		if s.upstream != nil {
			s.upstream.StopFlow()
		}
		if s.downstream != nil {
			s.downstream.FlowStopped(err)
		}
		return
	}
	if items == nil {
		return
	}

	s.pending = &cursor{items: items}
	if s.downstream == nil && s.noDrainPause == nil {
		tok, perr := s.PauseFlow()
		if perr != nil {
			s.logf("tubes: pausing for lack of a drain: %v", perr)
		} else {
			s.noDrainPause = tok
		}
	}
	s.unbufferIterator()
}

// unbufferIterator drains the pending iterator into the downstream drain,
// one item at a time, stopping the instant we become paused and resuming
// exactly where we left off once unpaused.
func (s *Siphon) unbufferIterator() {
	if s.unbuffering {
		return
	}
	if s.pending == nil {
		return
	}

	s.unbuffering = true
	defer func() { s.unbuffering = false }()

	for !s.currentlyPaused && s.pending != nil {
		if s.downstream == nil {
			// keep the rest for the next drain, holding pressure meanwhile
			if s.noDrainPause == nil {
				if tok, err := s.PauseFlow(); err == nil {
					s.noDrainPause = tok
				}
			}
			break
		}
		if s.pending.done() {
			s.pending = nil
			if s.hasStoppingReason {
				reason := s.stoppingReason
				s.hasStoppingReason = false
				if s.downstream != nil {
					s.downstream.FlowStopped(reason)
				}
			}
			break
		}

		value := s.pending.next()

		if placeholder, ok := value.(*Pending); ok {
			tok, err := s.PauseFlow()
			if err != nil {
				s.logf("tubes: pausing for async placeholder: %v", err)
				continue
			}
			placeholder.OnSettle(func(result any, perr error) {
				if perr != nil {
					// log and continue draining the
					// rest of the iterator rather than abort the flow.
					s.logf("tubes: async placeholder failed: %v", perr)
				} else {
					s.prepend(result)
				}
				if uerr := tok.Unpause(); uerr != nil {
					s.logf("tubes: unpausing after async settlement: %v", uerr)
				}
			})
			continue
		}

		if err := s.downstream.Receive(value); err != nil {
			s.logf("tubes: downstream receive failed: %v", err)
			if s.upstream != nil {
				s.upstream.StopFlow()
			}
			s.pending = nil
			break
		}
	}
}

// takePending removes and returns whatever items remain undelivered in the
// pending iterator, leaving the siphon with no pending iterator at all.
// Used by Diverter to reassemble a buffered tail onto a new downstream.
func (s *Siphon) takePending() []any {
	if s.pending == nil {
		return nil
	}
	remaining := s.pending.items[s.pending.pos:]
	s.pending = nil
	return remaining
}

// prepend puts a just-settled async result back at the front of the
// pending iterator, so it is the very next item delivered — this is what
// preserves issue order across interleaved synchronous and asynchronous
// outputs.
func (s *Siphon) prepend(value any) {
	if s.pending == nil {
		s.pending = &cursor{items: []any{value}}
		return
	}
	remaining := s.pending.items[s.pending.pos:]
	items := make([]any, 0, len(remaining)+1)
	items = append(items, value)
	items = append(items, remaining...)
	s.pending = &cursor{items: items}
}
