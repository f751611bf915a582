package tubes

import (
	"reflect"

	"github.com/pkg/errors"
)

// Divertable is a Tube that can additionally reassemble unconsumed output
// into a fresh sequence when the flow is diverted mid-stream: the hook a
// protocol parser uses to decide that a prefix of what it already buffered
// belongs to it, and the rest (plus anything still arriving) belongs to a
// different downstream entirely.
type Divertable interface {
	Tube
	Reassemble(remaining []any) ([]any, error)
}

// Diverter wraps a Divertable tube, exposing the underlying Siphon's drain
// as its own drain, plus Divert: the operation that reassembles whatever
// this siphon has buffered and hands the upstream fount off to a new
// downstream without losing any of it.
type Diverter struct {
	siphon *Siphon
	tube   Divertable
}

// NewDiverter builds a Diverter around tube.
func NewDiverter(tube Divertable, opts ...Option) *Diverter {
	return &Diverter{siphon: NewSiphon(tube, opts...), tube: tube}
}

// Fount exposes the diverter's siphon as a Fount, so a caller can attach an
// initial downstream the ordinary way before any diversion happens.
func (d *Diverter) Fount() Fount { return d.siphon }

// InputType, FlowingFrom, Receive, and FlowStopped delegate to the
// underlying siphon's drain half.
func (d *Diverter) InputType() reflect.Type            { return d.siphon.InputType() }
func (d *Diverter) FlowingFrom(f Fount) (Fount, error) { return d.siphon.FlowingFrom(f) }
func (d *Diverter) Receive(item any) error             { return d.siphon.Receive(item) }
func (d *Diverter) FlowStopped(reason error) error     { return d.siphon.FlowStopped(reason) }

// onceFount is a minimal Fount used only to trigger a Tube's Started
// lifecycle hook on a freshly built siphon that has no real upstream of its
// own; it never actually produces anything and every operation on it is a
// no-op.
type onceFount struct{}

func (onceFount) OutputType() reflect.Type    { return nil }
func (onceFount) FlowTo(Drain) (Fount, error) { return nil, nil }
func (onceFount) PauseFlow() (*Pause, error)  { return newPlaceholderPause(), nil }
func (onceFount) StopFlow() error             { return nil }

// drainingTube is a fresh internal draining tube whose Started simply
// yields a precomputed sequence of reassembled items, in order, and which
// never receives anything.
type drainingTube struct {
	BaseTube
	items []any
}

func (d *drainingTube) Started() ([]any, error) { return d.items, nil }

// Divert takes whatever this diverter's siphon currently has buffered,
// reassembles it via the tube's Reassemble, flushes the reassembled items
// into newDownstream through a temporary draining siphon, and then
// re-plumbs the real upstream fount directly to newDownstream — bypassing
// this diverter for everything from here on. The upstream is paused for
// the duration, so it cannot deliver new items to the now-disconnected old
// path while the reassembled tail is still being flushed.
func (d *Diverter) Divert(newDownstream Drain) error {
	upstream := d.siphon.upstream

	var pause *Pause
	if upstream != nil {
		tok, err := upstream.PauseFlow()
		if err != nil {
			return err
		}
		pause = tok
	}
	release := func() {
		if pause != nil {
			pause.Unpause()
		}
	}

	remaining := d.siphon.takePending()
	reassembled, err := d.tube.Reassemble(remaining)
	if err != nil {
		release()
		return errors.Wrap(err, "reassembling diverted tube output")
	}

	drainer := NewSiphon(&drainingTube{items: reassembled}, WithLogger(d.siphon.logger))
	if _, err := drainer.FlowTo(newDownstream); err != nil {
		release()
		return errors.Wrap(err, "attaching diversion drain")
	}
	if _, err := drainer.FlowingFrom(onceFount{}); err != nil {
		release()
		return errors.Wrap(err, "flushing reassembled diversion output")
	}

	if upstream != nil {
		if _, err := upstream.FlowTo(newDownstream); err != nil {
			release()
			return errors.Wrap(err, "re-plumbing upstream to diversion target")
		}
	}

	release()
	return nil
}
