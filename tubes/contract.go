package tubes

import "reflect"

// Fount is a source of items of some output type. It supports connecting
// to a downstream Drain, exerting backpressure, and a permanent stop.
type Fount interface {
	// OutputType is the type tag advertised for items this fount produces.
	// A nil type tag is permissive: it is treated as compatible with any
	// drain input type.
	OutputType() reflect.Type

	// FlowTo detaches any previously-attached drain, attaches drain (which
	// may be nil, meaning "no downstream"), and returns the result of
	// drain.FlowingFrom(self) — which is itself the drain's own downstream
	// fount if the drain is, itself, a siphon-like chainable object, or nil
	// if the drain is terminal. Returns nil if drain is nil.
	FlowTo(drain Drain) (Fount, error)

	// PauseFlow asks this fount to stop producing items until the returned
	// Pause is unpaused. Pauses are reference counted: multiple outstanding
	// Pause tokens may coexist.
	PauseFlow() (*Pause, error)

	// StopFlow permanently stops production. No further items will be
	// produced; the downstream will eventually observe FlowStopped.
	StopFlow() error
}

// Drain is a sink for items of some input type.
type Drain interface {
	// InputType is the type tag this drain accepts. A nil type tag is
	// permissive.
	InputType() reflect.Type

	// FlowingFrom attaches fount (which may be nil) as this drain's
	// upstream, detaching any previous upstream. Returns ErrTypeMismatch
	// (synchronously, without attaching) if both sides declare
	// incompatible type tags. Returns this drain's own downstream fount
	// (for flow_to chaining), or nil if the drain is terminal.
	FlowingFrom(fount Fount) (Fount, error)

	// Receive delivers a single item. Must never be called while this
	// drain's upstream-facing fount is paused.
	Receive(item any) error

	// FlowStopped delivers the final "no more items are coming" signal.
	// At most one FlowStopped call is ever observed per drain, and no
	// Receive call follows it.
	FlowStopped(reason error) error
}

// Tube is a user-written transformation: it consumes zero-or-more inputs and
// produces zero-or-more outputs, optionally asynchronously. Siphon adapts a
// Tube into a (Drain, Fount) pair.
//
// Each method returns a slice of outputs (nil means "no pending iterator at
// all"; a non-nil, possibly empty, slice means "a pending iterator exists,
// drain it"). An element of the returned slice may be a *Pending, standing
// in for a value that will settle later; Siphon delivers it in its proper
// place once it settles.
type Tube interface {
	// InputType/OutputType are the type tags this tube declares. Either may
	// be nil (permissive).
	InputType() reflect.Type
	OutputType() reflect.Type

	// Started is invoked exactly once per Siphon lifetime, the first time
	// the siphon's drain half is attached to a non-nil upstream fount.
	Started() ([]any, error)

	// Received is invoked once per item delivered to the siphon's drain
	// half.
	Received(item any) ([]any, error)

	// Stopped is invoked exactly once, when the upstream fount calls
	// FlowStopped on the siphon's drain half. Any outputs it yields are
	// delivered downstream before FlowStopped is, in turn, delivered to the
	// siphon's own downstream.
	Stopped(reason error) ([]any, error)
}

// BaseTube supplies no-op defaults for every Tube method so that a concrete
// tube need only override the methods it cares about.
type BaseTube struct {
	In  reflect.Type
	Out reflect.Type
}

func (b BaseTube) InputType() reflect.Type      { return b.In }
func (b BaseTube) OutputType() reflect.Type     { return b.Out }
func (b BaseTube) Started() ([]any, error)      { return nil, nil }
func (b BaseTube) Received(any) ([]any, error)  { return nil, nil }
func (b BaseTube) Stopped(error) ([]any, error) { return nil, nil }

// Compatible reports whether a fount whose output type tag is output may
// flow into a drain whose input type tag is input: "the same as or extends."
// A nil tag on either side is permissive.
func Compatible(output, input reflect.Type) bool {
	if output == nil || input == nil {
		return true
	}
	if output == input {
		return true
	}
	if input.Kind() == reflect.Interface {
		return output.Implements(input)
	}
	return output.AssignableTo(input)
}
