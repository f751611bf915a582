package tubes

import (
	"errors"
	"fmt"
	"reflect"
)

// ErrAlreadyUnpaused is returned by Pause.Unpause when the token has already
// been consumed once.
var ErrAlreadyUnpaused = errors.New("tubes: pause token already unpaused")

// ErrPendingIteratorExists marks a programmer-contract violation: deliverFrom
// was invoked while a siphon already has a pending iterator draining. This is
// always a bug in the tube implementation, never a runtime condition a caller
// can recover from, so the siphon panics with this error rather than return it.
var ErrPendingIteratorExists = errors.New("tubes: siphon already has a pending iterator")

// ErrNoUpstream is returned when an operation requires an attached upstream
// fount but none is present.
var ErrNoUpstream = errors.New("tubes: no upstream fount attached")

// ErrInvalidStage is returned by Series when one of its arguments is
// neither a Drain nor a Tube.
var ErrInvalidStage = errors.New("tubes: series stage is neither a Tube nor a Drain")

// ErrTypeMismatch reports that a fount's output type is not compatible with
// a drain's input type at a flowing_from edge.
type ErrTypeMismatch struct {
	Output reflect.Type
	Input  reflect.Type
}

func (e ErrTypeMismatch) Error() string {
	return fmt.Sprintf("tubes: fount output type %v is not compatible with drain input type %v", e.Output, e.Input)
}
