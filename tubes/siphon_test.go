package tubes

import (
	"errors"
	"reflect"
	"testing"
)

func TestBufferedHandoffNoDownstream(t *testing.T) {
	fount := newMemoryFount([]any{"something", "else"})
	siphon := NewSiphon(passthruTube{})

	if _, err := fount.FlowTo(siphon); err != nil {
		t.Fatalf("FlowTo: %v", err)
	}

	if !fount.paused {
		t.Fatalf("expected upstream fount to be paused with no downstream attached")
	}
	if !reflect.DeepEqual(fount.items, []any{"else"}) {
		t.Fatalf("expected one item still buffered upstream, got %v", fount.items)
	}

	capture := &captureDrain{}
	if _, err := siphon.FlowTo(capture); err != nil {
		t.Fatalf("FlowTo capture: %v", err)
	}

	want := []any{"something", "else"}
	if !reflect.DeepEqual(capture.received, want) {
		t.Fatalf("got %v, want %v", capture.received, want)
	}
	if fount.paused {
		t.Fatalf("expected upstream fount unpaused once a drain is attached")
	}
	if len(fount.items) != 0 {
		t.Fatalf("expected upstream buffer drained, got %v", fount.items)
	}
}

type asyncOrderTube struct {
	BaseTube
	pending *Pending
}

func (t *asyncOrderTube) Received(any) ([]any, error) {
	return []any{t.pending, "goodbye"}, nil
}

func TestAsyncOrderPreservation(t *testing.T) {
	pending := NewPending()
	siphon := NewSiphon(&asyncOrderTube{pending: pending})
	capture := &captureDrain{}

	if _, err := siphon.FlowTo(capture); err != nil {
		t.Fatalf("FlowTo: %v", err)
	}
	if err := siphon.Receive("ignored"); err != nil {
		t.Fatalf("Receive: %v", err)
	}

	if len(capture.received) != 0 {
		t.Fatalf("expected nothing delivered before the placeholder settles, got %v", capture.received)
	}

	pending.Succeed("hello")

	want := []any{"hello", "goodbye"}
	if !reflect.DeepEqual(capture.received, want) {
		t.Fatalf("got %v, want %v", capture.received, want)
	}
}

type singleAsyncTube struct {
	BaseTube
	pending *Pending
}

func (t *singleAsyncTube) Received(any) ([]any, error) { return []any{t.pending}, nil }

func TestPauseDuringAsyncSettlement(t *testing.T) {
	pending := NewPending()
	siphon := NewSiphon(&singleAsyncTube{pending: pending})
	capture := &captureDrain{}

	if _, err := siphon.FlowTo(capture); err != nil {
		t.Fatalf("FlowTo: %v", err)
	}
	if err := siphon.Receive("go"); err != nil {
		t.Fatalf("Receive: %v", err)
	}

	external, err := siphon.PauseFlow()
	if err != nil {
		t.Fatalf("PauseFlow: %v", err)
	}

	pending.Succeed("hello")

	if len(capture.received) != 0 {
		t.Fatalf("expected delivery to stay held by the external pause, got %v", capture.received)
	}

	if err := external.Unpause(); err != nil {
		t.Fatalf("Unpause: %v", err)
	}

	want := []any{"hello"}
	if !reflect.DeepEqual(capture.received, want) {
		t.Fatalf("got %v, want %v", capture.received, want)
	}
}

func TestStopFlowBeforeFlowBegins(t *testing.T) {
	siphon := NewSiphon(passthruTube{})
	capture := &captureDrain{}
	if _, err := Series(siphon, capture); err != nil {
		t.Fatalf("Series: %v", err)
	}

	if err := siphon.StopFlow(); err != nil {
		t.Fatalf("StopFlow: %v", err)
	}

	fount := newMemoryFount(nil)
	if _, err := fount.FlowTo(siphon); err != nil {
		t.Fatalf("FlowTo: %v", err)
	}

	if !fount.stopped {
		t.Fatalf("expected the upstream fount to observe the already-pending stop on connect")
	}
}

func TestStopFlowPropagatesUpstream(t *testing.T) {
	siphon := NewSiphon(passthruTube{})
	capture := &captureDrain{}
	fount := newMemoryFount(nil)

	if _, err := Series(siphon, capture); err != nil {
		t.Fatalf("Series: %v", err)
	}
	if _, err := fount.FlowTo(siphon); err != nil {
		t.Fatalf("FlowTo: %v", err)
	}
	if fount.stopped {
		t.Fatalf("fount should not be stopped yet")
	}

	if err := siphon.StopFlow(); err != nil {
		t.Fatalf("StopFlow: %v", err)
	}
	if !fount.stopped {
		t.Fatalf("expected StopFlow to propagate to the upstream fount")
	}
}

var errStartupFailure = errors.New("startup failure")

type raisingStartTube struct{ BaseTube }

func (raisingStartTube) Started() ([]any, error) { return nil, errStartupFailure }

func TestStartedThatRaises(t *testing.T) {
	siphon := NewSiphon(raisingStartTube{})
	capture := &captureDrain{}
	chain, err := Series(siphon, capture)
	if err != nil {
		t.Fatalf("Series: %v", err)
	}

	fount := newMemoryFount(nil)
	if _, err := fount.FlowTo(chain); err != nil {
		t.Fatalf("FlowTo: %v", err)
	}

	if !fount.stopped {
		t.Fatalf("expected the upstream fount to be stopped after Started fails")
	}
	if !capture.stopped || !errors.Is(capture.stoppedReason, errStartupFailure) {
		t.Fatalf("expected downstream to observe FlowStopped with the Started error, got %v", capture.stoppedReason)
	}
}

func TestStartedThatRaisesWithNoDownstream(t *testing.T) {
	siphon := NewSiphon(raisingStartTube{})
	fount := newMemoryFount(nil)

	if _, err := fount.FlowTo(siphon); err != nil {
		t.Fatalf("FlowTo: %v", err)
	}

	if !fount.stopped {
		t.Fatalf("expected the upstream fount to be stopped even with no downstream attached")
	}
}

func TestReceiveWhileFullyPausedReturnsToExactPosition(t *testing.T) {
	siphon := NewSiphon(passthruTube{})
	capture := &captureDrain{}
	if _, err := siphon.FlowTo(capture); err != nil {
		t.Fatalf("FlowTo: %v", err)
	}

	pause, err := siphon.PauseFlow()
	if err != nil {
		t.Fatalf("PauseFlow: %v", err)
	}

	if err := siphon.Receive("a"); err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if len(capture.received) != 0 {
		t.Fatalf("expected nothing delivered while paused, got %v", capture.received)
	}
	if got := siphon.Buffered(); got != 1 {
		t.Fatalf("expected one buffered item, got %d", got)
	}

	if err := pause.Unpause(); err != nil {
		t.Fatalf("Unpause: %v", err)
	}

	if !reflect.DeepEqual(capture.received, []any{"a"}) {
		t.Fatalf("got %v, want [a]", capture.received)
	}
}

func TestDoubleUnpauseErrors(t *testing.T) {
	siphon := NewSiphon(passthruTube{})
	capture := &captureDrain{}
	siphon.FlowTo(capture)

	pause, err := siphon.PauseFlow()
	if err != nil {
		t.Fatalf("PauseFlow: %v", err)
	}
	if err := pause.Unpause(); err != nil {
		t.Fatalf("first Unpause: %v", err)
	}
	if err := pause.Unpause(); !errors.Is(err, ErrAlreadyUnpaused) {
		t.Fatalf("expected ErrAlreadyUnpaused, got %v", err)
	}
}

func TestFlowingFromRejectsIncompatibleTypes(t *testing.T) {
	type special struct{}
	siphon := NewSiphon(BaseTube{In: reflect.TypeOf(special{})})
	fount := newMemoryFount([]any{"wrong type"})
	fount.outType = reflect.TypeOf(0)

	_, err := fount.FlowTo(siphon)
	var mismatch ErrTypeMismatch
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected ErrTypeMismatch, got %v", err)
	}
}

func TestIdentityChainComposedThreeTimes(t *testing.T) {
	a := NewSiphon(passthruTube{})
	b := NewSiphon(passthruTube{})
	c := NewSiphon(passthruTube{})
	capture := &captureDrain{}

	chain, err := Series(a, b, c, capture)
	if err != nil {
		t.Fatalf("Series: %v", err)
	}

	fount := newMemoryFount([]any{1, 2, 3})
	if _, err := fount.FlowTo(chain); err != nil {
		t.Fatalf("FlowTo: %v", err)
	}

	want := []any{1, 2, 3}
	if !reflect.DeepEqual(capture.received, want) {
		t.Fatalf("got %v, want %v", capture.received, want)
	}
}
