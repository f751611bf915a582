package tubes

import (
	"errors"
	"testing"
)

func TestPendingSettlesCallbacksInOrder(t *testing.T) {
	p := NewPending()
	var order []int

	p.OnSettle(func(any, error) { order = append(order, 1) })
	p.OnSettle(func(any, error) { order = append(order, 2) })

	p.Succeed("done")

	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("expected callbacks to run in registration order, got %v", order)
	}
}

func TestPendingCallbackAfterSettleRunsImmediately(t *testing.T) {
	p := NewPending()
	p.Succeed("value")

	var got any
	var gotErr error
	p.OnSettle(func(v any, err error) { got, gotErr = v, err })

	if got != "value" || gotErr != nil {
		t.Fatalf("got (%v, %v), want (value, nil)", got, gotErr)
	}
}

func TestPendingSecondSettlementIgnored(t *testing.T) {
	p := NewPending()
	p.Succeed("first")
	p.Fail(errors.New("should be ignored"))

	var got any
	var gotErr error
	p.OnSettle(func(v any, err error) { got, gotErr = v, err })

	if got != "first" || gotErr != nil {
		t.Fatalf("expected the first settlement to win, got (%v, %v)", got, gotErr)
	}
}

func TestPendingFail(t *testing.T) {
	p := NewPending()
	failure := errors.New("boom")
	p.Fail(failure)

	var gotErr error
	p.OnSettle(func(_ any, err error) { gotErr = err })

	if !errors.Is(gotErr, failure) {
		t.Fatalf("got %v, want %v", gotErr, failure)
	}
}
