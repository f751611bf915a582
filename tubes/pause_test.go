package tubes

import (
	"errors"
	"testing"
)

func TestPauserReferenceCounting(t *testing.T) {
	firstCalls, lastCalls := 0, 0
	pauser := NewPauser(
		func() error { firstCalls++; return nil },
		func() error { lastCalls++; return nil },
	)

	p1, err := pauser.Pause()
	if err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if firstCalls != 1 {
		t.Fatalf("expected onFirstPause called once, got %d", firstCalls)
	}

	p2, err := pauser.Pause()
	if err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if firstCalls != 1 {
		t.Fatalf("onFirstPause should not fire again while already paused, got %d", firstCalls)
	}
	if pauser.Count() != 2 {
		t.Fatalf("expected count 2, got %d", pauser.Count())
	}

	if err := p1.Unpause(); err != nil {
		t.Fatalf("Unpause p1: %v", err)
	}
	if lastCalls != 0 {
		t.Fatalf("onLastResume should not fire while a second pause is outstanding, got %d", lastCalls)
	}

	if err := p2.Unpause(); err != nil {
		t.Fatalf("Unpause p2: %v", err)
	}
	if lastCalls != 1 {
		t.Fatalf("expected onLastResume called once, got %d", lastCalls)
	}
	if pauser.Count() != 0 {
		t.Fatalf("expected count 0, got %d", pauser.Count())
	}
}

func TestPauseUnpauseTwiceFails(t *testing.T) {
	pauser := NewPauser(func() error { return nil }, func() error { return nil })
	p, err := pauser.Pause()
	if err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if err := p.Unpause(); err != nil {
		t.Fatalf("first Unpause: %v", err)
	}
	if err := p.Unpause(); !errors.Is(err, ErrAlreadyUnpaused) {
		t.Fatalf("expected ErrAlreadyUnpaused, got %v", err)
	}
}
