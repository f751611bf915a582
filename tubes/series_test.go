package tubes

import (
	"errors"
	"reflect"
	"testing"
)

type prefixTube struct {
	BaseTube
	prefix string
}

func (t prefixTube) Received(item any) ([]any, error) {
	return []any{t.prefix + item.(string)}, nil
}

func TestSeriesChainsBareTubes(t *testing.T) {
	capture := &captureDrain{}
	chain, err := Series(prefixTube{prefix: "Glub:"}, prefixTube{prefix: "Blub:"}, capture)
	if err != nil {
		t.Fatalf("Series: %v", err)
	}

	fount := newMemoryFount([]any{"hello"})
	if _, err := fount.FlowTo(chain); err != nil {
		t.Fatalf("FlowTo: %v", err)
	}

	want := []any{"Blub:Glub:hello"}
	if !reflect.DeepEqual(capture.received, want) {
		t.Fatalf("got %v, want %v", capture.received, want)
	}
}

func TestSeriesRejectsInvalidStage(t *testing.T) {
	_, err := Series(prefixTube{}, 42)
	if !errors.Is(err, ErrInvalidStage) {
		t.Fatalf("expected ErrInvalidStage, got %v", err)
	}
}

func TestSeriesRejectsTerminalDrainFollowedByMore(t *testing.T) {
	capture := &captureDrain{}
	_, err := Series(prefixTube{}, capture, prefixTube{})
	if !errors.Is(err, ErrNoUpstream) {
		t.Fatalf("expected ErrNoUpstream, got %v", err)
	}
}

func TestSeriesPropagatesTypeMismatch(t *testing.T) {
	type special struct{}
	producer := BaseTube{Out: reflect.TypeOf(0)}
	incompatible := BaseTube{In: reflect.TypeOf(special{})}

	_, err := Series(producer, incompatible)

	var mismatch ErrTypeMismatch
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected ErrTypeMismatch, got %v", err)
	}
}
